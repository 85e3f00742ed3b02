package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/sprite-ai/revgate/internal/diff"
	"github.com/sprite-ai/revgate/internal/engine"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/report"
	"github.com/sprite-ai/revgate/internal/selector"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Review ---

type reviewRequest struct {
	Diff      string   `json:"diff"`
	Analyzers []string `json:"analyzers,omitempty"`
	Format    string   `json:"format,omitempty"`
}

// exitInconclusive matches the CLI's internal error code, used when no
// analyzer completed.
const exitInconclusive = 3

type reviewResponse struct {
	ExitCode int           `json:"exit_code"`
	Report   report.Report `json:"report"`
	Rendered string        `json:"rendered,omitempty"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Diff) == "" {
		s.writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	format := report.FormatJSON
	if req.Format != "" {
		f, err := report.ParseFormat(req.Format)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	ds, err := diff.Parse(req.Diff)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, rep, err := s.engine.Review(r.Context(), ds.Changeset(), engine.Options{Analyzers: req.Analyzers})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, selector.ErrUnknownAnalyzer) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}

	resp := reviewResponse{ExitCode: exitCode(sess, rep), Report: rep}
	if format != report.FormatJSON {
		var buf bytes.Buffer
		if err := report.Encode(&buf, rep, format); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Rendered = buf.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// exitCode is the code the CLI would exit with for the same session.
func exitCode(sess *model.ReviewSession, rep report.Report) int {
	if sess.Inconclusive() {
		return exitInconclusive
	}
	return rep.Verdict.ExitCode()
}

// --- Parse ---

type parseRequest struct {
	Diff string `json:"diff"`
}

type parseResponse struct {
	Changeset string        `json:"changeset"`
	Files     []fileJSON    `json:"files"`
	Stats     diffStatsJSON `json:"stats"`
}

type fileJSON struct {
	Path        string `json:"path"`
	Language    string `json:"language,omitempty"`
	ContentHash string `json:"content_hash"`
	Added       int    `json:"added"`
	Deleted     int    `json:"deleted"`
	IsNew       bool   `json:"is_new,omitempty"`
	IsDeleted   bool   `json:"is_deleted,omitempty"`
	IsBinary    bool   `json:"is_binary,omitempty"`
}

type diffStatsJSON struct {
	Files   int `json:"files"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if req.Diff == "" {
		s.writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	ds, err := diff.Parse(req.Diff)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cs := ds.Changeset()
	nFiles, added, deleted := cs.Stats()
	resp := parseResponse{
		Changeset: cs.ID(),
		Files:     []fileJSON{},
		Stats:     diffStatsJSON{Files: nFiles, Added: added, Deleted: deleted},
	}
	for _, f := range cs.Files() {
		resp.Files = append(resp.Files, fileJSON{
			Path:        f.Path,
			Language:    f.Language,
			ContentHash: f.ContentHash,
			Added:       f.Added,
			Deleted:     f.Deleted,
			IsNew:       f.IsNew,
			IsDeleted:   f.IsDeleted,
			IsBinary:    f.IsBinary,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// --- Analyzers ---

type analyzerJSON struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Priority  int    `json:"priority"`
	Timeout   string `json:"timeout"`
	Weight    int64  `json:"weight"`
	AlwaysRun bool   `json:"always_run"`
	Cacheable bool   `json:"cacheable"`
	Predicate string `json:"predicate"`
}

func (s *Server) handleAnalyzers(w http.ResponseWriter, r *http.Request) {
	ds := s.engine.Registry.All()
	selector.Sort(ds)

	out := make([]analyzerJSON, 0, len(ds))
	for _, d := range ds {
		out = append(out, analyzerJSON{
			ID:        d.ID,
			Kind:      string(d.Kind),
			Priority:  d.Priority,
			Timeout:   d.Timeout.String(),
			Weight:    d.Weight,
			AlwaysRun: d.AlwaysRun,
			Cacheable: d.Cacheable,
			Predicate: d.Predicate.String(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"analyzers": out})
}

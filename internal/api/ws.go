package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/revgate/internal/diff"
	"github.com/sprite-ai/revgate/internal/engine"
	"github.com/sprite-ai/revgate/internal/logging"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/selector"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev; restrict in production
	},
}

// WebSocket message types from client.
const (
	wsMsgReview = "review"
)

// WebSocket message types to client.
const (
	wsMsgParsed   = "parsed"
	wsMsgSelected = "selected"
	wsMsgOutcome  = "outcome"
	wsMsgReport   = "report"
	wsMsgError    = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsReview is the payload for "review" messages.
type wsReview struct {
	Diff      string   `json:"diff"`
	Analyzers []string `json:"analyzers,omitempty"`
}

// wsParsedResponse is sent after a diff is parsed.
type wsParsedResponse struct {
	Changeset string        `json:"changeset"`
	Stats     diffStatsJSON `json:"stats"`
}

// wsSelectedResponse is sent once analyzers are chosen, before any run.
type wsSelectedResponse struct {
	Session   string   `json:"session"`
	Analyzers []string `json:"analyzers"`
}

// wsOutcomeResponse is sent as each analyzer finishes.
type wsOutcomeResponse struct {
	Analyzer   string              `json:"analyzer"`
	Status     model.OutcomeStatus `json:"status"`
	Findings   int                 `json:"findings"`
	Cached     bool                `json:"cached,omitempty"`
	Diagnostic string              `json:"diagnostic,omitempty"`
	DurationMS int64               `json:"duration_ms"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	lggr logging.Logger
}

func (c *wsConn) send(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.lggr.Warnw("ws marshal", "err", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		c.lggr.Debugw("ws write", "err", err)
	}
}

func (c *wsConn) sendError(errMsg string) {
	c.send(wsMsgError, map[string]string{"message": errMsg})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.lggr.Warnw("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn, lggr: s.lggr}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.lggr.Warnw("websocket read", "err", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgReview:
			s.handleWSReview(r, c, msg.Data)
		default:
			c.sendError("unknown message type: " + msg.Type)
		}
	}
}

// handleWSReview runs one session and streams its progress: parsed,
// selected, one outcome per analyzer in completion order, then report.
func (s *Server) handleWSReview(r *http.Request, c *wsConn, data json.RawMessage) {
	var req wsReview
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("invalid review data")
		return
	}
	if req.Diff == "" {
		c.sendError("diff is required")
		return
	}

	ds, err := diff.Parse(req.Diff)
	if err != nil {
		c.sendError("parsing diff: " + err.Error())
		return
	}
	cs := ds.Changeset()
	nFiles, added, deleted := cs.Stats()
	c.send(wsMsgParsed, wsParsedResponse{
		Changeset: cs.ID(),
		Stats:     diffStatsJSON{Files: nFiles, Added: added, Deleted: deleted},
	})

	opts := engine.Options{
		Analyzers: req.Analyzers,
		OnSelected: func(ids []string) {
			c.send(wsMsgSelected, wsSelectedResponse{
				Session:   engine.SessionID(cs, ids),
				Analyzers: ids,
			})
		},
		OnOutcome: func(o model.AnalyzerOutcome) {
			c.send(wsMsgOutcome, wsOutcomeResponse{
				Analyzer:   o.Analyzer,
				Status:     o.Status,
				Findings:   len(o.Findings),
				Cached:     o.Cached,
				Diagnostic: o.Diagnostic,
				DurationMS: o.Duration.Milliseconds(),
			})
		},
	}

	sess, rep, err := s.engine.Review(r.Context(), cs, opts)
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, selector.ErrUnknownAnalyzer) {
			s.lggr.Errorw("websocket review failed", "err", err)
		}
		c.sendError(msg)
		return
	}
	c.send(wsMsgReport, reviewResponse{ExitCode: exitCode(sess, rep), Report: rep})
}

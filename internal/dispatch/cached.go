package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/sprite-ai/revgate/internal/cache"
	"github.com/sprite-ai/revgate/internal/logging"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/registry"
)

// cacheName is the analyzer part of a cache key. Analyzers with config are
// keyed by a fingerprint of it too, so changing a setting invalidates their
// entries.
func cacheName(desc registry.Descriptor) string {
	if len(desc.Config) == 0 {
		return desc.ID
	}
	keys := make([]string, 0, len(desc.Config))
	for k := range desc.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(desc.Config[k]))
		h.Write([]byte{0})
	}
	return desc.ID + "@" + hex.EncodeToString(h.Sum(nil))[:16]
}

// lookup splits files into those with cached findings and those that still
// need analysis. Cache errors count as misses.
func (d *Dispatcher) lookup(ctx context.Context, lggr logging.Logger, analyzer string, files []model.FileChange) (hits []model.Finding, pending []model.FileChange) {
	for _, f := range files {
		if f.ContentHash == "" {
			pending = append(pending, f)
			continue
		}
		entry, ok, err := d.cfg.Cache.Get(ctx, cache.Key{Analyzer: analyzer, ContentHash: f.ContentHash})
		if err != nil {
			lggr.Warnw("cache read failed", "file", f.Path, "err", err)
		}
		if err != nil || !ok {
			pending = append(pending, f)
			continue
		}
		for _, finding := range entry.Findings {
			// Content hashes cover the path, so a hit is for this file.
			finding.File = f.Path
			hits = append(hits, finding)
		}
	}
	return hits, pending
}

// store writes fresh findings back per file. Files without findings are
// stored too, so a clean file is also a hit next time.
func (d *Dispatcher) store(ctx context.Context, lggr logging.Logger, analyzer string, files []model.FileChange, findings []model.Finding) {
	byFile := make(map[string][]model.Finding, len(files))
	for _, f := range findings {
		byFile[f.File] = append(byFile[f.File], f)
	}
	for _, f := range files {
		if f.ContentHash == "" {
			continue
		}
		key := cache.Key{Analyzer: analyzer, ContentHash: f.ContentHash}
		entry := cache.Entry{ContentHash: f.ContentHash, Findings: byFile[f.Path]}
		if err := d.cfg.Cache.Put(ctx, key, entry); err != nil {
			lggr.Warnw("cache write failed", "file", f.Path, "err", err)
		}
	}
}

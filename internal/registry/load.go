package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/revgate/internal/analysis"
)

// fileVersion is the only registry file version understood.
const fileVersion = 1

// File is the YAML registry file layout.
type File struct {
	Version         int         `yaml:"version"`
	IncludeDefaults *bool       `yaml:"include_defaults,omitempty"`
	Analyzers       []FileEntry `yaml:"analyzers"`
}

// FileEntry describes one analyzer in a registry file.
type FileEntry struct {
	ID        string            `yaml:"id"`
	Kind      Kind              `yaml:"kind"`
	Builtin   string            `yaml:"builtin,omitempty"`
	Command   []string          `yaml:"command,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Attempts  uint              `yaml:"attempts,omitempty"`
	Priority  int               `yaml:"priority"`
	Timeout   time.Duration     `yaml:"timeout,omitempty"`
	Weight    int64             `yaml:"weight,omitempty"`
	AlwaysRun bool              `yaml:"always_run,omitempty"`
	Cacheable bool              `yaml:"cacheable,omitempty"`
	Config    map[string]string `yaml:"config,omitempty"`
	Predicate Predicate         `yaml:"predicate,omitempty"`
}

// LoadOptions carries the environment the loaded invokers run in.
type LoadOptions struct {
	// RepoDir is the working directory for command analyzers and the
	// repo_dir handed to repository-aware built-ins.
	RepoDir string

	// Grace is how long a cancelled command analyzer may take to exit
	// before it is killed.
	Grace time.Duration
}

// LoadFile reads a registry file. See Load.
func LoadFile(path string, opts LoadOptions) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}
	r, err := Load(data, opts)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return r, nil
}

// Load parses a registry file. Unless include_defaults is false the built-in
// catalog is loaded first, and a file entry whose id names a built-in
// replaces it. Ids repeated within the file are an error, as is any entry
// that fails validation; nothing is returned in that case.
func Load(data []byte, opts LoadOptions) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	if f.Version != 0 && f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported registry version %d", f.Version)
	}

	seen := make(map[string]bool, len(f.Analyzers))
	entries := make(map[string]Descriptor, len(f.Analyzers))
	var order []string
	for _, e := range f.Analyzers {
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		seen[e.ID] = true

		d, err := e.descriptor(opts)
		if err != nil {
			return nil, err
		}
		entries[e.ID] = d
		order = append(order, e.ID)
	}

	var all []Descriptor
	if f.IncludeDefaults == nil || *f.IncludeDefaults {
		for _, d := range Defaults(opts.RepoDir) {
			if _, overridden := entries[d.ID]; !overridden {
				all = append(all, d)
			}
		}
	}
	for _, id := range order {
		all = append(all, entries[id])
	}
	return New(all...)
}

func (e FileEntry) descriptor(opts LoadOptions) (Descriptor, error) {
	d := Descriptor{
		ID:        e.ID,
		Kind:      e.Kind,
		Predicate: e.Predicate,
		Priority:  e.Priority,
		Timeout:   e.Timeout,
		Weight:    e.Weight,
		AlwaysRun: e.AlwaysRun,
		Cacheable: e.Cacheable,
		Config:    e.Config,
	}
	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Weight == 0 {
		d.Weight = 1
	}

	switch e.Kind {
	case KindBuiltin, "":
		d.Kind = KindBuiltin
		name := e.Builtin
		if name == "" {
			name = e.ID
		}
		inv, err := analysis.Builtin(name)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, e.ID, err)
		}
		d.Invoker = inv
		if opts.RepoDir != "" {
			if d.Config == nil {
				d.Config = make(map[string]string)
			}
			if _, ok := d.Config["repo_dir"]; !ok {
				d.Config["repo_dir"] = opts.RepoDir
			}
		}
	case KindCommand:
		if len(e.Command) == 0 || e.Command[0] == "" {
			return Descriptor{}, fmt.Errorf("%w: %s: command analyzer needs a command", ErrInvalidDescriptor, e.ID)
		}
		d.Invoker = &analysis.Command{
			Path:  e.Command[0],
			Args:  e.Command[1:],
			Dir:   opts.RepoDir,
			Grace: opts.Grace,
		}
	case KindHTTP:
		if e.URL == "" {
			return Descriptor{}, fmt.Errorf("%w: %s: http analyzer needs a url", ErrInvalidDescriptor, e.ID)
		}
		d.Invoker = &analysis.HTTP{URL: e.URL, Attempts: e.Attempts}
	default:
		return Descriptor{}, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidDescriptor, e.ID, e.Kind)
	}
	return d, nil
}

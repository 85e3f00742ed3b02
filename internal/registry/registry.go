// Package registry holds the static catalog of analyzers a review can run.
//
// A Registry is built once at start-up, from the built-in catalog and an
// optional YAML file, and is read-only afterwards. Every accessor hands out
// copies, so a session can never alter what the next session sees.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/sprite-ai/revgate/internal/analysis"
	"github.com/sprite-ai/revgate/internal/model"
)

var (
	// ErrDuplicate is returned when two descriptors share an id.
	ErrDuplicate = errors.New("duplicate analyzer id")

	// ErrInvalidDescriptor is returned for descriptors that cannot be
	// dispatched: bad id, non-positive timeout or weight, missing invoker.
	ErrInvalidDescriptor = errors.New("invalid analyzer descriptor")

	// ErrInvalidPredicate is returned for malformed globs or size bounds.
	ErrInvalidPredicate = errors.New("invalid predicate")
)

// Kind names how an analyzer is invoked.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindCommand Kind = "command"
	KindHTTP    Kind = "http"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Descriptor is the static description of one analyzer.
type Descriptor struct {
	ID        string
	Kind      Kind
	Predicate Predicate

	// Priority orders selection and dispatch; higher runs first.
	Priority int

	// Timeout bounds a single invocation.
	Timeout time.Duration

	// Weight is the number of parallel slots the analyzer occupies.
	Weight int64

	// AlwaysRun bypasses the predicate.
	AlwaysRun bool

	// Cacheable analyzers are pure per file, so their findings can be
	// reused for any file with the same content hash.
	Cacheable bool

	Config  map[string]string
	Invoker analysis.Invoker
}

// Applies reports whether the descriptor should run on the given files:
// always-run descriptors apply to anything, others need at least one match.
func (d Descriptor) Applies(files []model.FileChange) bool {
	return d.AlwaysRun || d.Predicate.MatchesAny(files)
}

func (d Descriptor) validate() error {
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("%w: id %q must be lowercase letters, digits, '.', '_' or '-'", ErrInvalidDescriptor, d.ID)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be positive", ErrInvalidDescriptor, d.ID)
	}
	if d.Weight < 1 {
		return fmt.Errorf("%w: %s: weight must be at least 1", ErrInvalidDescriptor, d.ID)
	}
	if d.Invoker == nil {
		return fmt.Errorf("%w: %s: no invoker", ErrInvalidDescriptor, d.ID)
	}
	if err := d.Predicate.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.ID, err)
	}
	return nil
}

func (d Descriptor) clone() Descriptor {
	d.Predicate = d.Predicate.clone()
	if d.Config != nil {
		cfg := make(map[string]string, len(d.Config))
		for k, v := range d.Config {
			cfg[k] = v
		}
		d.Config = cfg
	}
	return d
}

// Registry is the validated analyzer catalog.
type Registry struct {
	byID map[string]Descriptor
}

// New validates and registers the descriptors.
func New(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a descriptor. It is meant for start-up only and must not be
// called once sessions are running.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, ok := r.byID[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
	}
	r.byID[d.ID] = d.clone()
	return nil
}

// Get returns a copy of the descriptor with the given id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// All returns copies of every descriptor ordered by id.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.byID))
	for _, id := range r.IDs() {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// IDs returns the sorted descriptor ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	return len(r.byID)
}

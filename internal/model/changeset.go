package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// LineOp is the kind of a line inside a hunk.
type LineOp int

const (
	OpContext LineOp = iota
	OpAdd
	OpDelete
)

func (op LineOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	default:
		return "context"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (op LineOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *LineOp) UnmarshalText(text []byte) error {
	switch string(text) {
	case "add":
		*op = OpAdd
	case "delete":
		*op = OpDelete
	case "context":
		*op = OpContext
	default:
		return fmt.Errorf("unknown line op %q", text)
	}
	return nil
}

// HunkLine is one line of a diff hunk with its position on either side.
type HunkLine struct {
	Op     LineOp `json:"op"`
	Text   string `json:"text"`
	OldNum int    `json:"old,omitempty"` // 0 for added lines
	NewNum int    `json:"new,omitempty"` // 0 for deleted lines
}

// Hunk is a contiguous block of changes inside a file.
type Hunk struct {
	OldStart int        `json:"old_start"`
	OldLines int        `json:"old_lines"`
	NewStart int        `json:"new_start"`
	NewLines int        `json:"new_lines"`
	Header   string     `json:"header,omitempty"`
	Lines    []HunkLine `json:"lines"`
}

// FileChange is one changed file inside a changeset.
type FileChange struct {
	Path        string `json:"path"`
	Language    string `json:"language"`
	ContentHash string `json:"content_hash"`
	Hunks       []Hunk `json:"hunks"`
	Added       int    `json:"added"`
	Deleted     int    `json:"deleted"`
	IsNew       bool   `json:"is_new,omitempty"`
	IsDeleted   bool   `json:"is_deleted,omitempty"`
	IsBinary    bool   `json:"is_binary,omitempty"`
}

// clone returns a copy of f that shares no slices with it.
func (f FileChange) clone() FileChange {
	if f.Hunks == nil {
		return f
	}
	hunks := make([]Hunk, len(f.Hunks))
	for i, h := range f.Hunks {
		h.Lines = append([]HunkLine(nil), h.Lines...)
		hunks[i] = h
	}
	f.Hunks = hunks
	return f
}

// Changed returns the number of added plus deleted lines.
func (f FileChange) Changed() int {
	return f.Added + f.Deleted
}

// AddedLines returns the added lines of the file in order.
func (f FileChange) AddedLines() []HunkLine {
	var out []HunkLine
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Op == OpAdd {
				out = append(out, l)
			}
		}
	}
	return out
}

// Changeset is the unit of review. It is immutable once constructed: files
// are copied in and only copies are handed out.
type Changeset struct {
	files []FileChange
	id    string
}

// NewChangeset builds a changeset from files, ordering them by path.
func NewChangeset(files ...FileChange) *Changeset {
	fs := make([]FileChange, len(files))
	for i, f := range files {
		fs[i] = f.clone()
	}
	sort.SliceStable(fs, func(i, j int) bool {
		return fs[i].Path < fs[j].Path
	})

	h := sha256.New()
	for _, f := range fs {
		h.Write([]byte(f.Path))
		h.Write([]byte{':'})
		h.Write([]byte(f.ContentHash))
		h.Write([]byte{'\n'})
	}

	return &Changeset{files: fs, id: hex.EncodeToString(h.Sum(nil))}
}

// ID is the combined hash of every file's content hash. Two changesets with
// the same files and content share an ID.
func (c *Changeset) ID() string {
	return c.id
}

// Files returns a deep copy of the changed files in path order.
func (c *Changeset) Files() []FileChange {
	out := make([]FileChange, len(c.files))
	for i, f := range c.files {
		out[i] = f.clone()
	}
	return out
}

// Len returns the number of files.
func (c *Changeset) Len() int {
	return len(c.files)
}

// Stats returns aggregate statistics.
func (c *Changeset) Stats() (files, added, deleted int) {
	files = len(c.files)
	for _, f := range c.files {
		added += f.Added
		deleted += f.Deleted
	}
	return
}

// File looks up a file by path.
func (c *Changeset) File(path string) (FileChange, bool) {
	i := sort.Search(len(c.files), func(i int) bool {
		return c.files[i].Path >= path
	})
	if i < len(c.files) && c.files[i].Path == path {
		return c.files[i].clone(), true
	}
	return FileChange{}, false
}

// Package diff handles parsing git diffs into changesets.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/sprite-ai/revgate/internal/model"
)

// File represents a single file in a diff with its parsed fragments.
type File struct {
	OldName      string
	NewName      string
	IsNew        bool
	IsDeleted    bool
	IsRenamed    bool
	IsBinary     bool
	Fragments    []*gitdiff.TextFragment
	AddedLines   int
	DeletedLines int
}

// Name returns the path the file is reviewed under. Deleted files keep
// their old path; everything else uses the new one.
func (f *File) Name() string {
	if f.IsDeleted {
		return f.OldName
	}
	if f.NewName != "" {
		return f.NewName
	}
	return f.OldName
}

// DiffSet holds the parsed diff for all files.
type DiffSet struct {
	Files []*File
	Raw   string // the raw unified diff text
}

// Stats returns aggregate statistics.
func (ds *DiffSet) Stats() (files, added, deleted int) {
	files = len(ds.Files)
	for _, f := range ds.Files {
		added += f.AddedLines
		deleted += f.DeletedLines
	}
	return
}

// Parse reads a unified diff string and returns a DiffSet.
func Parse(raw string) (*DiffSet, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	ds := &DiffSet{Raw: raw}
	for _, f := range parsed {
		df := &File{
			OldName:   f.OldName,
			NewName:   f.NewName,
			IsNew:     f.IsNew,
			IsDeleted: f.IsDelete,
			IsRenamed: f.IsRename,
			IsBinary:  f.IsBinary,
		}

		for _, frag := range f.TextFragments {
			df.Fragments = append(df.Fragments, frag)
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					df.AddedLines++
				case gitdiff.OpDelete:
					df.DeletedLines++
				}
			}
		}

		ds.Files = append(ds.Files, df)
	}

	return ds, nil
}

// Changeset converts the parsed diff into an immutable review changeset.
func (ds *DiffSet) Changeset() *model.Changeset {
	files := make([]model.FileChange, 0, len(ds.Files))
	for _, f := range ds.Files {
		files = append(files, f.change())
	}
	return model.NewChangeset(files...)
}

func (f *File) change() model.FileChange {
	name := f.Name()
	fc := model.FileChange{
		Path:      name,
		Language:  LanguageOf(name),
		Added:     f.AddedLines,
		Deleted:   f.DeletedLines,
		IsNew:     f.IsNew,
		IsDeleted: f.IsDeleted,
		IsBinary:  f.IsBinary,
	}

	for _, frag := range f.Fragments {
		h := model.Hunk{
			OldStart: int(frag.OldPosition),
			OldLines: int(frag.OldLines),
			NewStart: int(frag.NewPosition),
			NewLines: int(frag.NewLines),
			Header:   frag.Comment,
		}

		oldLine := int(frag.OldPosition)
		newLine := int(frag.NewPosition)
		for _, line := range frag.Lines {
			hl := model.HunkLine{Text: strings.TrimRight(line.Line, "\r\n")}
			switch line.Op {
			case gitdiff.OpContext:
				hl.Op = model.OpContext
				hl.OldNum, hl.NewNum = oldLine, newLine
				oldLine++
				newLine++
			case gitdiff.OpDelete:
				hl.Op = model.OpDelete
				hl.OldNum = oldLine
				oldLine++
			case gitdiff.OpAdd:
				hl.Op = model.OpAdd
				hl.NewNum = newLine
				newLine++
			}
			h.Lines = append(h.Lines, hl)
		}
		fc.Hunks = append(fc.Hunks, h)
	}

	fc.ContentHash = contentHash(fc)
	return fc
}

// contentHash hashes the path, the file's add/delete/binary flags and every
// hunk. Diff metadata such as index lines does not contribute, so the same
// edit produced by two different git invocations hashes the same.
func contentHash(fc model.FileChange) string {
	h := sha256.New()
	h.Write([]byte(fc.Path))
	h.Write([]byte{0})
	fmt.Fprintf(h, "new=%t deleted=%t binary=%t\n", fc.IsNew, fc.IsDeleted, fc.IsBinary)
	for _, hunk := range fc.Hunks {
		fmt.Fprintf(h, "@%d,%d\n", hunk.NewStart, hunk.NewLines)
		for _, l := range hunk.Lines {
			switch l.Op {
			case model.OpAdd:
				h.Write([]byte{'+'})
			case model.OpDelete:
				h.Write([]byte{'-'})
			default:
				h.Write([]byte{' '})
			}
			h.Write([]byte(l.Text))
			h.Write([]byte{'\n'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GitDiff runs `git diff` with the given arguments and returns the raw output.
func GitDiff(repoDir string, args ...string) (string, error) {
	cmdArgs := append([]string{"diff", "--no-color"}, args...)
	cmd := exec.Command("git", cmdArgs...)
	cmd.Dir = repoDir
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}

	return string(out), nil
}

// GitDiffHead returns the diff of HEAD against its parent.
func GitDiffHead(repoDir string, contextLines int) (string, error) {
	return GitDiff(repoDir, fmt.Sprintf("-U%d", contextLines), "HEAD~1", "HEAD")
}

// GitDiffRange returns the diff for a commit range like "main...HEAD".
func GitDiffRange(repoDir string, commitRange string, contextLines int) (string, error) {
	return GitDiff(repoDir, fmt.Sprintf("-U%d", contextLines), commitRange)
}

// GitDiffPaths returns the working tree diff against HEAD limited to paths.
func GitDiffPaths(repoDir string, contextLines int, paths ...string) (string, error) {
	args := []string{fmt.Sprintf("-U%d", contextLines), "HEAD", "--"}
	return GitDiff(repoDir, append(args, paths...)...)
}

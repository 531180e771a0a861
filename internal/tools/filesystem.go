package tools

import (
	"os"
	"path/filepath"
	"strings"
)

// Filesystem reads and writes files confined to an allow-listed set of
// root directories. Anything outside the allow-list comes back as a
// permission-denied Result, never a panic or a Go error.
type Filesystem struct {
	Roots []string
}

func NewFilesystem(roots []string) *Filesystem {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		abs = append(abs, a)
	}
	return &Filesystem{Roots: abs}
}

// resolve maps a relative path onto the first allowed root and rejects
// escapes. Absolute paths are only accepted when they already sit inside
// an allowed root.
func (f *Filesystem) resolve(path string) (string, bool) {
	if len(f.Roots) == 0 {
		return "", false
	}
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(f.Roots[0], target)
	}
	target = filepath.Clean(target)
	for _, root := range f.Roots {
		rel, err := filepath.Rel(root, target)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return target, true
	}
	return "", false
}

func (f *Filesystem) Read(args ReadFileArgs) Result {
	if args.Filepath == "" {
		return Fail("filepath is empty")
	}
	target, ok := f.resolve(args.Filepath)
	if !ok {
		return Fail("permission denied: %s is outside the allowed roots", args.Filepath)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return Fail("failed to read %s: %v", args.Filepath, err)
	}
	return Ok(string(data))
}

func (f *Filesystem) Write(args WriteFileArgs) Result {
	if args.Filepath == "" {
		return Fail("filepath is empty")
	}
	target, ok := f.resolve(args.Filepath)
	if !ok {
		return Fail("permission denied: %s is outside the allowed roots", args.Filepath)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return Fail("failed to create parent directory for %s: %v", args.Filepath, err)
	}
	if err := os.WriteFile(target, []byte(args.Content), 0644); err != nil {
		return Fail("failed to write %s: %v", args.Filepath, err)
	}
	return Ok("wrote " + args.Filepath)
}

package classpath

import (
	"os"

	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// An Entry is a file or directory that must be present on the remote host for
// the program to run.
type Entry struct {
	Path string

	// IsDir is true for directories of compiled classes, and false for
	// packaged libraries.
	IsDir bool
}

// Resolver produces the ordered classpath of a project.
type Resolver interface {
	Resolve() ([]Entry, error)
}

// StaticResolver resolves a fixed list of paths, such as the ones listed in
// the project config.
type StaticResolver struct {
	Paths []string
}

// Resolve stats each path to decide whether it's a library or a class
// directory. Duplicate paths are only returned once, in the position of their
// first occurrence.
func (r StaticResolver) Resolve() ([]Entry, error) {
	var entries []Entry
	seen := map[string]struct{}{}
	for _, path := range r.Paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}

		fi, err := fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.FileNotFound{Path: path}
			}
			return nil, errors.WithContext(err, "stat")
		}

		entries = append(entries, Entry{Path: path, IsDir: fi.IsDir()})
	}
	return entries, nil
}

package archive

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/classpath"
	"github.com/sidkik/launchpi/pkg/errors"
)

const (
	// libDir is the archive directory that packaged libraries are placed in.
	libDir = "lib"

	// classesDir is the archive directory that the contents of class
	// directories are placed in.
	classesDir = "classes"
)

// A Member is a local file, and the path it's stored at within the archive.
type Member struct {
	// Name is the path within the archive. Its elements are always joined
	// with `/`, regardless of the local path conventions.
	Name string

	// Path is the local path to the file contents.
	Path string
}

// Members returns the archive members for the given classpath, in classpath
// order. The files within a directory are returned in lexical order, so the
// result is deterministic for a given filesystem state.
func Members(entries []classpath.Entry) ([]Member, error) {
	var members []Member
	for _, entry := range entries {
		if !entry.IsDir {
			members = append(members, Member{
				Name: join(libDir, filepath.Base(entry.Path)),
				Path: entry.Path,
			})
			continue
		}

		// The directory's own name isn't part of the archive path. Only its
		// children are.
		dirMembers, err := walkDir(entry.Path, classesDir)
		if err != nil {
			return nil, errors.WithContext(err, "walk "+entry.Path)
		}
		members = append(members, dirMembers...)
	}
	return members, nil
}

// walkDir returns the members for all files beneath `dir`. `prefix` is the
// archive path of `dir`, and is never modified, so concurrent walks don't
// share any state.
func walkDir(dir, prefix string) ([]Member, error) {
	children, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.WithContext(err, "read dir")
	}

	var members []Member
	for _, child := range children {
		childPath := filepath.Join(dir, child.Name())
		childName := join(prefix, child.Name())

		isDir := child.IsDir()
		if child.Mode()&os.ModeSymlink != 0 {
			target, err := fs.Stat(childPath)
			if err != nil {
				return nil, errors.WithContext(err, "follow symlink")
			}
			isDir = target.IsDir()
		}

		if !isDir {
			members = append(members, Member{Name: childName, Path: childPath})
			continue
		}

		subMembers, err := walkDir(childPath, childName)
		if err != nil {
			return nil, err
		}
		members = append(members, subMembers...)
	}
	return members, nil
}

func join(prefix, name string) string {
	return prefix + "/" + name
}

// Package fswatch notifies when files on a project's classpath change.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/classpath"
	"github.com/sidkik/launchpi/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches the files and directories on the classpath. It sends an event
// on the returned channel whenever something within them changes. Events that
// arrive while the previous one hasn't been received yet are coalesced.
func Watch(entries []classpath.Entry) (chan struct{}, error) {
	pathsToWatch, err := getPathsToWatch(entries)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Warn("File watcher error")
		}
	}()
	return combineUpdates(watchNewDirectories(watcher, watcher.Events)), nil
}

// watchNewDirectories starts watching directories as they're created, so
// that new packages in a class directory are picked up. All events are
// passed through.
func watchNewDirectories(watcher *fsnotify.Watcher, events <-chan fsnotify.Event) <-chan fsnotify.Event {
	passthrough := make(chan fsnotify.Event)
	go func() {
		defer close(passthrough)
		for event := range events {
			if event.Op&fsnotify.Create != 0 {
				if fi, err := fs.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						log.WithError(err).WithField("path", event.Name).Warn(
							"Failed to watch new directory")
					}
				}
			}
			passthrough <- event
		}
	}()
	return passthrough
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func getPathsToWatch(entries []classpath.Entry) (paths []string, err error) {
	for _, entry := range entries {
		fi, err := fs.Stat(entry.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.FileNotFound{Path: entry.Path}
			}
			return nil, errors.WithContext(err, "stat")
		}

		paths = append(paths, entry.Path)
		if fi.IsDir() {
			// Because fsnotify doesn't watch directories recursively, we walk
			// the directory's contents and add all subdirectories and files.
			subpaths, err := getChildren(entry.Path)
			if err != nil {
				return nil, errors.WithContext(err, "get subdirs")
			}
			paths = append(paths, subpaths...)
		} else {
			// Watch the parent directory as well so that we notice when a
			// library is replaced rather than modified in place.
			parent := filepath.Dir(entry.Path)
			if !contains(paths, parent) {
				paths = append(paths, parent)
			}
		}
	}

	return paths, nil
}

func getChildren(dir string) (paths []string, err error) {
	err = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if path != dir {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func contains(slice []string, exp string) bool {
	for _, str := range slice {
		if str == exp {
			return true
		}
	}
	return false
}

package fingerprint

import (
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/errors"
)

const stateVersion = "v1alpha1"

type state struct {
	Version string            `json:"version"`
	Files   map[string]string `json:"files"`
}

// LoadStore reads a Store previously written by Save. A missing file results
// in an empty Store, since that's equivalent to nothing having been shipped.
func LoadStore(path string) (*Store, error) {
	stateBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, errors.WithContext(err, "read")
	}

	var parsed state
	if err := yaml.Unmarshal(stateBytes, &parsed); err != nil {
		return nil, errors.WithContext(err, "parse")
	}

	if parsed.Version != stateVersion {
		return nil, errors.New("unsupported state version %q", parsed.Version)
	}

	store := NewStore()
	for path, digest := range parsed.Files {
		store.digests[path] = digest
	}
	return store, nil
}

// Save writes the recorded digests to `path`.
func (store *Store) Save(path string) error {
	stateBytes, err := yaml.Marshal(state{
		Version: stateVersion,
		Files:   store.Snapshot(),
	})
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	if err := afero.WriteFile(fs, path, stateBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

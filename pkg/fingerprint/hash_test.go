package fingerprint

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/launchpi/pkg/errors"
)

func TestHashFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/a", []byte("a"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "/also-a", []byte("a"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "/b", []byte("b"), 0644))

	digest, err := HashFile("/a")
	assert.NoError(t, err)
	assert.Equal(t, "0cc175b9c0f1b6a831c399e269772661", digest)

	// Same bytes, same digest.
	sameDigest, err := HashFile("/also-a")
	assert.NoError(t, err)
	assert.Equal(t, digest, sameDigest)

	otherDigest, err := HashFile("/b")
	assert.NoError(t, err)
	assert.NotEqual(t, digest, otherDigest)
}

func TestHashMissingFile(t *testing.T) {
	fs = afero.NewMemMapFs()

	_, err := HashFile("/missing")
	hashErr, ok := errors.RootCause(err).(HashError)
	assert.True(t, ok)
	assert.Equal(t, "/missing", hashErr.Path)
}

func TestCanonicalPath(t *testing.T) {
	evalSymlinks = func(path string) (string, error) {
		if path == "/link/a.jar" {
			return "/real/a.jar", nil
		}
		return path, nil
	}

	path, err := CanonicalPath("/link/a.jar")
	assert.NoError(t, err)
	assert.Equal(t, "/real/a.jar", path)

	path, err = CanonicalPath("/real/../real/b.jar")
	assert.NoError(t, err)
	assert.Equal(t, "/real/b.jar", path)

	evalSymlinks = func(string) (string, error) {
		return "", assert.AnError
	}
	_, err = CanonicalPath("/gone")
	assert.Error(t, err)
}

func TestDigester(t *testing.T) {
	digester := NewDigester()
	_, err := digester.Write([]byte("a"))
	assert.NoError(t, err)
	assert.Equal(t, "0cc175b9c0f1b6a831c399e269772661", digester.Digest())

	fileSystem := afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fileSystem, "/a", []byte("a"), 0644))
	digest, err := HashFileOn(fileSystem, "/a")
	assert.NoError(t, err)
	assert.Equal(t, digester.Digest(), digest)
}

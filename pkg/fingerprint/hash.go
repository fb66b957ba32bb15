package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs           = afero.NewOsFs()
	evalSymlinks = filepath.EvalSymlinks
)

// HashError is returned when the digest of a file can't be computed. The
// file's status is unknown, so it must not be treated as unchanged.
type HashError struct {
	Path string
	Err  error
}

func (err HashError) Error() string {
	return fmt.Sprintf("hash %s: %s", err.Path, err.Err)
}

func (err HashError) Unwrap() error {
	return err.Err
}

// A Digester computes the fingerprint of the bytes written to it.
type Digester struct {
	hasher hash.Hash
}

// NewDigester returns a Digester that hasn't seen any bytes.
func NewDigester() *Digester {
	return &Digester{hasher: md5.New()}
}

func (d *Digester) Write(p []byte) (int, error) {
	return d.hasher.Write(p)
}

// Digest returns the lowercase hex encoded digest of the bytes written so far.
func (d *Digester) Digest() string {
	return hex.EncodeToString(d.hasher.Sum(nil))
}

// HashFile returns the digest of the file at the given path.
func HashFile(path string) (string, error) {
	return HashFileOn(fs, path)
}

// HashFileOn is like HashFile, but reads the file from `fileSystem`.
func HashFileOn(fileSystem afero.Fs, path string) (string, error) {
	f, err := fileSystem.Open(path)
	if err != nil {
		return "", HashError{path, errors.WithContext(err, "open")}
	}
	defer f.Close()

	digester := NewDigester()
	if _, err := io.Copy(digester, f); err != nil {
		return "", HashError{path, errors.WithContext(err, "read")}
	}
	return digester.Digest(), nil
}

// CanonicalPath returns the absolute path of `path` with symlinks resolved.
// It's used as the key of the Store so that the same file reached through
// different paths has a single fingerprint.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.WithContext(err, "absolute path")
	}

	resolved, err := evalSymlinks(abs)
	if err != nil {
		return "", errors.WithContext(err, "resolve symlinks")
	}
	return resolved, nil
}

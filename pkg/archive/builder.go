// Package archive packages the changed files of a classpath into a single tar
// archive.
//
// Libraries are stored as `lib/<file>`, and the contents of class directories
// as `classes/<dir>/.../<file>`. Files whose fingerprint matches the one
// recorded in the fingerprint.Store are left out, so the archive only contains
// what changed since the last successful upload.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goSync "sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/classpath"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/fingerprint"
)

// Mocked out for unit testing.
var (
	fs            = afero.NewOsFs()
	tempDir       = os.TempDir
	canonicalPath = fingerprint.CanonicalPath
)

// The maximum number of files hashed in parallel.
const numHashWorkers = 8

// Builder builds the archive for a project.
type Builder struct {
	// Project names the archive file. At most one archive per project name
	// exists at a time.
	Project string

	Store *fingerprint.Store

	// SkipUnhashable makes files that can't be hashed be treated as
	// unchanged, rather than failing the build.
	SkipUnhashable bool

	Log log.FieldLogger
}

// Result describes a built archive.
type Result struct {
	// Path is the local path to the archive.
	Path string

	// Members are the archive paths of the included files, in the order they
	// were written.
	Members []string

	// Pending contains the fingerprints of the included files. They should
	// be committed to the Store once the archive has been delivered.
	Pending fingerprint.Pending
}

type hashResult struct {
	key    string
	digest string
	err    error
}

// Build writes the archive for the given classpath entries. The archive may
// be empty if nothing changed.
func (b Builder) Build(entries []classpath.Entry) (Result, error) {
	logger := b.Log
	if logger == nil {
		logger = log.StandardLogger()
	}

	members, err := Members(entries)
	if err != nil {
		return Result{}, errors.WithContext(err, "list files")
	}

	hashes := hashMembers(members)

	archivePath := filepath.Join(tempDir(), b.Project+".tar")
	if err := fs.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return Result{}, errors.WithContext(err, "remove stale archive")
	}

	if err := fs.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return Result{}, errors.WithContext(err, "make parent")
	}

	f, err := fs.Create(archivePath)
	if err != nil {
		return Result{}, errors.WithContext(err, "create archive")
	}

	res, err := b.write(tar.NewWriter(f), members, hashes, logger)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.WithContext(closeErr, "close archive")
	}

	if err != nil {
		if removeErr := fs.Remove(archivePath); removeErr != nil {
			logger.WithError(removeErr).WithField("path", archivePath).Warn(
				"Failed to clean up partial archive")
		}
		return Result{}, err
	}

	res.Path = archivePath
	return res, nil
}

func (b Builder) write(tw *tar.Writer, members []Member, hashes []hashResult,
	logger log.FieldLogger) (Result, error) {

	res := Result{Pending: fingerprint.Pending{}}
	for i, member := range members {
		hash := hashes[i]
		if hash.err != nil {
			if !b.SkipUnhashable {
				return Result{}, hash.err
			}
			logger.WithError(hash.err).WithField("path", member.Path).Warn(
				"Failed to fingerprint file. Treating it as unchanged.")
			continue
		}

		// A file can show up twice if it's reachable from two classpath
		// entries. Only the first occurrence is shipped.
		if _, ok := res.Pending[hash.key]; ok {
			continue
		}

		if !b.Store.Dirty(hash.key, hash.digest) {
			continue
		}

		digest, err := writeMember(tw, member)
		if err != nil {
			return Result{}, errors.WithContext(err, fmt.Sprintf("write %s", member.Name))
		}

		// Stage the digest of the bytes that were actually archived, in case
		// the file changed since it was hashed. A stale digest just causes the
		// file to be shipped again next time.
		res.Pending[hash.key] = digest
		res.Members = append(res.Members, member.Name)
	}

	if err := tw.Close(); err != nil {
		return Result{}, errors.WithContext(err, "finish archive")
	}

	logger.WithField("files", len(res.Members)).Debug("Built classpath archive")
	return res, nil
}

func writeMember(tw *tar.Writer, member Member) (string, error) {
	f, err := fs.Open(member.Path)
	if err != nil {
		return "", fingerprint.HashError{Path: member.Path, Err: errors.WithContext(err, "open")}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fingerprint.HashError{Path: member.Path, Err: errors.WithContext(err, "stat")}
	}

	// Class files in deep packages easily exceed the 100 character name
	// limit of the basic tar header, so the GNU long name format is always
	// used.
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     member.Name,
		Size:     fi.Size(),
		Mode:     int64(fi.Mode().Perm()),
		ModTime:  fi.ModTime().Truncate(time.Second),
		Format:   tar.FormatGNU,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", errors.WithContext(err, "write header")
	}

	digester := fingerprint.NewDigester()
	src := &memberReader{r: io.TeeReader(f, digester)}
	if _, err := io.CopyN(tw, src, hdr.Size); err != nil {
		// The file shrinking since it was stat'd shows up as an EOF.
		if src.err != nil || err == io.EOF {
			return "", fingerprint.HashError{Path: member.Path, Err: errors.WithContext(err, "read")}
		}
		return "", errors.WithContext(err, "copy contents")
	}
	return digester.Digest(), nil
}

// memberReader records read failures so that they can be told apart from
// failures writing the archive.
type memberReader struct {
	r   io.Reader
	err error
}

func (mr *memberReader) Read(p []byte) (int, error) {
	n, err := mr.r.Read(p)
	if err != nil && err != io.EOF {
		mr.err = err
	}
	return n, err
}

// hashMembers fingerprints the members in parallel. The results are in the
// same order as `members`.
func hashMembers(members []Member) []hashResult {
	results := make([]hashResult, len(members))

	numWorkers := numHashWorkers
	if len(members) < numWorkers {
		numWorkers = len(members)
	}

	var wg goSync.WaitGroup
	toHash := make(chan int, numWorkers*2)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range toHash {
				results[idx] = hashMember(members[idx])
			}
		}()
	}

	for i := range members {
		toHash <- i
	}
	close(toHash)
	wg.Wait()

	return results
}

func hashMember(member Member) hashResult {
	key, err := canonicalPath(member.Path)
	if err != nil {
		return hashResult{err: fingerprint.HashError{Path: member.Path, Err: err}}
	}

	digest, err := fingerprint.HashFileOn(fs, member.Path)
	if err != nil {
		return hashResult{err: err}
	}
	return hashResult{key: key, digest: digest}
}

package archive

import (
	"archive/tar"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/launchpi/pkg/classpath"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/fingerprint"
)

type archivedFile struct {
	name     string
	contents string
}

func setupFs(t *testing.T, files map[string]string) {
	fs = afero.NewMemMapFs()
	tempDir = func() string { return "/tmp" }
	canonicalPath = func(path string) (string, error) { return path, nil }

	for path, contents := range files {
		assert.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0644))
	}
}

func readArchive(t *testing.T, path string) (files []archivedFile) {
	f, err := fs.Open(path)
	if !assert.NoError(t, err) {
		return nil
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files
		}
		if !assert.NoError(t, err) {
			return nil
		}

		assert.Equal(t, byte(tar.TypeReg), hdr.Typeflag)
		contents, err := ioutil.ReadAll(tr)
		assert.NoError(t, err)
		files = append(files, archivedFile{hdr.Name, string(contents)})
	}
}

var testClasspath = []classpath.Entry{
	{Path: "/project/lib/a.jar"},
	{Path: "/project/classes", IsDir: true},
}

func TestBuildIncremental(t *testing.T) {
	setupFs(t, map[string]string{
		"/project/lib/a.jar":           "a",
		"/project/classes/pkg/B.class": "b",
	})
	store := fingerprint.NewStore()
	builder := Builder{Project: "blinky", Store: store}

	// Everything is new, so everything is shipped.
	res, err := builder.Build(testClasspath)
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/blinky.tar", res.Path)
	assert.Equal(t, []string{"lib/a.jar", "classes/pkg/B.class"}, res.Members)
	assert.Equal(t, []archivedFile{
		{"lib/a.jar", "a"},
		{"classes/pkg/B.class", "b"},
	}, readArchive(t, res.Path))
	assert.Len(t, res.Pending, 2)

	// Nothing is recorded until the caller commits.
	assert.Equal(t, 0, store.Len())
	store.Commit(res.Pending)

	// Only the modified class is shipped the second time.
	assert.NoError(t, afero.WriteFile(fs, "/project/classes/pkg/B.class", []byte("b2"), 0644))
	res, err = builder.Build(testClasspath)
	assert.NoError(t, err)
	assert.Equal(t, []string{"classes/pkg/B.class"}, res.Members)
	assert.Equal(t, []archivedFile{{"classes/pkg/B.class", "b2"}}, readArchive(t, res.Path))
	store.Commit(res.Pending)

	b2Digest, err := fingerprint.HashFileOn(fs, "/project/classes/pkg/B.class")
	assert.NoError(t, err)
	recorded, ok := store.Lookup("/project/classes/pkg/B.class")
	assert.True(t, ok)
	assert.Equal(t, b2Digest, recorded)

	// Nothing changed, so the archive is empty.
	res, err = builder.Build(testClasspath)
	assert.NoError(t, err)
	assert.Empty(t, res.Members)
	assert.Empty(t, readArchive(t, res.Path))

	// Reverting a file makes it dirty again, since only the latest digest
	// is remembered.
	assert.NoError(t, afero.WriteFile(fs, "/project/classes/pkg/B.class", []byte("b"), 0644))
	res, err = builder.Build(testClasspath)
	assert.NoError(t, err)
	assert.Equal(t, []string{"classes/pkg/B.class"}, res.Members)
}

func TestBuildWithoutCommit(t *testing.T) {
	setupFs(t, map[string]string{"/project/lib/a.jar": "a"})
	builder := Builder{Project: "blinky", Store: fingerprint.NewStore()}

	_, err := builder.Build(testClasspath[:1])
	assert.NoError(t, err)

	// The first archive was never delivered, so the file is shipped again.
	res, err := builder.Build(testClasspath[:1])
	assert.NoError(t, err)
	assert.Equal(t, []string{"lib/a.jar"}, res.Members)
}

func TestMembers(t *testing.T) {
	setupFs(t, map[string]string{
		"/project/lib/z.jar":                 "z",
		"/project/bin/Main.class":            "main",
		"/project/bin/com/example/A.class":   "a",
		"/project/bin/com/example/b/B.class": "b",
		"/project/bin/app.properties":        "props",
	})
	assert.NoError(t, fs.MkdirAll("/project/bin/empty", 0755))

	members, err := Members([]classpath.Entry{
		{Path: "/project/bin", IsDir: true},
		{Path: "/project/lib/z.jar"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []Member{
		{Name: "classes/Main.class", Path: "/project/bin/Main.class"},
		{Name: "classes/app.properties", Path: "/project/bin/app.properties"},
		{Name: "classes/com/example/A.class", Path: "/project/bin/com/example/A.class"},
		{Name: "classes/com/example/b/B.class", Path: "/project/bin/com/example/b/B.class"},
		{Name: "lib/z.jar", Path: "/project/lib/z.jar"},
	}, members)
}

func TestBuildLongNames(t *testing.T) {
	deepDir := "/project/bin/" + strings.Repeat("deeply/nested/package/", 8)
	setupFs(t, map[string]string{deepDir + "Main.class": "main"})

	res, err := Builder{Project: "blinky", Store: fingerprint.NewStore()}.Build(
		[]classpath.Entry{{Path: "/project/bin", IsDir: true}})
	assert.NoError(t, err)

	expName := "classes/" + strings.Repeat("deeply/nested/package/", 8) + "Main.class"
	assert.True(t, len(expName) > 100)
	assert.Equal(t, []archivedFile{{expName, "main"}}, readArchive(t, res.Path))
}

func TestBuildRemovesStaleArchive(t *testing.T) {
	setupFs(t, map[string]string{
		"/tmp/blinky.tar":    "garbage from a previous run",
		"/project/lib/a.jar": "a",
	})

	res, err := Builder{Project: "blinky", Store: fingerprint.NewStore()}.Build(testClasspath[:1])
	assert.NoError(t, err)
	assert.Equal(t, []archivedFile{{"lib/a.jar", "a"}}, readArchive(t, res.Path))
}

func TestBuildDuplicateEntries(t *testing.T) {
	setupFs(t, map[string]string{"/project/lib/a.jar": "a"})

	res, err := Builder{Project: "blinky", Store: fingerprint.NewStore()}.Build(
		[]classpath.Entry{{Path: "/project/lib/a.jar"}, {Path: "/project/lib/a.jar"}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"lib/a.jar"}, res.Members)
}

func TestBuildHashFailure(t *testing.T) {
	setupFs(t, map[string]string{
		"/project/lib/a.jar":           "a",
		"/project/classes/pkg/B.class": "b",
	})
	canonicalPath = func(path string) (string, error) {
		if path == "/project/lib/a.jar" {
			return "", assert.AnError
		}
		return path, nil
	}

	store := fingerprint.NewStore()
	_, err := Builder{Project: "blinky", Store: store}.Build(testClasspath)
	hashErr, ok := errors.RootCause(err).(fingerprint.HashError)
	assert.True(t, ok)
	assert.Equal(t, "/project/lib/a.jar", hashErr.Path)

	// The partial archive is cleaned up.
	exists, err := afero.Exists(fs, "/tmp/blinky.tar")
	assert.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, store.Len())
}

func TestWriteMemberVanished(t *testing.T) {
	setupFs(t, nil)

	member := Member{Name: "lib/a.jar", Path: "/project/lib/a.jar"}
	_, err := writeMember(tar.NewWriter(ioutil.Discard), member)
	hashErr, ok := errors.RootCause(err).(fingerprint.HashError)
	assert.True(t, ok)
	assert.Equal(t, "/project/lib/a.jar", hashErr.Path)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestWriteMemberArchiveFailure(t *testing.T) {
	setupFs(t, map[string]string{"/project/lib/a.jar": "a"})

	member := Member{Name: "lib/a.jar", Path: "/project/lib/a.jar"}
	_, err := writeMember(tar.NewWriter(failingWriter{}), member)
	assert.Error(t, err)
	_, isHashErr := errors.RootCause(err).(fingerprint.HashError)
	assert.False(t, isHashErr)
}

func TestBuildSkipUnhashable(t *testing.T) {
	setupFs(t, map[string]string{
		"/project/lib/a.jar":           "a",
		"/project/classes/pkg/B.class": "b",
	})
	canonicalPath = func(path string) (string, error) {
		if path == "/project/lib/a.jar" {
			return "", assert.AnError
		}
		return path, nil
	}

	logger, logHook := logrusTest.NewNullLogger()
	res, err := Builder{
		Project:        "blinky",
		Store:          fingerprint.NewStore(),
		SkipUnhashable: true,
		Log:            logger,
	}.Build(testClasspath)
	assert.NoError(t, err)
	assert.Equal(t, []string{"classes/pkg/B.class"}, res.Members)
	assert.NotContains(t, res.Pending, "/project/lib/a.jar")

	entries := logHook.AllEntries()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, logrus.WarnLevel, entries[0].Level)
		assert.Equal(t, "/project/lib/a.jar", entries[0].Data["path"])
	}
}

func TestBuildMissingDirectory(t *testing.T) {
	setupFs(t, nil)

	_, err := Builder{Project: "blinky", Store: fingerprint.NewStore()}.Build(
		[]classpath.Entry{{Path: "/project/classes", IsDir: true}})
	assert.Error(t, err)
	_, isHashErr := errors.RootCause(err).(fingerprint.HashError)
	assert.False(t, isHashErr)
}

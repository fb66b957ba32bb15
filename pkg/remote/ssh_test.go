package remote

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"io/ioutil"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/ssh"

	"github.com/sidkik/launchpi/pkg/config"
	"github.com/sidkik/launchpi/pkg/errors"
)

type runCall struct {
	cmd   string
	stdin string
}

type fakeRunner struct {
	calls  []runCall
	stdout string
	err    error
}

func (r *fakeRunner) run(cmd string, stdin io.Reader, stdout io.Writer) error {
	call := runCall{cmd: cmd}
	if stdin != nil {
		b, err := ioutil.ReadAll(stdin)
		if err != nil {
			return err
		}
		call.stdin = string(b)
	}
	r.calls = append(r.calls, call)

	if stdout != nil {
		if _, err := io.WriteString(stdout, r.stdout); err != nil {
			return err
		}
	}
	return r.err
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in  string
		exp string
	}{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"it's", `'it'"'"'s'`},
		{"$HOME/*", "'$HOME/*'"},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, quote(test.in))
	}
}

func TestInDirectory(t *testing.T) {
	assert.Equal(t, "cd '/home/pi/.launchpi_projects' && java Main ; exit",
		inDirectory("/home/pi/.launchpi_projects", "java Main ; exit"))
}

func TestHome(t *testing.T) {
	runner := &fakeRunner{stdout: "/home/pi"}
	session := &sshSession{run: runner.run}

	home, err := session.Home()
	assert.NoError(t, err)
	assert.Equal(t, "/home/pi", home)
	assert.Equal(t, []runCall{{cmd: `printf '%s' "$HOME"`}}, runner.calls)

	emptyRunner := &fakeRunner{}
	_, err = (&sshSession{run: emptyRunner.run}).Home()
	assert.Error(t, err)

	failingRunner := &fakeRunner{err: assert.AnError}
	_, err = (&sshSession{run: failingRunner.run}).Home()
	assert.Equal(t, assert.AnError, errors.RootCause(err))
}

func TestEnsureStagingDirectory(t *testing.T) {
	runner := &fakeRunner{}
	session := &sshSession{run: runner.run}

	assert.NoError(t, session.EnsureStagingDirectory("/home/pi/.launchpi_projects"))
	assert.Equal(t, []runCall{{
		cmd: "test -d '/home/pi/.launchpi_projects' || mkdir -p '/home/pi/.launchpi_projects'",
	}}, runner.calls)

	failingRunner := &fakeRunner{err: assert.AnError}
	err := (&sshSession{run: failingRunner.run}).EnsureStagingDirectory("/staging")
	assert.Equal(t, assert.AnError, errors.RootCause(err))
}

func TestUpload(t *testing.T) {
	fs = afero.NewMemMapFs()
	canonicalPath = func(path string) (string, error) { return path, nil }

	assert.NoError(t, afero.WriteFile(fs, "/tmp/hello.tar", []byte("archive"), 0644))

	runner := &fakeRunner{}
	session := &sshSession{run: runner.run}
	assert.NoError(t, session.Upload("/tmp/hello.tar", "/home/pi/.launchpi_projects"))
	assert.Equal(t, []runCall{{
		cmd:   "cat > '/home/pi/.launchpi_projects/hello.tar'",
		stdin: "archive",
	}}, runner.calls)

	// Missing local files never reach the remote host.
	runner.calls = nil
	assert.Error(t, session.Upload("/tmp/missing.tar", "/staging"))
	assert.Empty(t, runner.calls)

	failingRunner := &fakeRunner{err: assert.AnError}
	err := (&sshSession{run: failingRunner.run}).Upload("/tmp/hello.tar", "/staging")
	assert.Equal(t, assert.AnError, errors.RootCause(err))
}

func TestNewClientConfig(t *testing.T) {
	fs = afero.NewMemMapFs()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.NoError(t, err)

	var keyPEM bytes.Buffer
	assert.NoError(t, pem.Encode(&keyPEM, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	assert.NoError(t, afero.WriteFile(fs, "/home/user/.ssh/id_rsa", keyPEM.Bytes(), 0600))
	assert.NoError(t, afero.WriteFile(fs, "/home/user/.ssh/garbage", []byte("garbage"), 0600))

	var knownHostsFiles []string
	newKnownHosts = func(files ...string) (ssh.HostKeyCallback, error) {
		knownHostsFiles = files
		return ssh.InsecureIgnoreHostKey(), nil
	}

	tests := []struct {
		name            string
		profile         config.Profile
		expAuthMethods  int
		expKnownHosts   []string
		expError        bool
		expMissingField string
	}{
		{
			name: "Identity file",
			profile: config.Profile{
				User:           "pi",
				IdentityFile:   "/home/user/.ssh/id_rsa",
				KnownHostsFile: "/home/user/.ssh/known_hosts",
			},
			expAuthMethods: 1,
			expKnownHosts:  []string{"/home/user/.ssh/known_hosts"},
		},
		{
			name: "Identity file and password",
			profile: config.Profile{
				User:                  "pi",
				IdentityFile:          "/home/user/.ssh/id_rsa",
				Password:              "raspberry",
				InsecureIgnoreHostKey: true,
			},
			expAuthMethods: 2,
		},
		{
			name: "Password only",
			profile: config.Profile{
				User:                  "pi",
				Password:              "raspberry",
				InsecureIgnoreHostKey: true,
			},
			expAuthMethods: 1,
		},
		{
			name:            "No user",
			profile:         config.Profile{Password: "raspberry"},
			expError:        true,
			expMissingField: "user",
		},
		{
			name:            "No credentials",
			profile:         config.Profile{User: "pi"},
			expError:        true,
			expMissingField: "identityFile or password",
		},
		{
			name: "Missing identity file",
			profile: config.Profile{
				User:         "pi",
				IdentityFile: "/home/user/.ssh/missing",
			},
			expError: true,
		},
		{
			name: "Malformed identity file",
			profile: config.Profile{
				User:         "pi",
				IdentityFile: "/home/user/.ssh/garbage",
			},
			expError: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			knownHostsFiles = nil

			clientConfig, err := newClientConfig(test.profile)
			if test.expError {
				assert.Error(t, err)
				if test.expMissingField != "" {
					assert.Equal(t, errors.MissingFieldError{Field: test.expMissingField},
						errors.RootCause(err))
				}
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.profile.User, clientConfig.User)
			assert.Len(t, clientConfig.Auth, test.expAuthMethods)
			assert.NotNil(t, clientConfig.HostKeyCallback)
			assert.Equal(t, test.expKnownHosts, knownHostsFiles)
		})
	}
}

func TestNewClientConfigKnownHostsError(t *testing.T) {
	newKnownHosts = func(files ...string) (ssh.HostKeyCallback, error) {
		return nil, assert.AnError
	}

	_, err := newClientConfig(config.Profile{User: "pi", Password: "raspberry"})
	assert.Equal(t, assert.AnError, errors.RootCause(err))
}

func TestProcessWithoutSession(t *testing.T) {
	conn := &closeRecorder{}
	process := &Process{conn: conn}

	assert.NoError(t, process.Wait())
	assert.NoError(t, process.Terminate())
	assert.True(t, conn.closed)
}

type closeRecorder struct {
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

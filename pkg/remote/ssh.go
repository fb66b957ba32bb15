package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sidkik/launchpi/pkg/config"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/fingerprint"
)

// Mocked out for unit testing.
var (
	fs            = afero.NewOsFs()
	canonicalPath = fingerprint.CanonicalPath
	newKnownHosts = knownhosts.New
)

const (
	dialTimeout = 30 * time.Second
	loginShell  = `exec "${SHELL:-/bin/sh}" -l`
)

// SSHDialer opens sessions over SSH.
type SSHDialer struct{}

// Dial connects and authenticates to the target host.
func (SSHDialer) Dial(ctx context.Context, target Target) (Session, error) {
	clientConfig, err := newClientConfig(target.Profile)
	if err != nil {
		return nil, errors.WithContext(err, "configure client")
	}

	port := target.Profile.Port
	if port == 0 {
		port = config.DefaultSSHPort
	}
	addr := net.JoinHostPort(target.Host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.WithContext(err, "dial")
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, errors.WithContext(err, "handshake")
	}

	log.WithField("host", addr).Debug("Connected to remote host")
	client := ssh.NewClient(c, chans, reqs)
	return &sshSession{client: client, run: clientRunner(client)}, nil
}

func newClientConfig(profile config.Profile) (*ssh.ClientConfig, error) {
	if profile.User == "" {
		return nil, errors.MissingFieldError{Field: "user"}
	}

	var auth []ssh.AuthMethod
	if profile.IdentityFile != "" {
		keyBytes, err := afero.ReadFile(fs, profile.IdentityFile)
		if err != nil {
			return nil, errors.WithContext(err, "read identity file")
		}

		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, errors.WithContext(err, "parse identity file")
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	if profile.Password != "" {
		auth = append(auth, ssh.Password(profile.Password))
	}

	if len(auth) == 0 {
		return nil, errors.MissingFieldError{Field: "identityFile or password"}
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if !profile.InsecureIgnoreHostKey {
		var err error
		hostKeyCallback, err = newKnownHosts(profile.KnownHostsFile)
		if err != nil {
			return nil, errors.WithContext(err, "load known hosts")
		}
	}

	return &ssh.ClientConfig{
		User:            profile.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}, nil
}

// runner runs a command to completion on the remote host.
type runner func(cmd string, stdin io.Reader, stdout io.Writer) error

type sshSession struct {
	client *ssh.Client
	run    runner
}

func clientRunner(client *ssh.Client) runner {
	return func(cmd string, stdin io.Reader, stdout io.Writer) error {
		session, err := client.NewSession()
		if err != nil {
			return errors.WithContext(err, "open session")
		}
		defer session.Close()

		var stderr bytes.Buffer
		session.Stdin = stdin
		session.Stdout = stdout
		session.Stderr = &stderr
		if err := session.Run(cmd); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return errors.WithContext(err, msg)
			}
			return err
		}
		return nil
	}
}

func (s *sshSession) Home() (string, error) {
	var stdout bytes.Buffer
	if err := s.run(`printf '%s' "$HOME"`, nil, &stdout); err != nil {
		return "", errors.WithContext(err, "get home directory")
	}

	home := stdout.String()
	if home == "" {
		return "", errors.New("remote HOME is not set")
	}
	return home, nil
}

func (s *sshSession) EnsureStagingDirectory(dir string) error {
	// `mkdir` only runs if the directory is missing, so existing contents
	// are never touched.
	cmd := fmt.Sprintf("test -d %s || mkdir -p %s", quote(dir), quote(dir))
	if err := s.run(cmd, nil, nil); err != nil {
		return errors.WithContext(err, fmt.Sprintf("create %s", dir))
	}
	return nil
}

func (s *sshSession) Upload(localPath, remoteDir string) error {
	src, err := canonicalPath(localPath)
	if err != nil {
		return errors.WithContext(err, "resolve local path")
	}

	f, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer f.Close()

	dst := path.Join(remoteDir, path.Base(src))
	if err := s.run("cat > "+quote(dst), f, nil); err != nil {
		return errors.WithContext(err, fmt.Sprintf("write %s", dst))
	}
	return nil
}

func (s *sshSession) RunCommand(workingDir, commandLine string) (*Process, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, errors.WithContext(err, "open session")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, errors.WithContext(err, "stdin")
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, errors.WithContext(err, "stdout")
	}

	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, errors.WithContext(err, "stderr")
	}

	if err := session.Start(inDirectory(workingDir, commandLine)); err != nil {
		session.Close()
		return nil, errors.WithContext(err, "start")
	}

	return &Process{
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		session: session,
		conn:    s,
	}, nil
}

func (s *sshSession) Shell(workingDir string, term Terminal) error {
	session, err := s.client.NewSession()
	if err != nil {
		return errors.WithContext(err, "open session")
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(term.Type, term.Height, term.Width, modes); err != nil {
		return errors.WithContext(err, "request pty")
	}

	session.Stdin = term.Stdin
	session.Stdout = term.Stdout
	session.Stderr = term.Stderr
	return session.Run(inDirectory(workingDir, loginShell))
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

func inDirectory(dir, commandLine string) string {
	return fmt.Sprintf("cd %s && %s", quote(dir), commandLine)
}

// quote quotes `s` so that it's interpreted literally by a POSIX shell.
func quote(s string) string {
	return "'" + strings.Replace(s, "'", `'"'"'`, -1) + "'"
}

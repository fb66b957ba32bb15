package remote

import (
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/sidkik/launchpi/pkg/errors"
)

// Process is a command running on the remote host. The caller is responsible
// for waiting on, or terminating it. Closing the process also closes the
// connection it was started on.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader

	session *ssh.Session
	conn    io.Closer
}

// Wait blocks until the process exits.
func (p *Process) Wait() error {
	if p.session == nil {
		return nil
	}
	return p.session.Wait()
}

// Terminate asks the remote process to exit, and closes the process.
func (p *Process) Terminate() error {
	if p.session != nil {
		// Not all SSH servers support signals. Closing the channel hangs up
		// the remote shell either way.
		_ = p.session.Signal(ssh.SIGTERM)
	}
	return p.Close()
}

// Close releases the channel the process was started on, and the connection
// that owns it.
func (p *Process) Close() error {
	if p.session != nil {
		if err := p.session.Close(); err != nil && err != io.EOF {
			return errors.WithContext(err, "close session")
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return errors.WithContext(err, "close connection")
		}
	}
	return nil
}

// Package stdio implements the channel over the standard streams of a
// tool host subprocess.
package stdio

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/mcp/transport", "stdio")

// DefaultExitGrace is how long Close waits for the process to exit
// after closing its stdin, before killing it.
const DefaultExitGrace = 2 * time.Second

// Command describes the tool host process.
type Command struct {
	Path string
	Args []string
	// Env is appended to the current environment.
	Env []string
	Dir string
	// Stderr receives the process stderr, os.Stderr if nil.
	Stderr io.Writer
}

// Process is a Channel bound to a spawned subprocess.
type Process struct {
	*transport.Stream

	cmd  *exec.Cmd
	once sync.Once
	err  error
}

// Spawn starts the process and returns the channel over its stdin and stdout.
func Spawn(ctx context.Context, c Command) (*Process, error) {
	if c.Path == "" {
		return nil, errors.New("stdio: command is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdio: failed to create stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdio: failed to create stdout pipe")
	}
	if err = cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "stdio: failed to start %q", c.Path)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "spawned",
		"cmd", c.Path,
		"pid", cmd.Process.Pid)

	p := &Process{cmd: cmd}
	p.Stream = transport.NewStream(stdout, stdin, closerFunc(func() error {
		return p.terminate(stdin)
	}))
	return p, nil
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *Process) terminate(stdin io.Closer) error {
	p.once.Do(func() {
		_ = stdin.Close()

		exited := make(chan error, 1)
		go func() {
			exited <- p.cmd.Wait()
		}()

		select {
		case err := <-exited:
			p.err = ignoreExit(err)
		case <-time.After(DefaultExitGrace):
			_ = p.cmd.Process.Kill()
			p.err = ignoreExit(<-exited)
		}
		logger.KV(xlog.DEBUG, "status", "terminated", "pid", p.cmd.Process.Pid)
	})
	return p.err
}

// ignoreExit drops exit status errors, the process is terminated on purpose.
func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// NewServerChannel returns the host side channel over os.Stdin and os.Stdout.
// Nothing else may write to os.Stdout while it is in use.
func NewServerChannel() *transport.Stream {
	return transport.NewStream(os.Stdin, os.Stdout, nil)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Package runtests implements the run_tests tool: it runs the project test
// command and summarizes the results.
package runtests

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/tools", "runtests")

// ToolName is the registered name of the tool.
const ToolName = "run_tests"

// DefaultTimeout is the default time allowed for the test command.
const DefaultTimeout = 5 * time.Minute

// DefaultCommand runs go test with JSON events.
var DefaultCommand = []string{"go", "test", "-json"}

// Config provides the test command.
type Config struct {
	// Dir is the working directory of the command.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// Command is the command and its leading arguments.
	// The output must be go test -json events.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
	// Packages is appended to the command when the request has no path.
	Packages string `json:"packages,omitempty" yaml:"packages,omitempty"`
	// Timeout of the command.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RunRequest represents the tool input.
type RunRequest struct {
	// Path optionally restricts the run to a package pattern, e.g. ./pkg/...
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Tool runs the test command.
type Tool struct {
	cfg Config
}

var _ tools.Tool[RunRequest, Result] = (*Tool)(nil)

// New returns the tool.
func New(cfg Config) *Tool {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.Packages == "" {
		cfg.Packages = "./..."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Tool{cfg: cfg}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Runs the project test suite. Returns the number of passed and failed tests, and a summary of each failure."
}

func (t *Tool) Spec() mcp.ToolSpec {
	return mcp.ToolSpec{
		Name:        ToolName,
		Description: t.Description(),
		Params: []mcp.ParamSpec{
			{Name: "path", Type: mcp.TypeString, Description: "optional package pattern, e.g. ./pkg/..."},
		},
	}
}

func (t *Tool) Call(ctx context.Context, args toolhost.Args) (any, error) {
	var req RunRequest
	if err := tools.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return t.Run(ctx, &req)
}

// Run executes the test command. Test failures and timeouts are reported
// in the result, an error is returned only when the command can not run.
func (t *Tool) Run(ctx context.Context, req *RunRequest) (*Result, error) {
	pkgs := t.cfg.Packages
	if req.Path != "" {
		if filepath.IsAbs(req.Path) || strings.HasPrefix(filepath.Clean(req.Path), "..") || strings.HasPrefix(req.Path, "-") {
			return nil, mcp.InvalidArgument("path", "%q must be a relative package pattern", req.Path)
		}
		pkgs = req.Path
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, t.cfg.Command[1:]...), pkgs)
	cmd := exec.CommandContext(ctx, t.cfg.Command[0], args...)
	cmd.Dir = t.cfg.Dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()

	res := ParseEvents(&stdout)
	res.Elapsed = time.Since(started).Round(time.Millisecond).String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.ContextKV(ctx, xlog.WARNING, "status", "timeout", "timeout", t.cfg.Timeout.String())
		res.Failed++
		res.Failures = append(res.Failures, "test run timed out after "+t.cfg.Timeout.String())
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "failed to run %s", t.cfg.Command[0])
		}
		if res.Passed+res.Failed+res.Skipped == 0 && len(res.Failures) == 0 {
			// nothing parsed: the command failed before running tests
			res.Failed++
			res.Failures = append(res.Failures, firstLine(stderr.String(), "test command exited with "+exitErr.Error()))
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "completed",
		"passed", res.Passed,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"elapsed", res.Elapsed)
	return res, nil
}

func firstLine(s, def string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return def
}

// Command devassist is a developer assistant: it serves the repository tools
// to agents and runs goals against them.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/effective-security/devassist/config"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "cmd")

// Version is set at build time.
var Version = "dev"

var logLevels = map[string]xlog.LogLevel{
	"error":   xlog.ERROR,
	"warning": xlog.WARNING,
	"info":    xlog.INFO,
	"debug":   xlog.DEBUG,
}

// CLI is the command line.
type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" help:"Serve the tools to an agent"`
	Tools  ToolsCmd  `cmd:"" help:"List the tools of the host"`
	Call   CallCmd   `cmd:"" help:"Call a tool by name"`
	Assist AssistCmd `cmd:"" help:"Work on a goal with the decision engine"`
}

// Globals are the flags of every command.
type Globals struct {
	Config   string `short:"c" help:"Path to the config file, DEVASSIST_CONFIG by default" type:"path"`
	LogLevel string `name:"log-level" help:"Log level: error|warning|info|debug" default:"warning" enum:"error,warning,info,debug"`

	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
}

// Context returns the command context.
func (g *Globals) Context() context.Context {
	return g.ctx
}

// LoadConfig loads the config once.
func (g *Globals) LoadConfig() (*config.Config, error) {
	if g.cfg != nil {
		return g.cfg, nil
	}
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	g.cfg = cfg
	return cfg, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run parses the args and runs the command, it returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cli := CLI{
		Globals: Globals{
			ctx:    ctx,
			stdout: stdout,
			stderr: stderr,
		},
	}

	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("devassist"),
		kong.Description("Developer assistant for the repository tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": Version},
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		_, _ = io.WriteString(stderr, err.Error()+"\n")
		return 2
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// help was printed
		return exitCode
	}
	if err != nil {
		parser.Errorf("%s", err.Error())
		return 2
	}

	// logs go to stderr, stdout carries the results
	xlog.SetFormatter(xlog.NewStringFormatter(stderr))
	xlog.SetGlobalLogLevel(logLevels[strings.ToLower(cli.LogLevel)])

	if err = kctx.Run(&cli.Globals); err != nil {
		logger.KV(xlog.DEBUG, "status", "failed", "command", kctx.Command(), "err", err.Error())
		_, _ = io.WriteString(stderr, "devassist: "+err.Error()+"\n")
		return 1
	}
	return 0
}

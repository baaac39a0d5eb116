package main

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/assistants"
	"github.com/effective-security/devassist/callbacks"
	"github.com/effective-security/devassist/encoding"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/pkg/llmfactory"
)

// AssistCmd runs a goal.
type AssistCmd struct {
	Goal          string `arg:"" help:"What to do, e.g. \"find all TODO comments\""`
	MaxIterations int    `name:"max-iterations" help:"Decision engine turns, the config max_iterations by default"`
	Model         string `help:"Model of the decision engine, the config engine model by default"`
	Verbose       bool   `short:"v" help:"Print the run events to stderr"`
	Stats         bool   `help:"Print the run statistics to stderr"`
}

func (c *AssistCmd) Run(g *Globals) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	if c.MaxIterations > 0 {
		cfg.Client.MaxIterations = c.MaxIterations
	}
	if c.Model != "" {
		cfg.Engine.Model = c.Model
	}

	scratchpad := callbacks.NewScratchpad(callbacks.ModeDefault)
	handler := callbacks.NewFanout(scratchpad, callbacks.NewPackageLogger(logger))
	if c.Verbose {
		handler.Add(callbacks.NewPrinter(g.stderr, callbacks.ModeVerbose))
	}

	a, err := assistants.FromConfig(cfg, llmfactory.New(&cfg.LLM), handler)
	if err != nil {
		return err
	}

	answer, err := a.Assist(g.Context(), c.Goal)
	if stats, _ := scratchpad.EndRun(scratchpad.LastRunID()); stats != nil && c.Stats {
		_ = encoding.Encode(g.stderr, encoding.FormatYAML, stats)
	}
	if err != nil && !errors.Is(err, mcp.ErrMaxIterationsExceeded) {
		return err
	}

	// the budget answer is printed, and the run still fails
	if werr := encoding.Encode(g.stdout, encoding.FormatText, answer); werr != nil {
		return werr
	}
	return err
}

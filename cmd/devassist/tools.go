package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/assistants"
	"github.com/effective-security/devassist/encoding"
	"github.com/effective-security/devassist/mcp"
)

// ToolsCmd lists the tools of the configured host.
type ToolsCmd struct {
	Output string `short:"o" help:"Output format: text|json|yaml|toml" default:"text" enum:"text,json,yaml,yml,toml"`
}

func (c *ToolsCmd) Run(g *Globals) error {
	a, err := newAssistant(g)
	if err != nil {
		return err
	}
	list, err := a.Tools(g.Context())
	if err != nil {
		return err
	}
	if c.Output == encoding.FormatText {
		return encoding.Encode(g.stdout, encoding.FormatText, describeTools(list))
	}
	return encoding.Encode(g.stdout, c.Output, list)
}

func describeTools(list []mcp.ToolSpec) string {
	var b strings.Builder
	for _, t := range list {
		b.WriteString(t.Name)
		b.WriteString(": ")
		b.WriteString(t.Description)
		b.WriteString("\n")
		for _, p := range t.Params {
			b.WriteString("  ")
			b.WriteString(p.Name)
			b.WriteString(" ")
			b.WriteString(string(p.Type))
			if p.Required {
				b.WriteString(" (required)")
			}
			if p.Description != "" {
				b.WriteString(": ")
				b.WriteString(p.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// CallCmd calls a single tool.
type CallCmd struct {
	Tool     string   `arg:"" help:"Tool name"`
	Args     []string `arg:"" optional:"" help:"Arguments as key=value pairs"`
	ArgsFile string   `name:"args-file" help:"File with the arguments, json|yaml|toml by extension" type:"existingfile"`
	Output   string   `short:"o" help:"Output format: text|json|yaml|toml" default:"text" enum:"text,json,yaml,yml,toml"`
}

func (c *CallCmd) Run(g *Globals) error {
	args, err := c.arguments()
	if err != nil {
		return err
	}

	a, err := newAssistant(g)
	if err != nil {
		return err
	}
	res, err := a.Call(g.Context(), c.Tool, args)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return res.Err()
	}
	return encoding.Encode(g.stdout, c.Output, res.Value)
}

// arguments merges the args file and the key=value pairs.
func (c *CallCmd) arguments() (map[string]any, error) {
	args := map[string]any{}
	if c.ArgsFile != "" {
		data, err := os.ReadFile(c.ArgsFile)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if err = encoding.Decode(data, encoding.FormatFromPath(c.ArgsFile), &args); err != nil {
			return nil, errors.WithMessagef(err, "invalid args file %q", c.ArgsFile)
		}
	}
	for _, kv := range c.Args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid argument %q, expected key=value", kv)
		}
		args[k] = parseValue(v)
	}
	return args, nil
}

// parseValue returns a bool or a number when the value is one.
func parseValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// newAssistant returns the assistant for tools and call, without a decision engine.
func newAssistant(g *Globals) (*assistants.Assistant, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, err
	}
	dial, err := assistants.NewDialer(&cfg.Host, &cfg.Tools)
	if err != nil {
		return nil, err
	}
	return assistants.New(dial, nil,
		assistants.WithName("devassist", Version),
		assistants.WithStartupTimeout(cfg.Client.StartupTimeout.D()),
		assistants.WithCallTimeout(cfg.Client.CallTimeout.D()),
	), nil
}

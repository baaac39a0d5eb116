// Package releasenotes implements the generate_release_notes tool:
// it renders the git commit history as a markdown changelog.
package releasenotes

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/tools", "releasenotes")

// ToolName is the registered name of the tool.
const ToolName = "generate_release_notes"

const (
	// DefaultMaxCommits is the default number of commits in the notes.
	DefaultMaxCommits = 10
	// MaxCommits is the upper bound of max_commits.
	MaxCommits = 500
	// NoCommits is returned as notes when the range is empty.
	NoCommits = "No commits found for release notes"

	gitTimeout = 30 * time.Second
)

// NotesRequest represents the tool input.
type NotesRequest struct {
	// Since is a tag or revision, the notes cover since..HEAD.
	Since      string `json:"since,omitempty" yaml:"since,omitempty"`
	MaxCommits int    `json:"max_commits,omitempty" yaml:"max_commits,omitempty"`
}

// Commit is a single log entry.
type Commit struct {
	Hash    string `json:"hash" yaml:"hash"`
	Subject string `json:"subject" yaml:"subject"`
}

// NotesResult represents the tool output.
type NotesResult struct {
	Notes   string   `json:"notes" yaml:"notes"`
	Commits []Commit `json:"commits,omitempty" yaml:"commits,omitempty"`
}

// Tool reads the history of the git repository at dir.
type Tool struct {
	dir string
	git string
}

var _ tools.Tool[NotesRequest, NotesResult] = (*Tool)(nil)

// New returns the tool for the repository at dir.
func New(dir string) *Tool {
	return &Tool{
		dir: values.StringsCoalesce(dir, "."),
		git: "git",
	}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Generates markdown release notes from the git commit history, optionally since a tag or revision."
}

func (t *Tool) Spec() mcp.ToolSpec {
	return mcp.ToolSpec{
		Name:        ToolName,
		Description: t.Description(),
		Params: []mcp.ParamSpec{
			{Name: "since", Type: mcp.TypeString, Description: "optional tag or revision, notes cover the commits after it"},
			{Name: "max_commits", Type: mcp.TypeInteger, Default: DefaultMaxCommits, Description: "maximum number of commits"},
		},
	}
}

func (t *Tool) Call(ctx context.Context, args toolhost.Args) (any, error) {
	var req NotesRequest
	if err := tools.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return t.Run(ctx, &req)
}

// Run reads the commits and formats the notes.
func (t *Tool) Run(ctx context.Context, req *NotesRequest) (*NotesResult, error) {
	limit := req.MaxCommits
	if limit == 0 {
		limit = DefaultMaxCommits
	}
	if limit < 0 || limit > MaxCommits {
		return nil, mcp.InvalidArgument("max_commits", "must be between 1 and %d", MaxCommits)
	}

	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	args := []string{"log", "-n", strconv.Itoa(limit), "--pretty=format:%H%x1f%s"}
	if req.Since != "" {
		if strings.HasPrefix(req.Since, "-") {
			return nil, mcp.InvalidArgument("since", "invalid revision %q", req.Since)
		}
		if _, err := t.exec(ctx, "rev-parse", "--verify", "--quiet", req.Since+"^{commit}"); err != nil {
			return nil, mcp.InvalidArgument("since", "unknown revision %q", req.Since)
		}
		args = append(args, req.Since+"..HEAD")
	}

	out, err := t.exec(ctx, args...)
	if err != nil {
		// a repository without commits has no HEAD
		if _, headErr := t.exec(ctx, "rev-parse", "--verify", "--quiet", "HEAD"); headErr != nil {
			if _, repoErr := t.exec(ctx, "rev-parse", "--git-dir"); repoErr == nil {
				return &NotesResult{Notes: NoCommits}, nil
			}
		}
		return nil, err
	}

	commits := ParseLog(out)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "generated",
		"since", req.Since,
		"commits", len(commits))

	return &NotesResult{
		Notes:   Format(commits),
		Commits: commits,
	}, nil
}

func (t *Tool) exec(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.git, append([]string{"-C", t.dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// ParseLog parses the "%H%x1f%s" log format, newest first.
func ParseLog(out string) []Commit {
	var list []Commit
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		hash, subject, _ := strings.Cut(line, "\x1f")
		list = append(list, Commit{
			Hash:    hash,
			Subject: strings.TrimSpace(subject),
		})
	}
	return list
}

// Format renders the commits as markdown.
func Format(commits []Commit) string {
	if len(commits) == 0 {
		return NoCommits
	}

	var b strings.Builder
	b.WriteString("# Release Notes\n\n")
	fmt.Fprintf(&b, "Generated from %d commit(s)\n\n", len(commits))
	for _, c := range commits {
		hash := c.Hash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		fmt.Fprintf(&b, "- %s (%s)\n", c.Subject, hash)
	}
	return b.String()
}

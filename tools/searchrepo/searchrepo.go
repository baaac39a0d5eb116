// Package searchrepo implements the search_repo tool: a case-insensitive
// keyword search over the text files under a repository root.
package searchrepo

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	ignore "github.com/sabhiram/go-gitignore"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/tools", "searchrepo")

// ToolName is the registered name of the tool.
const ToolName = "search_repo"

const (
	// DefaultMaxMatches limits the number of returned matches.
	DefaultMaxMatches = 200
	// DefaultMaxFileSize is the largest file searched, in bytes.
	DefaultMaxFileSize = 1 << 20
	// MaxLineLength limits the text returned per match.
	MaxLineLength = 256

	sniffLen = 8000
)

// SearchRequest represents the tool input.
type SearchRequest struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	// Glob optionally restricts the searched files, e.g. "**/*.go".
	Glob string `json:"glob,omitempty" yaml:"glob,omitempty"`
	// Path optionally restricts the search to a subdirectory of the root.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Match is a line containing the keyword.
type Match struct {
	// File is relative to the root, with forward slashes.
	File string `json:"file" yaml:"file"`
	// Line is 1-based.
	Line int    `json:"line" yaml:"line"`
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// SearchResult represents the tool output.
type SearchResult struct {
	Matches   []Match `json:"matches" yaml:"matches"`
	Truncated bool    `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// Tool searches files under the root directory.
type Tool struct {
	root        string
	maxMatches  int
	maxFileSize int64
	ignore      *ignore.GitIgnore
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// New returns the tool scoped to root.
// Ignore rules are read from root/.gitignore when present.
func New(root string) (*Tool, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid root %q", root)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid root %q", root)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("root %q is not a directory", root)
	}

	t := &Tool{
		root:        abs,
		maxMatches:  DefaultMaxMatches,
		maxFileSize: DefaultMaxFileSize,
	}

	gi := filepath.Join(abs, ".gitignore")
	if _, err = os.Stat(gi); err == nil {
		t.ignore, err = ignore.CompileIgnoreFile(gi)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", gi)
		}
	}
	return t, nil
}

// WithMaxMatches sets the match limit.
func (t *Tool) WithMaxMatches(n int) *Tool {
	if n > 0 {
		t.maxMatches = n
	}
	return t
}

// WithMaxFileSize sets the largest file searched.
func (t *Tool) WithMaxFileSize(n int64) *Tool {
	if n > 0 {
		t.maxFileSize = n
	}
	return t
}

// Root returns the absolute search root.
func (t *Tool) Root() string {
	return t.root
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Searches the repository files for a keyword, case-insensitive. Returns the file and line of each match."
}

func (t *Tool) Spec() mcp.ToolSpec {
	return mcp.ToolSpec{
		Name:        ToolName,
		Description: t.Description(),
		Params: []mcp.ParamSpec{
			{Name: "keyword", Type: mcp.TypeString, Required: true, Description: "text to search for"},
			{Name: "glob", Type: mcp.TypeString, Description: "optional file pattern relative to the repository root, e.g. **/*.go"},
			{Name: "path", Type: mcp.TypeString, Description: "optional subdirectory to search"},
		},
	}
}

func (t *Tool) Call(ctx context.Context, args toolhost.Args) (any, error) {
	var req SearchRequest
	if err := tools.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return t.Run(ctx, &req)
}

// Run performs the search. Files are visited in lexical order,
// so the matches are ordered by file then line.
func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	keyword := strings.ToLower(req.Keyword)
	if strings.TrimSpace(keyword) == "" {
		return nil, mcp.InvalidArgument("keyword", "must not be empty")
	}
	if req.Glob != "" && !doublestar.ValidatePattern(req.Glob) {
		return nil, mcp.InvalidArgument("glob", "invalid pattern %q", req.Glob)
	}

	start, err := t.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{
		Matches: []Match{},
	}
	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			logger.ContextKV(ctx, xlog.DEBUG, "status", "skip", "path", path, "err", err.Error())
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, _ := filepath.Rel(t.root, path)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == start {
				return nil
			}
			if d.Name() == ".git" || t.ignored(rel+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || t.ignored(rel) {
			return nil
		}
		if req.Glob != "" {
			ok, _ := doublestar.Match(req.Glob, rel)
			if !ok {
				return nil
			}
		}

		if t.searchFile(path, rel, keyword, res) {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "searched",
		"keyword", slices.StringUpto(req.Keyword, 32),
		"matches", len(res.Matches),
		"truncated", res.Truncated)
	return res, nil
}

// resolve returns the absolute directory to search,
// which must be inside the root.
func (t *Tool) resolve(sub string) (string, error) {
	if sub == "" || sub == "." {
		return t.root, nil
	}
	if filepath.IsAbs(sub) {
		return "", mcp.InvalidArgument("path", "must be relative to the repository root")
	}
	p := filepath.Join(t.root, filepath.FromSlash(sub))
	rel, err := filepath.Rel(t.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", mcp.InvalidArgument("path", "%q is outside of the repository root", sub)
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.IsDir() {
		return "", mcp.InvalidArgument("path", "%q is not a directory", sub)
	}
	return p, nil
}

func (t *Tool) ignored(rel string) bool {
	return t.ignore != nil && t.ignore.MatchesPath(rel)
}

// searchFile appends the matches of a file and returns true when the limit is reached.
func (t *Tool) searchFile(path, rel, keyword string, res *SearchResult) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.Size() > t.maxFileSize {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		// binary
		return false
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), int(t.maxFileSize)+1)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if !strings.Contains(strings.ToLower(text), keyword) {
			continue
		}
		if len(res.Matches) >= t.maxMatches {
			res.Truncated = true
			return true
		}
		res.Matches = append(res.Matches, Match{
			File: rel,
			Line: line,
			Text: slices.StringUpto(strings.TrimSpace(text), MaxLineLength),
		})
	}
	return false
}

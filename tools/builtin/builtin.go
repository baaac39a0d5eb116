// Package builtin registers the developer tools served by devassist.
package builtin

import (
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools"
	"github.com/effective-security/devassist/tools/releasenotes"
	"github.com/effective-security/devassist/tools/runtests"
	"github.com/effective-security/devassist/tools/searchrepo"
)

// Config provides the tools settings.
type Config struct {
	// Root is the repository root, searched by search_repo
	// and used as the working directory of the other tools.
	Root string
	// Tests configures run_tests. Dir defaults to Root.
	Tests runtests.Config
}

// New returns the built-in tools in registration order:
// search_repo, run_tests, generate_release_notes.
func New(cfg Config) ([]tools.ITool, error) {
	search, err := searchrepo.New(cfg.Root)
	if err != nil {
		return nil, err
	}

	tc := cfg.Tests
	if tc.Dir == "" {
		tc.Dir = search.Root()
	}

	return []tools.ITool{
		search,
		runtests.New(tc),
		releasenotes.New(search.Root()),
	}, nil
}

// Registry returns a registry with the built-in tools.
func Registry(cfg Config) (*toolhost.Registry, error) {
	list, err := New(cfg)
	if err != nil {
		return nil, err
	}
	reg := toolhost.NewRegistry()
	if err = tools.Register(reg, list...); err != nil {
		return nil, err
	}
	return reg, nil
}

package assistants

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/config"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/mcp/transport/httptransport"
	"github.com/effective-security/devassist/mcp/transport/localtransport"
	"github.com/effective-security/devassist/mcp/transport/stdio"
	"github.com/effective-security/devassist/mcp/transport/tcp"
	"github.com/effective-security/devassist/session"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools/builtin"
	"github.com/effective-security/devassist/tools/runtests"
	"github.com/effective-security/xlog"
)

// LocalDialer serves the registry in process.
// Every dial starts a host on a fresh channel pair,
// the host stops when the session closes its end.
func LocalDialer(reg *toolhost.Registry, opts ...toolhost.Option) session.Dialer {
	return func(ctx context.Context) (transport.Channel, error) {
		client, server := localtransport.NewPair()
		h := toolhost.NewHost(reg, opts...)
		go func() {
			if err := h.Serve(context.Background(), server); err != nil {
				logger.KV(xlog.ERROR, "status", "local_host_stopped", "err", err.Error())
			}
			_ = server.Close()
		}()
		return client, nil
	}
}

// NewDialer returns the dialer for the configured transport.
// The local transport serves the built-in tools from tools.
func NewDialer(host *config.HostConfig, tools *config.ToolsConfig) (session.Dialer, error) {
	switch host.Transport {
	case config.TransportLocal, "":
		reg, err := Registry(tools)
		if err != nil {
			return nil, err
		}
		return LocalDialer(reg), nil

	case config.TransportStdio:
		cmd := stdio.Command{
			Path: host.Command,
			Args: host.Args,
			Env:  host.Env,
		}
		if cmd.Path == "" {
			exe, err := os.Executable()
			if err != nil {
				return nil, errors.Wrap(err, "failed to locate the host executable")
			}
			cmd.Path = exe
			if len(cmd.Args) == 0 {
				cmd.Args = []string{"serve", "--transport", config.TransportStdio}
			}
		}
		return func(ctx context.Context) (transport.Channel, error) {
			return stdio.Spawn(ctx, cmd)
		}, nil

	case config.TransportTCP:
		addr := host.Address()
		return func(ctx context.Context) (transport.Channel, error) {
			return tcp.Dial(ctx, addr)
		}, nil

	case config.TransportHTTP:
		url := host.HTTPURL()
		return func(ctx context.Context) (transport.Channel, error) {
			return httptransport.NewClient(url, nil), nil
		}, nil
	}
	return nil, errors.Errorf("unsupported transport: %q", host.Transport)
}

// Registry returns the built-in tools for the config.
func Registry(cfg *config.ToolsConfig) (*toolhost.Registry, error) {
	return builtin.Registry(builtin.Config{
		Root: cfg.Root,
		Tests: runtests.Config{
			Command:  cfg.Tests.Command,
			Packages: cfg.Tests.Packages,
			Timeout:  cfg.Tests.Timeout.D(),
		},
	})
}

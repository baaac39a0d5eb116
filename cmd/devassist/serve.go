package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/assistants"
	"github.com/effective-security/devassist/config"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/mcp/transport/httptransport"
	"github.com/effective-security/devassist/mcp/transport/stdio"
	"github.com/effective-security/devassist/mcp/transport/tcp"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/xlog"
)

// ShutdownTimeout bounds the graceful stop of the http host.
const ShutdownTimeout = 5 * time.Second

// ServeCmd serves the built-in tools.
type ServeCmd struct {
	Transport string `help:"Transport: stdio|tcp|http, the config host transport by default"`
	Root      string `help:"Repository root, the config tools root by default" type:"path"`
	Host      string `help:"Listen host of tcp and http, HOST or 127.0.0.1 by default"`
	Port      int    `help:"Listen port of tcp and http, PORT or 8765 by default"`
}

// Run serves until the channel closes or the context is cancelled.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	if c.Root != "" {
		cfg.Tools.Root = c.Root
	}
	hc := cfg.Host
	if c.Host != "" {
		hc.Host = c.Host
	}
	if c.Port != 0 {
		hc.Port = c.Port
	}
	tr := c.Transport
	if tr == "" {
		tr = hc.Transport
		if tr == config.TransportLocal {
			tr = config.TransportStdio
		}
	}

	reg, err := assistants.Registry(&cfg.Tools)
	if err != nil {
		return err
	}
	host := toolhost.NewHost(reg, toolhost.WithServerInfo("devassist", Version))
	ctx := g.Context()

	logger.ContextKV(ctx, xlog.INFO,
		"status", "serving",
		"transport", tr,
		"root", cfg.Tools.Root,
		"tools", reg.Len())

	switch tr {
	case config.TransportStdio:
		ch := stdio.NewServerChannel()
		defer func() { _ = ch.Close() }()
		return host.Serve(ctx, ch)

	case config.TransportTCP:
		return tcp.ListenAndServe(ctx, hc.Address(), func(ctx context.Context, ch transport.Channel) {
			if err := host.Serve(ctx, ch); err != nil {
				logger.ContextKV(ctx, xlog.ERROR, "status", "serve_failed", "err", err.Error())
			}
		})

	case config.TransportHTTP:
		return serveHTTP(ctx, hc.Address(), host)
	}
	return errors.Errorf("unsupported transport: %q", tr)
}

func serveHTTP(ctx context.Context, addr string, host *toolhost.Host) error {
	mux := http.NewServeMux()
	mux.Handle(httptransport.DefaultEndpoint, httptransport.Handler(host))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.ContextKV(ctx, xlog.INFO, "status", "listening", "addr", l.Addr().String())
	if err = srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}
	return nil
}

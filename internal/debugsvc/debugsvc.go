// Package debugsvc contains the debug HTTP API of the multicast DNS daemon.
package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
)

// Service is the debug HTTP service.  It serves the health check, prometheus
// metrics, pprof, the transport state, and the refresh API on one address.
type Service struct {
	logger *slog.Logger
	srv    *http.Server
}

// Config is the debug HTTP service configuration structure.
type Config struct {
	// Logger is used to log the operation of the service.  It must not be nil.
	Logger *slog.Logger

	// Transport is the multicast transport the state of which is reported.  It
	// must not be nil.
	Transport TransportInfo

	// Refreshers are the entities that can be refreshed through the API.
	Refreshers Refreshers

	// Addr is the address to serve on.  It must not be empty.
	Addr string
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger: c.Logger,
		// #nosec G112 -- Do not set the timeouts, since pprof profiles may take
		// a long time.
		srv: &http.Server{
			Addr:     c.Addr,
			Handler:  newRouter(c),
			ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
		},
	}

	return svc
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// serving in a separate goroutine and doesn't wait for the server to go
// online.  err is always nil; if the server fails, the process exits.
func (svc *Service) Start(ctx context.Context) (err error) {
	go svc.serve(ctx)

	return nil
}

// serve runs the server and exits the process if it stops with an unexpected
// error.
func (svc *Service) serve(ctx context.Context) {
	defer recoverAndExit(ctx, svc.logger)

	svc.logger.InfoContext(ctx, "listening", "addr", svc.srv.Addr)

	err := svc.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		panic(fmt.Errorf("serving on %s: %w", svc.srv.Addr, err))
	}
}

// recoverAndExit recovers a panic, logs it using l, and then exits with
// [osutil.ExitCodeFailure].
func recoverAndExit(ctx context.Context, l *slog.Logger) {
	v := recover()
	if v == nil {
		return
	}

	l.ErrorContext(ctx, "debug server failed", slogutil.KeyError, errors.FromRecovered(v))
	slogutil.PrintStack(ctx, l, slog.LevelError)

	os.Exit(osutil.ExitCodeFailure)
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down debug server: %w", err)
	}

	svc.logger.InfoContext(ctx, "shut down")

	return nil
}

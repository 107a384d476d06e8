package debugsvc

import (
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/AdguardTeam/mdnsmcast/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrDebugPanic is the error used by the debug panic handler.
const ErrDebugPanic errors.Error = "debug panic"

// Paths of the debug handlers, except the pprof ones.
const (
	PathDebugAPIMcast   = "/debug/api/mcast"
	PathDebugAPIRefresh = "/debug/api/refresh"
	PathDebugPanic      = "/debug/panic"
	PathHealthCheck     = "/health-check"
	PathMetrics         = "/metrics"
)

// route is a single debug handler with the level of its request logs.
type route struct {
	handler http.Handler
	method  string
	path    string
	lvl     slog.Level
}

// newRouter returns the handler serving every debug route of c.
func newRouter(c *Config) (h http.Handler) {
	mux := http.NewServeMux()

	routes := []*route{{
		handler: httputil.HealthCheckHandler,
		method:  http.MethodGet,
		path:    PathHealthCheck,
		lvl:     slogutil.LevelTrace,
	}, {
		handler: promhttp.Handler(),
		method:  http.MethodGet,
		path:    PathMetrics,
		lvl:     slogutil.LevelTrace,
	}, {
		handler: &mcastHandler{transport: c.Transport},
		method:  http.MethodGet,
		path:    PathDebugAPIMcast,
		lvl:     slog.LevelDebug,
	}, {
		handler: &refreshHandler{refrs: c.Refreshers},
		method:  http.MethodPost,
		path:    PathDebugAPIRefresh,
		lvl:     slog.LevelInfo,
	}, {
		handler: httputil.PanicHandler(ErrDebugPanic),
		method:  http.MethodPost,
		path:    PathDebugPanic,
		lvl:     slog.LevelInfo,
	}}

	for _, r := range routes {
		mw := httputil.NewLogMiddleware(c.Logger.With("path", r.path), r.lvl)
		mux.Handle(r.method+" "+r.path, mw.Wrap(r.handler))
	}

	pprofMw := httputil.NewLogMiddleware(c.Logger.With("path", "pprof"), slog.LevelDebug)
	httputil.RoutePprof(httputil.RouterFunc(func(pattern string, h http.Handler) {
		mux.Handle(pattern, pprofMw.Wrap(h))
	}))

	return httputil.ServerHeaderMiddleware(version.UserAgent()).Wrap(mux)
}

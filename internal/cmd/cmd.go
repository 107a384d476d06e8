// Package cmd is the mdnsmcast daemon entry point.  It contains the on-disk
// configuration file utilities, the environment, and the wiring of the
// multicast transport with its services.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/mdnsmcast/internal/metrics"
	"github.com/AdguardTeam/mdnsmcast/internal/version"
)

// shutdownSignals are the signals that interrupt the startup.  They are
// available on every supported platform.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Main is the entry point of application.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)

	envs := errors.Must(parseEnvironment())
	errors.Check(envs.Validate())

	lvl := errors.Must(slogutil.VerbosityToLevel(envs.Verbosity))
	baseLogger := slogutil.New(&slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: bool(envs.LogTimestamp),
		Level:        lvl,
	})

	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	mainLogger.InfoContext(
		ctx,
		"mdnsmcast starting",
		"version", version.Version(),
		"revision", version.Revision(),
		"branch", version.Branch(),
		"commit_time", version.CommitTime(),
	)

	errColl := errors.Must(envs.buildErrColl(baseLogger))

	defer reportPanics(ctx, errColl, mainLogger)

	c := errors.Must(parseConfig(envs.ConfPath))

	errors.Check(c.Validate())

	b := newBuilder(&builderConfig{
		envs:       envs,
		conf:       c,
		baseLogger: baseLogger,
		errColl:    errColl,
	})

	errors.Check(b.initCrashReporter(ctx))

	errors.Check(b.initInterfaces(ctx))

	errors.Check(b.initMetrics(ctx))

	errors.Check(b.initTransport(ctx))

	errors.Check(b.sendQueries(ctx))

	errors.Check(b.initAnnouncer(ctx))

	b.mustInitDebugSvc(ctx)

	// Signal that the daemon is started.
	errors.Check(metrics.SetUpGauge(metrics.Namespace, b.promRegisterer))

	// Unregister the signal behavior for ctx.
	stop()
	ctx = context.WithoutCancel(ctx)

	os.Exit(b.handleSignals(ctx))
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/service"
)

// crashReporter redirects the Go runtime crash output and unhandled panics into
// a file, which is removed on a clean shutdown if nothing was written into it.
type crashReporter struct {
	logger  *slog.Logger
	file    *os.File
	dirPath string
	pattern string
}

// newCrashReporter returns a new crash reporter for the directory and file
// name prefix from envs or nil if the crash output is disabled.  envs must be
// valid.
func newCrashReporter(logger *slog.Logger, envs *environment) (r *crashReporter) {
	if !envs.CrashOutputEnabled {
		return nil
	}

	return &crashReporter{
		logger:  logger,
		dirPath: envs.CrashOutputDir,
		pattern: fmt.Sprintf(
			"%s_%s_%07d_*.txt",
			envs.CrashOutputPrefix,
			time.Now().Format("20060102150405"),
			os.Getpid(),
		),
	}
}

// type check
var _ service.Interface = (*crashReporter)(nil)

// Start implements the [service.Interface] for *crashReporter.  If r is nil, err
// is nil.
func (r *crashReporter) Start(ctx context.Context) (err error) {
	if r == nil {
		return nil
	}

	defer func() { err = errors.Annotate(err, "starting crash reporter: %w") }()

	r.file, err = os.CreateTemp(r.dirPath, r.pattern)
	if err != nil {
		// Don't wrap the error, since there is already errors.Annotate here.
		return err
	}

	r.logger = r.logger.With("path", r.file.Name())

	err = debug.SetCrashOutput(r.file, debug.CrashOptions{})
	if err != nil {
		return fmt.Errorf("setting crash output: %w", err)
	}

	r.logger.InfoContext(ctx, "set crash output")

	return nil
}

// Shutdown implements the [service.Interface] for *crashReporter.  The file is
// kept if it's not empty.  If r is nil, err is nil.
func (r *crashReporter) Shutdown(ctx context.Context) (err error) {
	if r == nil {
		return nil
	}

	fi, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("getting crash file info: %w", err)
	} else if fi.Size() > 0 {
		r.logger.WarnContext(ctx, "crash output is not empty; keeping")

		return nil
	}

	err = debug.SetCrashOutput(nil, debug.CrashOptions{})
	if err != nil {
		return fmt.Errorf("resetting crash output: %w", err)
	}

	name := r.file.Name()
	err = errors.Join(r.file.Close(), os.Remove(name))
	if err != nil {
		return fmt.Errorf("removing crash file: %w", err)
	}

	r.logger.DebugContext(ctx, "removed empty crash output")

	return nil
}

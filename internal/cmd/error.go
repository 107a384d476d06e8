package cmd

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
)

// reportPanics reports all panics in Main using errColl, logs them using l, and
// repanics.  It should be called in a defer.
func reportPanics(ctx context.Context, errColl errcoll.Interface, l *slog.Logger) {
	v := recover()
	if v == nil {
		return
	}

	err := errors.FromRecovered(v)
	l.ErrorContext(ctx, "panic in main", slogutil.KeyError, err)
	slogutil.PrintStack(ctx, l, slog.LevelError)

	errColl.Collect(ctx, err)
	if f, ok := errColl.(errcoll.ErrorFlushCollector); ok {
		f.Flush()
	}

	panic(v)
}

// Package optslog contains helpers that keep the per-datagram trace logs from
// allocating when the trace level is disabled.
package optslog

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Trace2 is like [slog.Logger.Log] at [slogutil.LevelTrace], but it doesn't
// box the arguments unless the level is enabled.
func Trace2[T1, T2 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
) {
	if l.Enabled(ctx, slogutil.LevelTrace) {
		l.Log(ctx, slogutil.LevelTrace, msg, name1, arg1, name2, arg2)
	}
}

// Trace3 is like [Trace2] but with three attributes.
func Trace3[T1, T2, T3 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
	name3 string, arg3 T3,
) {
	if l.Enabled(ctx, slogutil.LevelTrace) {
		l.Log(ctx, slogutil.LevelTrace, msg, name1, arg1, name2, arg2, name3, arg3)
	}
}

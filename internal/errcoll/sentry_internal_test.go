package errcoll

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportableError is a [SentryReportableError] for tests.
type reportableError struct {
	reportable bool
}

// type check
var _ SentryReportableError = reportableError{}

// Error implements the [SentryReportableError] interface for reportableError.
func (reportableError) Error() (msg string) { return "reportable" }

// IsSentryReportable implements the [SentryReportableError] interface for
// reportableError.
func (err reportableError) IsSentryReportable() (ok bool) { return err.reportable }

func TestIsReportable(t *testing.T) {
	testCases := []struct {
		err  error
		name string
		want bool
	}{{
		err:  errors.Error("test error"),
		name: "plain",
		want: true,
	}, {
		err:  fmt.Errorf("reading: %w", net.ErrClosed),
		name: "closed",
		want: false,
	}, {
		err:  io.EOF,
		name: "eof",
		want: false,
	}, {
		err:  fmt.Errorf("wrapped: %w", reportableError{reportable: true}),
		name: "reportable",
		want: true,
	}, {
		err:  fmt.Errorf("wrapped: %w", reportableError{reportable: false}),
		name: "not_reportable",
		want: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isReportable(tc.err))
		})
	}
}

func TestSentryErrorCollector_Collect(t *testing.T) {
	// An empty DSN makes the client drop all events.
	cli, err := sentry.NewClient(sentry.ClientOptions{})
	require.NoError(t, err)

	c := NewSentryErrorCollector(cli, slogutil.NewDiscardLogger())

	assert.NotPanics(t, func() {
		c.Collect(context.Background(), errors.Error("test error"))
		c.Collect(context.Background(), net.ErrClosed)
		c.Flush()
	})
}

package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/mdnsmcast/internal/debugsvc"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
	"github.com/AdguardTeam/mdnsmcast/internal/version"
	"github.com/caarlos0/env/v7"
	"github.com/getsentry/sentry-go"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	ConfPath          string `env:"CONFIG_PATH" envDefault:"./config.yaml"`
	CrashOutputDir    string `env:"CRASH_OUTPUT_DIR"`
	CrashOutputPrefix string `env:"CRASH_OUTPUT_PREFIX" envDefault:"mdnsmcast"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"text"`
	SentryDSN         string `env:"SENTRY_DSN" envDefault:"stderr"`

	ListenAddr net.IP `env:"LISTEN_ADDR" envDefault:"127.0.0.1"`

	ListenPort uint16 `env:"LISTEN_PORT" envDefault:"8181"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	CrashOutputEnabled strictBool `env:"CRASH_OUTPUT_ENABLED" envDefault:"0"`
	LogTimestamp       strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	errs := []error{
		validate.NotEmpty("CONFIG_PATH", envs.ConfPath),
		validate.NotEmpty("SENTRY_DSN", envs.SentryDSN),
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	if envs.ListenAddr == nil {
		errs = append(errs, fmt.Errorf("LISTEN_ADDR: %w", errors.ErrNoValue))
	}

	errs = envs.validateCrashOutput(errs)

	return errors.Join(errs...)
}

// validateCrashOutput appends validation errors to orig if the environment
// variables for crash reporting contain errors.
func (envs *environment) validateCrashOutput(orig []error) (errs []error) {
	errs = orig

	if !envs.CrashOutputEnabled {
		return errs
	}

	err := validateDir(envs.CrashOutputDir)
	if err != nil {
		errs = append(errs, fmt.Errorf("CRASH_OUTPUT_DIR: %w", err))
	}

	return append(errs, validate.NotEmpty("CRASH_OUTPUT_PREFIX", envs.CrashOutputPrefix))
}

// validateDir returns an error if dirPath is not a path to a directory.
func validateDir(dirPath string) (err error) {
	if dirPath == "" {
		return errors.ErrEmptyValue
	}

	fi, err := os.Stat(dirPath)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return err
	}

	if !fi.IsDir() {
		return errors.Error("not a directory")
	}

	return nil
}

// buildErrColl builds and returns an error collector from environment.
func (envs *environment) buildErrColl(
	baseLogger *slog.Logger,
) (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating sentry client: %w", err)
	}

	l := baseLogger.With(slogutil.KeyPrefix, "sentry_errcoll")

	return errcoll.NewSentryErrorCollector(cli, l), nil
}

// debugConf returns a debug HTTP service configuration from environment.
func (envs *environment) debugConf(
	transport debugsvc.TransportInfo,
	refrs debugsvc.Refreshers,
	logger *slog.Logger,
) (conf *debugsvc.Config) {
	return &debugsvc.Config{
		Logger:     logger.With(slogutil.KeyPrefix, "debugsvc"),
		Transport:  transport,
		Refreshers: refrs,
		Addr:       netutil.JoinHostPort(envs.ListenAddr.String(), envs.ListenPort),
	}
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	switch string(b) {
	case "0":
		*sb = false
	case "1":
		*sb = true
	default:
		return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/mdnsmcast/internal/debugsvc"
	"github.com/AdguardTeam/mdnsmcast/internal/dnsmsg"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/AdguardTeam/mdnsmcast/internal/metrics"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/prometheus/client_golang/prometheus"
)

// builder contains the logic of configuring and combining together the
// entities of the daemon.
//
// NOTE:  The order of the methods should generally reflect the order in which
// they are called.
type builder struct {
	baseLogger     *slog.Logger
	conf           *configuration
	debugRefrs     debugsvc.Refreshers
	env            *environment
	errColl        errcoll.Interface
	ifaceStorage   netiface.InterfaceStorage
	logger         *slog.Logger
	promRegisterer prometheus.Registerer
	sigHdlr        *service.SignalHandler

	// The fields below are initialized later by calling the builder's methods.
	// Keep them sorted.

	ifaces    []netiface.NetInterface
	mcastMtrc *metrics.Mcast
	transport *mcast.Transport
}

// builderConfig contains the initial configuration for the builder.
type builderConfig struct {
	// envs contains the environment variables for the builder.  It must be
	// valid and must not be nil.
	envs *environment

	// conf contains the configuration from the configuration file for the
	// builder.  It must be valid and must not be nil.
	conf *configuration

	// baseLogger is used to create loggers for other entities.  It should not
	// have a prefix and must not be nil.
	baseLogger *slog.Logger

	// errColl is used to collect errors in the entities.  It must not be nil.
	errColl errcoll.Interface
}

// shutdownTimeout is the default shutdown timeout for all services.
const shutdownTimeout = 5 * time.Second

// debugIDAnnounce is the ID of the announcement refresher in the debug API.
const debugIDAnnounce = "announce"

// newBuilder returns a new properly initialized builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		baseLogger:     c.baseLogger,
		conf:           c.conf,
		debugRefrs:     debugsvc.Refreshers{},
		env:            c.envs,
		errColl:        c.errColl,
		ifaceStorage:   netiface.DefaultInterfaceStorage{},
		logger:         c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		promRegisterer: prometheus.DefaultRegisterer,
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
	}
}

// initCrashReporter initializes and starts the crash reporter, if enabled.
func (b *builder) initCrashReporter(ctx context.Context) (err error) {
	crashRep := newCrashReporter(b.baseLogger.With(slogutil.KeyPrefix, "crash_reporter"), b.env)
	if crashRep == nil {
		return nil
	}

	err = crashRep.Start(ctx)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	b.sigHdlr.AddService(crashRep)

	b.logger.DebugContext(ctx, "initialized crash reporter")

	return nil
}

// initInterfaces finds the network interfaces for the transport.  If the
// configuration names no interfaces, all interfaces that are up and support
// multicast are used.
func (b *builder) initInterfaces(ctx context.Context) (err error) {
	names := b.conf.Transport.Interfaces
	if len(names) == 0 {
		b.ifaces, err = b.ifaceStorage.Interfaces()
		if err != nil {
			return fmt.Errorf("listing interfaces: %w", err)
		}
	} else {
		b.ifaces = make([]netiface.NetInterface, 0, len(names))
		for _, name := range names {
			var iface netiface.NetInterface
			iface, err = b.ifaceStorage.InterfaceByName(name)
			if err != nil {
				return fmt.Errorf("getting interface %q: %w", name, err)
			}

			b.ifaces = append(b.ifaces, iface)
		}
	}

	b.logger.DebugContext(ctx, "initialized interfaces", "num", len(b.ifaces))

	return nil
}

// initMetrics registers the metrics of the transport.
func (b *builder) initMetrics(ctx context.Context) (err error) {
	b.mcastMtrc, err = metrics.NewMcast(metrics.Namespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering mcast metrics: %w", err)
	}

	b.logger.DebugContext(ctx, "initialized metrics")

	return nil
}

// initTransport creates, subscribes to, starts, and registers the multicast
// transport.
//
// The following methods must be called before this one:
//   - [builder.initInterfaces]
//   - [builder.initMetrics]
func (b *builder) initTransport(ctx context.Context) (err error) {
	c := b.conf.Transport

	b.transport, err = mcast.New(ctx, &mcast.Config{
		Logger:       b.baseLogger.With(slogutil.KeyPrefix, "mcast"),
		ErrColl:      b.errColl,
		Metrics:      b.mcastMtrc,
		ListenConfig: mcast.NewDefaultListenConfig(c.toControlConfig()),
		Interfaces:   b.ifaces,
		// #nosec G115 -- The value is validated to be small enough.
		ReceiveBufferSize: int(c.ReceiveBufferSize.Bytes()),
		UseIPv4:           c.IPv4,
		UseIPv6:           c.IPv6,
	})
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}

	_ = b.transport.Subscribe(newInboundLogger(b.baseLogger))

	err = b.transport.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	b.sigHdlr.AddService(b.transport)

	senders := b.transport.Senders()
	if len(senders) == 0 {
		b.logger.WarnContext(ctx, "no usable local addresses; sending is disabled")
	}

	b.logger.DebugContext(
		ctx,
		"initialized transport",
		"senders", len(senders),
		"receivers", b.transport.ReceiverCount(),
		"ifaces", b.transport.Interfaces(),
	)

	return nil
}

// sendQueries sends the address queries for the configured names, if any.
//
// [builder.initTransport] must be called before this method.
func (b *builder) sendQueries(ctx context.Context) (err error) {
	names := b.conf.Query.Names
	if len(names) == 0 {
		return nil
	}

	packed, err := dnsmsg.NewQuery(names).Pack()
	if err != nil {
		return fmt.Errorf("packing query: %w", err)
	}

	b.transport.Send(ctx, packed)

	b.logger.DebugContext(ctx, "sent queries", "names", names)

	return nil
}

// initAnnouncer creates, starts, and registers the announcer, if enabled.  It
// also adds the announcer with ID [debugIDAnnounce] to the debug refreshers.
//
// [builder.initTransport] must be called before this method.
func (b *builder) initAnnouncer(ctx context.Context) (err error) {
	c := b.conf.Announce
	if !c.Enabled {
		return nil
	}

	a := newAnnouncer(&announcerConfig{
		baseLogger: b.baseLogger,
		transport:  b.transport,
		host:       c.Hostname,
		ttl:        time.Duration(c.TTL),
		interval:   time.Duration(c.Interval),
		timeout:    time.Duration(c.Timeout),
	})

	err = a.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting announcer: %w", err)
	}

	// The signal handler shuts the services down in the reverse order, so the
	// goodbye is sent before the transport is closed.
	b.sigHdlr.AddService(a)

	b.debugRefrs[debugIDAnnounce] = a

	b.logger.DebugContext(ctx, "initialized announcer", "host", c.Hostname)

	return nil
}

// mustInitDebugSvc initializes, starts, and registers the debug service.  The
// debug HTTP service is considered critical, so it panics instead of returning
// an error.
//
// The following methods must be called before this one:
//   - [builder.initAnnouncer]
//   - [builder.initTransport]
func (b *builder) mustInitDebugSvc(ctx context.Context) {
	debugSvc := debugsvc.New(b.env.debugConf(b.transport, b.debugRefrs, b.baseLogger))

	// The debug HTTP service is considered critical, so its Start method exits
	// the process instead of returning an error.
	_ = debugSvc.Start(context.WithoutCancel(ctx))

	b.sigHdlr.AddService(debugSvc)

	b.logger.DebugContext(
		ctx,
		"initialized debug",
		"refr_ids", slices.Sorted(maps.Keys(b.debugRefrs)),
	)
}

// handleSignals blocks and processes signals from the OS.  code is
// [osutil.ExitCodeSuccess] on success and [osutil.ExitCodeFailure] on error.
//
// handleSignals must not be called concurrently with any other methods.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	return b.sigHdlr.Handle(ctx)
}

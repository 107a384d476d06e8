package cmd

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/c2h5oh/datasize"
	"github.com/miekg/dns"
	"gopkg.in/yaml.v2"
)

// configuration represents the on-disk configuration of the daemon.  The order
// of the fields should generally not be altered.
type configuration struct {
	// Transport is the multicast transport configuration.
	Transport *transportConfig `yaml:"transport"`

	// Announce is the configuration of the periodic hostname announcements.
	Announce *announceConfig `yaml:"announce"`

	// Query is the configuration of the queries sent at startup.
	Query *queryConfig `yaml:"query"`
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	// Keep this in the same order as the fields in the config.
	validators := container.KeyValues[string, validate.Interface]{{
		Key:   "transport",
		Value: c.Transport,
	}, {
		Key:   "announce",
		Value: c.Announce,
	}, {
		Key:   "query",
		Value: c.Query,
	}}

	var errs []error
	for _, kv := range validators {
		errs = validate.Append(errs, kv.Key, kv.Value)
	}

	return errors.Join(errs...)
}

// parseConfig reads the configuration.
func parseConfig(confPath string) (c *configuration, err error) {
	// #nosec G304 -- Trust the path to the configuration file that is given
	// from the environment.
	yamlFile, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &configuration{}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}

// Limits of the buffer sizes.  Datagrams longer than the receive buffer are
// truncated, so it must fit the largest multicast DNS message.
const (
	minRecvBufSize = mcast.DefaultReceiveBufferSize * datasize.B
	maxRecvBufSize = 64 * datasize.KB
	maxSockBufSize = 64 * datasize.MB
)

// transportConfig is the multicast transport configuration.
type transportConfig struct {
	// Interfaces are the names of the network interfaces to use.  If empty,
	// all interfaces that are up and support multicast are used.
	Interfaces []string `yaml:"interfaces"`

	// ReceiveBufferSize is the size of the buffers for incoming datagrams.
	ReceiveBufferSize datasize.ByteSize `yaml:"receive_buffer_size"`

	// SORcvBuf is the value of the SO_RCVBUF option of the sockets.  Zero means
	// the system default.
	SORcvBuf datasize.ByteSize `yaml:"so_rcvbuf"`

	// SOSndBuf is the value of the SO_SNDBUF option of the sockets.  Zero means
	// the system default.
	SOSndBuf datasize.ByteSize `yaml:"so_sndbuf"`

	// IPv4 enables the IPv4 multicast group.
	IPv4 bool `yaml:"ipv4"`

	// IPv6 enables the IPv6 multicast group.
	IPv6 bool `yaml:"ipv6"`
}

// type check
var _ validate.Interface = (*transportConfig)(nil)

// Validate implements the [validate.Interface] interface for *transportConfig.
func (c *transportConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.InRange(
			"receive_buffer_size",
			c.ReceiveBufferSize,
			minRecvBufSize,
			maxRecvBufSize,
		),
		validate.InRange("so_rcvbuf", c.SORcvBuf, 0, maxSockBufSize),
		validate.InRange("so_sndbuf", c.SOSndBuf, 0, maxSockBufSize),
	}

	if !c.IPv4 && !c.IPv6 {
		errs = append(errs, errors.Error("ipv4, ipv6: at least one must be enabled"))
	}

	for i, name := range c.Interfaces {
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("interfaces: at index %d: %w", i, errors.ErrEmptyValue))
		case slices.Index(c.Interfaces, name) != i:
			errs = append(errs, fmt.Errorf("interfaces: at index %d: duplicate %q", i, name))
		default:
			// Go on.
		}
	}

	return errors.Join(errs...)
}

// toControlConfig converts c into the socket options configuration.  c must be
// valid.
func (c *transportConfig) toControlConfig() (conf *mcast.ControlConfig) {
	return &mcast.ControlConfig{
		// #nosec G115 -- The values are validated to be small enough.
		RcvBufSize: int(c.SORcvBuf.Bytes()),
		// #nosec G115 -- The values are validated to be small enough.
		SndBufSize: int(c.SOSndBuf.Bytes()),
	}
}

// announceConfig is the configuration of the periodic unsolicited responses
// announcing the addresses of the host.
type announceConfig struct {
	// Hostname is the name to announce, for example "myhost.local".
	Hostname string `yaml:"hostname"`

	// TTL is the TTL of the announced address records.
	TTL timeutil.Duration `yaml:"ttl"`

	// Interval is the time between announcements.
	Interval timeutil.Duration `yaml:"interval"`

	// Timeout is the timeout of a single announcement.
	Timeout timeutil.Duration `yaml:"timeout"`

	// Enabled shows if the announcements are sent.  If it is false, the rest of
	// the settings are ignored.
	Enabled bool `yaml:"enabled"`
}

// Limits of the TTL of announced records.
const (
	minAnnounceTTL = timeutil.Duration(time.Second)
	maxAnnounceTTL = timeutil.Duration(24 * time.Hour)
)

// type check
var _ validate.Interface = (*announceConfig)(nil)

// Validate implements the [validate.Interface] interface for *announceConfig.
func (c *announceConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	} else if !c.Enabled {
		return nil
	}

	errs := []error{
		validate.NotEmpty("hostname", c.Hostname),
		validate.InRange("ttl", c.TTL, minAnnounceTTL, maxAnnounceTTL),
		validate.Positive("interval", c.Interval),
		validate.Positive("timeout", c.Timeout),
	}

	if c.Hostname != "" {
		if _, ok := dns.IsDomainName(c.Hostname); !ok {
			errs = append(errs, fmt.Errorf("hostname: bad domain name %q", c.Hostname))
		}
	}

	return errors.Join(errs...)
}

// queryConfig is the configuration of the queries sent once the transport is
// started.
type queryConfig struct {
	// Names are the domain names to query the addresses of.  If empty, no
	// queries are sent.
	Names []string `yaml:"names"`
}

// type check
var _ validate.Interface = (*queryConfig)(nil)

// Validate implements the [validate.Interface] interface for *queryConfig.
func (c *queryConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	var errs []error
	for i, name := range c.Names {
		if _, ok := dns.IsDomainName(name); !ok || name == "" {
			errs = append(errs, fmt.Errorf("names: at index %d: bad domain name %q", i, name))
		}
	}

	return errors.Join(errs...)
}

// Package config loads the toolkit's runtime defaults from TOML,
// following the teacher's cmd/dtnd/configuration.go tomlConfig idiom:
// a flat struct of nested blocks, decoded with
// github.com/BurntSushi/toml, plus logging setup driven straight out
// of the decoded Logging block.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/netcore/rendezvous"
	"github.com/dtn7/netcore/tcpconn"
)

// Config holds every tunable the connection and discovery layers
// consult. LoadTOML starts from Default, so fields a file leaves out
// keep their default values.
type Config struct {
	Connection ConnectionConf
	Discovery  DiscoveryConf
	Logging    LogConf
}

// ConnectionConf mirrors spec.md §6's TcpConnection defaults.
type ConnectionConf struct {
	Address               string
	ReceiveBufferCapacity int
	SendBufferCapacity    int
	KeepAliveIntervalSecs float64 `toml:"keep-alive-interval-secs"`
	AutoReconnect         bool    `toml:"auto-reconnect"`
	MaxReconnectAttempts  int     `toml:"max-reconnect-attempts"`
	ReconnectIntervalSecs float64 `toml:"reconnect-interval-secs"`
	DialTimeoutSecs       float64 `toml:"dial-timeout-secs"`
}

// DiscoveryConf mirrors the teacher's discoveryConf block.
type DiscoveryConf struct {
	Port              int
	Identifier        string
	RetryIntervalSecs float64 `toml:"retry-interval-secs"`
}

// LogConf mirrors the teacher's logConf block exactly.
type LogConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// KeepAliveInterval converts the TOML-friendly float seconds field
// into a time.Duration for tcpconn.Options.
func (c ConnectionConf) KeepAliveInterval() time.Duration {
	return secondsToDuration(c.KeepAliveIntervalSecs)
}

// ReconnectInterval converts ReconnectIntervalSecs to a Duration.
func (c ConnectionConf) ReconnectInterval() time.Duration {
	return secondsToDuration(c.ReconnectIntervalSecs)
}

// DialTimeout converts DialTimeoutSecs to a Duration.
func (c ConnectionConf) DialTimeout() time.Duration {
	return secondsToDuration(c.DialTimeoutSecs)
}

// RetryInterval converts DiscoveryConf's RetryIntervalSecs to a
// Duration.
func (d DiscoveryConf) RetryInterval() time.Duration {
	return secondsToDuration(d.RetryIntervalSecs)
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// Options converts the decoded buffer/keep-alive fields into a
// tcpconn.Options, the form both TcpClientConnection and TcpServer
// actually accept.
func (c ConnectionConf) Options() tcpconn.Options {
	return tcpconn.Options{
		ReceiveBufferCapacity: c.ReceiveBufferCapacity,
		SendBufferCapacity:    c.SendBufferCapacity,
		KeepAliveInterval:     c.KeepAliveInterval(),
	}
}

// ReconnectPolicy converts the decoded auto-reconnect fields into a
// tcpconn.ReconnectPolicy.
func (c ConnectionConf) ReconnectPolicy() tcpconn.ReconnectPolicy {
	return tcpconn.ReconnectPolicy{
		Enabled:     c.AutoReconnect,
		MaxAttempts: c.MaxReconnectAttempts,
		Interval:    c.ReconnectInterval(),
		DialTimeout: c.DialTimeout(),
	}
}

// Default returns the built-in configuration, matching spec.md §6's
// enumerated defaults.
func Default() Config {
	return Config{
		Connection: ConnectionConf{
			ReceiveBufferCapacity: 4096,
			SendBufferCapacity:    4096,
			KeepAliveIntervalSecs: 5,
			AutoReconnect:         true,
			MaxReconnectAttempts:  -1,
			ReconnectIntervalSecs: 1,
			DialTimeoutSecs:       5,
		},
		Discovery: DiscoveryConf{
			RetryIntervalSecs: 1,
		},
		Logging: LogConf{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadTOML decodes a TOML file into a Config seeded with Default,
// so a file only needs to specify the values it overrides. Mirrors
// the teacher's parseCore reading a single tomlConfig via
// toml.DecodeFile.
func LoadTOML(filename string) (Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return Config{}, fmt.Errorf("config: failed to decode %q: %w", filename, err)
	}
	return conf, nil
}

// NewClientConnection constructs a tcpconn.ClientConnection dialing
// Connection.Address, using this Config's buffer, keep-alive, and
// reconnect settings. Mirrors the teacher's parsePeer, which turns a
// decoded convergenceConf directly into a live convergable.
func (c Config) NewClientConnection(cb tcpconn.Callbacks) *tcpconn.ClientConnection {
	return tcpconn.NewClientConnection(c.Connection.Address, c.Connection.Options(), c.Connection.ReconnectPolicy(), cb)
}

// NewDiscoveringTcpSocket constructs a rendezvous.DiscoveringTcpSocket
// searching for Discovery.Identifier on Discovery.Port, using this
// Config's discovery retry interval and connection dial timeout.
func (c Config) NewDiscoveringTcpSocket() *rendezvous.DiscoveringTcpSocket {
	return rendezvous.NewDiscoveringTcpSocket(
		c.Discovery.Identifier,
		c.Discovery.Port,
		c.Discovery.RetryInterval(),
		c.Connection.DialTimeout(),
	)
}

// NewDiscoverableTcpSocket constructs a rendezvous.DiscoverableTcpSocket
// bound to Connection.Address, advertising Discovery.Identifier on
// Discovery.Port. Mirrors the teacher's parseListen, which turns a
// decoded convergenceConf into a bound listener plus its discovery
// advertisement.
func (c Config) NewDiscoverableTcpSocket(cb tcpconn.Callbacks, onAccept func(*tcpconn.ServerConnection)) (*rendezvous.DiscoverableTcpSocket, error) {
	return rendezvous.NewDiscoverableTcpSocket(
		c.Connection.Address,
		c.Discovery.Port,
		c.Discovery.Identifier,
		c.Connection.Options(),
		cb,
		onAccept,
	)
}

// ApplyLogging configures logrus's package-level logger from the
// decoded Logging block, following the teacher's parseCore verbatim:
// unset level falls back to whatever logrus already has configured,
// an unparseable level warns and is otherwise ignored, and the
// format switch defaults to a timestamped text formatter.
func ApplyLogging(conf LogConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("failed to set log level, please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		log.Warn("unknown logging format")
	}
}

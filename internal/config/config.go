// Package config loads and validates the producer's startup configuration.
package config

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// #region protocol

// Protocol selects the wire protocol used to reach the inference engine.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolGRPC Protocol = "grpc"
)

// ParseProtocol normalizes s and reports whether it names a supported protocol.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProtocolTCP, ProtocolGRPC:
		return p, nil
	}
	return "", &Error{
		Field:  "DATASENTINEL_PROTOCOL",
		Reason: fmt.Sprintf("unsupported protocol %q (supported: tcp, grpc)", s),
	}
}

// #endregion protocol

// #region range

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the interval, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// #endregion range

// #region producer-config

// ProducerConfig is the immutable configuration of one producer instance.
// Values come from the environment first; command-line flags may override them.
type ProducerConfig struct {
	Host     string   `env:"ENGINE_HOST" envDefault:"127.0.0.1"`
	Port     int      `env:"ENGINE_PORT" envDefault:"9000"`
	Protocol Protocol `env:"DATASENTINEL_PROTOCOL" envDefault:"tcp"`

	NormalMin   float64 `env:"NORMAL_MIN" envDefault:"-1.0"`
	NormalMax   float64 `env:"NORMAL_MAX" envDefault:"1.0"`
	AnomalyMin  float64 `env:"ANOMALY_MIN" envDefault:"-2.0"`
	AnomalyMax  float64 `env:"ANOMALY_MAX" envDefault:"2.0"`
	AnomalyRate float64 `env:"ANOMALY_RATE" envDefault:"0.1"`

	Interval        time.Duration `env:"PRODUCER_INTERVAL" envDefault:"1s"`
	ConnectTimeout  time.Duration `env:"PRODUCER_CONNECT_TIMEOUT" envDefault:"3s"`
	RequestTimeout  time.Duration `env:"PRODUCER_REQUEST_TIMEOUT" envDefault:"5s"`
	ConnectCooldown time.Duration `env:"PRODUCER_CONNECT_COOLDOWN" envDefault:"3s"`
	RetryCooldown   time.Duration `env:"PRODUCER_RETRY_COOLDOWN" envDefault:"1s"`

	// MaxCycles stops the producer after this many evaluated responses. 0 runs forever.
	MaxCycles int `env:"PRODUCER_MAX_CYCLES" envDefault:"0"`

	LogLevel     string `env:"PRODUCER_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"PRODUCER_LOG_FORMAT" envDefault:"console"`
	OTelEndpoint string `env:"DATASENTINEL_OTEL_ENDPOINT"`
}

// Default returns the configuration used when no environment overrides are set.
func Default() ProducerConfig {
	return ProducerConfig{
		Host:            "127.0.0.1",
		Port:            9000,
		Protocol:        ProtocolTCP,
		NormalMin:       -1.0,
		NormalMax:       1.0,
		AnomalyMin:      -2.0,
		AnomalyMax:      2.0,
		AnomalyRate:     0.1,
		Interval:        time.Second,
		ConnectTimeout:  3 * time.Second,
		RequestTimeout:  5 * time.Second,
		ConnectCooldown: 3 * time.Second,
		RetryCooldown:   time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Load parses the producer configuration from environment variables.
// The result is not validated; call Validate once flags have been applied.
func Load() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, &Error{Field: "env", Reason: "parse env", Err: err}
	}
	return cfg, nil
}

// Target returns the engine address as host:port.
func (c ProducerConfig) Target() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Normal returns the normal operating range.
func (c ProducerConfig) Normal() Range {
	return Range{Min: c.NormalMin, Max: c.NormalMax}
}

// Anomaly returns the range anomaly values are drawn from.
func (c ProducerConfig) Anomaly() Range {
	return Range{Min: c.AnomalyMin, Max: c.AnomalyMax}
}

// #endregion producer-config

// #region validate

// Validate normalizes the protocol selector and checks every field.
// The first problem found is returned as *Error.
func (c *ProducerConfig) Validate() error {
	p, err := ParseProtocol(string(c.Protocol))
	if err != nil {
		return err
	}
	c.Protocol = p

	if strings.TrimSpace(c.Host) == "" {
		return &Error{Field: "ENGINE_HOST", Reason: "must not be empty"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &Error{Field: "ENGINE_PORT", Reason: fmt.Sprintf("%d is outside 1..65535", c.Port)}
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"NORMAL_MIN", c.NormalMin},
		{"NORMAL_MAX", c.NormalMax},
		{"ANOMALY_MIN", c.AnomalyMin},
		{"ANOMALY_MAX", c.AnomalyMax},
		{"ANOMALY_RATE", c.AnomalyRate},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &Error{Field: f.name, Reason: "must be finite"}
		}
	}

	if c.NormalMin > c.NormalMax {
		return &Error{Field: "NORMAL_MIN", Reason: "greater than NORMAL_MAX"}
	}
	// Normal samples are rounded to 3 decimals; the grid must intersect the range.
	if math.Ceil(c.NormalMin*1000) > math.Floor(c.NormalMax*1000) {
		return &Error{Field: "NORMAL_MIN", Reason: "normal range holds no 3-decimal value"}
	}
	if c.AnomalyMin > c.AnomalyMax {
		return &Error{Field: "ANOMALY_MIN", Reason: "greater than ANOMALY_MAX"}
	}
	normal := c.Normal()
	if normal.Contains(Round3(c.AnomalyMin)) && normal.Contains(Round3(c.AnomalyMax)) {
		return &Error{Field: "ANOMALY_MIN", Reason: "anomaly range must extend past the normal range"}
	}
	if c.AnomalyRate < 0 || c.AnomalyRate > 1 {
		return &Error{Field: "ANOMALY_RATE", Reason: fmt.Sprintf("%g is outside [0, 1]", c.AnomalyRate)}
	}

	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"PRODUCER_INTERVAL", c.Interval},
		{"PRODUCER_CONNECT_TIMEOUT", c.ConnectTimeout},
		{"PRODUCER_REQUEST_TIMEOUT", c.RequestTimeout},
		{"PRODUCER_CONNECT_COOLDOWN", c.ConnectCooldown},
		{"PRODUCER_RETRY_COOLDOWN", c.RetryCooldown},
	} {
		if d.v <= 0 {
			return &Error{Field: d.name, Reason: "must be positive"}
		}
	}
	if c.MaxCycles < 0 {
		return &Error{Field: "PRODUCER_MAX_CYCLES", Reason: "must not be negative"}
	}
	return nil
}

// Round3 rounds v to 3 fractional digits.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// #endregion validate

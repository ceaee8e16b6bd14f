package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultReconcilePageSize            = 10
	defaultTransportTimeout             = 30 * time.Second
	defaultMaxResponseBodyBytes   int64 = 1 << 20
)

type TransportConfig struct {
	Timeout              time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxResponseBodyBytes int64         `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
}

type ReconcileConfig struct {
	PageSize int `koanf:"page_size" mapstructure:"page_size"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
	Reconcile   ReconcileConfig `koanf:"reconcile" mapstructure:"reconcile"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "pids",
		Transport: TransportConfig{
			Timeout:              defaultTransportTimeout,
			MaxResponseBodyBytes: defaultMaxResponseBodyBytes,
		},
		Reconcile: ReconcileConfig{
			PageSize: DefaultReconcilePageSize,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Transport.Timeout < 0 {
		return fmt.Errorf("core: transport.timeout must not be negative")
	}
	if c.Transport.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: transport.max_response_body_bytes must not be negative")
	}
	if c.Reconcile.PageSize <= 0 {
		return fmt.Errorf("core: reconcile.page_size must be positive")
	}
	return nil
}

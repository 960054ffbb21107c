package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/fanout/policy"
	"github.com/viant/fanout/service/messaging"
	"github.com/viant/fanout/service/worker"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the runtime configuration. Fields
// left out of a loaded document keep their DefaultConfig value.
type Config struct {
	Workers      int                   `json:"workers" yaml:"workers"`
	RoundTimeout time.Duration         `json:"roundTimeout" yaml:"roundTimeout"`
	FailureRate  float64               `json:"failureRate" yaml:"failureRate"`
	Supervision  policy.Config         `json:"supervision" yaml:"supervision"`
	Mailbox      messaging.QueueConfig `json:"mailbox" yaml:"mailbox"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:      100,
		RoundTimeout: 5 * time.Second,
		FailureRate:  worker.DefaultFailureRate,
		Supervision:  policy.DefaultConfig(),
		Mailbox:      worker.DefaultMailbox,
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failureRate must be within [0, 1], got %v", c.FailureRate)
	}
	if c.RoundTimeout < 0 {
		return fmt.Errorf("roundTimeout must not be negative, got %v", c.RoundTimeout)
	}
	if c.Mailbox.Buffer < 0 {
		return fmt.Errorf("mailbox.buffer must not be negative, got %d", c.Mailbox.Buffer)
	}
	return nil
}

// LoadConfig reads a YAML (or JSON) document from any afs supported URL on
// top of DefaultConfig and validates the result.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/vad/vadengine"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path on top of Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open the config '%s': %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to load the config '%s': %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML on top of Default; unknown keys are an error.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to decode YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns all the problems found at once.
func (c Config) Validate() error {
	var mErr *multierror.Error
	if err := c.Stream.Params().Validate(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if c.Stream.QueueSize == 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("stream.queue_size must be positive"))
	}
	if c.VAD.Kind != "" {
		var k vadengine.Kind
		if err := k.Set(c.VAD.Kind); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("vad.kind: %w", err))
		}
	}
	if c.VAD.LibfvadMode < 0 || c.VAD.LibfvadMode > 3 {
		mErr = multierror.Append(mErr, fmt.Errorf("vad.libfvad_mode %d is out of range [0, 3]", c.VAD.LibfvadMode))
	}
	if c.Engine.Kind != "" {
		var k engine.Kind
		if err := k.Set(c.Engine.Kind); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("engine.kind: %w", err))
		}
	}
	if _, err := c.LoggerLevel(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("log_level: %w", err))
	}
	if c.Server.ContextsLimit == 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("server.contexts_limit must be positive"))
	}
	if c.Server.MaxRecvMsgSize <= 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("server.max_recv_msg_size must be positive"))
	}
	return mErr.ErrorOrNil()
}

// Write dumps the config as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("unable to encode YAML: %w", err)
	}
	return enc.Close()
}

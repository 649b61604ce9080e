package bufmgr

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a Config from a YAML file, in the same spirit as
// tinySQL's PagerConfig/BufferPoolConfig struct literals — except here a
// host process can hand the index an operator-editable file instead of
// constructing the struct in Go. A missing MaxFrames (zero value) falls
// back to DefaultMaxFrames once the Config reaches NewPool.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("bufmgr: read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("bufmgr: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// NewPoolFromConfigFile reads a Config from a YAML file at path and builds
// a Pool from it, for hosts that want to hand the index an
// operator-editable config file instead of constructing a Config struct
// literal in Go.
func NewPoolFromConfigFile(path string) (*Pool, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewPool(cfg), nil
}

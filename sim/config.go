package sim

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config controls the cycle-stepped driver: how many instructions it
// keeps in flight at once and how long a destination takes to complete
// once renamed. It intentionally has nothing to say about scheduling,
// ROB occupancy, branch prediction, or memory hierarchy timing — those
// remain non-goals of this repo, same as they are for the allocator
// itself.
type Config struct {
	// WindowSize is the maximum number of renamed-but-not-yet-retired
	// instructions the driver keeps in flight at once.
	WindowSize int `json:"window_size"`
	// CompletionLatency is the number of cycles between an instruction
	// being renamed and its destinations completing.
	CompletionLatency uint64 `json:"completion_latency"`
}

// DefaultConfig returns a small, deliberately conservative default: an
// 8-deep window and single-cycle completion, enough to exercise the
// allocator's full contract without needing a real execution model.
func DefaultConfig() *Config {
	return &Config{
		WindowSize:        8,
		CompletionLatency: 1,
	}
}

// LoadConfig loads a Config from a JSON file, starting from
// DefaultConfig so any field the file omits keeps its default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse driver config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes c to path as JSON.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize driver config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write driver config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a usable driver.
func (c *Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be > 0")
	}
	if c.CompletionLatency == 0 {
		return fmt.Errorf("completion_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

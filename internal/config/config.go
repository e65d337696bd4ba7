package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"crewline/internal/domain"
)

// Config models crewline.yml.
type Config struct {
	Plant struct {
		Name string `yaml:"name"`
	} `yaml:"plant"`
	Microteams []string          `yaml:"microteams"`
	Positions  []domain.Position `yaml:"positions"`
	Defaults   struct {
		LockPeriodDays int `yaml:"lock_period_days"`
	} `yaml:"defaults"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run cwl init first", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Microteams) == 0 {
		return fmt.Errorf("config.microteams must list at least one microteam")
	}
	seenTeam := map[string]bool{}
	for _, mt := range c.Microteams {
		if mt == "" {
			return fmt.Errorf("config.microteams contains an empty name")
		}
		if seenTeam[mt] {
			return fmt.Errorf("duplicate microteam %s", mt)
		}
		seenTeam[mt] = true
	}
	if len(c.Positions) == 0 {
		return fmt.Errorf("config.positions must list at least one position")
	}
	seenPos := map[string]bool{}
	supports := 0
	for _, p := range c.Positions {
		if p.Name == "" {
			return fmt.Errorf("config.positions contains an empty name")
		}
		if seenPos[p.Name] {
			return fmt.Errorf("duplicate position %s", p.Name)
		}
		seenPos[p.Name] = true
		if p.Slots < 1 {
			return fmt.Errorf("position %s must declare at least one slot", p.Name)
		}
		if p.Support {
			supports++
		}
	}
	if supports == 0 {
		return fmt.Errorf("config.positions must include a support bucket for add-crew employees")
	}
	if supports > 1 {
		return fmt.Errorf("config.positions must declare exactly one support bucket")
	}
	if _, err := domain.LockPeriodFromDays(c.Defaults.LockPeriodDays); err != nil {
		return fmt.Errorf("config.defaults.lock_period_days: %w", err)
	}
	return nil
}

// HasMicroteam reports whether the team is in the catalog.
func (c *Config) HasMicroteam(name string) bool {
	for _, mt := range c.Microteams {
		if mt == name {
			return true
		}
	}
	return false
}

// Position looks up a catalog entry by name.
func (c *Config) Position(name string) (domain.Position, bool) {
	for _, p := range c.Positions {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Position{}, false
}

// SupportPosition returns the dedicated add-crew bucket.
func (c *Config) SupportPosition() domain.Position {
	for _, p := range c.Positions {
		if p.Support {
			return p
		}
	}
	return domain.Position{}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "crewline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `plant:
  name: Packing Plant

microteams:
  - MICROTEAM - 01
  - MICROTEAM - 02
  - MICROTEAM - 03

positions:
  - name: PACKER
    slots: 8
  - name: QUALITY CONTROLLER
    slots: 3
  - name: SORTER
    slots: 6
  - name: PALLETIZER
    slots: 4
  - name: WEIGHER
    slots: 3
  - name: SUPPORT / ABSENT
    slots: 10
    support: true

defaults:
  lock_period_days: 7
`

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stageline/internal/board"
	"stageline/internal/domain"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config models stageline.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Client struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"client"`
	Board struct {
		Sort             string `yaml:"sort"`
		ActivityPageSize int    `yaml:"activity_page_size"`
	} `yaml:"board"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Catalog struct {
		Employers []domain.Employer `yaml:"employers"`
		Jobs      []domain.Job      `yaml:"jobs"`
	} `yaml:"catalog"`
}

// Load reads and validates config from workspace. A missing file yields the
// defaults.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("%w: server.base_path must start with /", ErrInvalidConfig)
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("%w: client.timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := board.ParseSortMode(c.Board.Sort); err != nil {
		return fmt.Errorf("%w: board.sort: %v", ErrInvalidConfig, err)
	}
	if c.Board.ActivityPageSize < 0 || c.Board.ActivityPageSize > 200 {
		return fmt.Errorf("%w: board.activity_page_size must be between 1 and 200", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json", ErrInvalidConfig)
	}
	employers := map[int64]bool{}
	for _, e := range c.Catalog.Employers {
		if e.ID <= 0 || e.Name == "" {
			return fmt.Errorf("%w: catalog employer needs an id and a name", ErrInvalidConfig)
		}
		employers[e.ID] = true
	}
	for _, j := range c.Catalog.Jobs {
		if j.ID <= 0 || j.Title == "" {
			return fmt.Errorf("%w: catalog job needs an id and a title", ErrInvalidConfig)
		}
		if j.EmployerID != 0 && !employers[j.EmployerID] {
			return fmt.Errorf("%w: job %d references unknown employer %d", ErrInvalidConfig, j.ID, j.EmployerID)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stageline.yml")
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(DefaultYAML)).Decode(&cfg)
	return &cfg
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), enc.Close()
}

const DefaultYAML = `server:
  addr: 127.0.0.1:8080
  base_path: /api

client:
  base_url: http://127.0.0.1:8080
  timeout: 10s

board:
  sort: newest
  activity_page_size: 50

log:
  level: info
  format: text

catalog:
  employers: []
  jobs: []
`

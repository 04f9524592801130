package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the project metadata directory created by `lotar init`.
	Dir      = ".lotar"
	FileName = "config.yml"

	InsertFormatParen = "paren" // TODO(PROJ-7): ...
	InsertFormatSpace = "space" // TODO PROJ-7: ...
)

// Scan holds the scanner knobs. Zero values are filled by Default.
type Scan struct {
	SignalWords       []string `yaml:"signal_words"`
	TicketPatterns    []string `yaml:"ticket_patterns"`
	EnableTicketWords bool     `yaml:"enable_ticket_words"`
	EnableMentions    bool     `yaml:"enable_mentions"`
	StripAttributes   bool     `yaml:"strip_attributes"`
	InsertFormat      string   `yaml:"insert_format"`
	DriftRadius       int      `yaml:"drift_radius"`
}

// Config is the resolved project configuration.
type Config struct {
	Prefix string `yaml:"prefix"`
	Scan   Scan   `yaml:"scan"`

	compiled []*regexp.Regexp
}

// ticketWords extend the signal-word list when enable_ticket_words is set.
var ticketWords = []string{"FEATURE", "EPIC", "SPIKE", "CHORE"}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Prefix: "TASK",
		Scan: Scan{
			SignalWords:    []string{"TODO", "FIXME", "HACK", "BUG", "NOTE"},
			TicketPatterns: []string{`[A-Z][A-Z0-9]+-\d+`},
			EnableMentions: true,
			InsertFormat:   InsertFormatParen,
			DriftRadius:    25,
		},
	}
	if err := cfg.Validate(); err != nil {
		panic(err) // defaults are always valid
	}
	return cfg
}

// Load reads .lotar/config.yml under root, applying defaults for absent
// fields and validating ticket patterns. A missing file yields Default.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, Dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if len(c.Scan.SignalWords) == 0 {
		c.Scan.SignalWords = d.Scan.SignalWords
	}
	if len(c.Scan.TicketPatterns) == 0 {
		c.Scan.TicketPatterns = d.Scan.TicketPatterns
	}
	if c.Scan.InsertFormat == "" {
		c.Scan.InsertFormat = d.Scan.InsertFormat
	}
	if c.Scan.DriftRadius <= 0 {
		c.Scan.DriftRadius = d.Scan.DriftRadius
	}
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
}

// Validate compiles the ticket patterns and checks enum fields. A broken
// pattern aborts the session here rather than silently missing tickets.
func (c *Config) Validate() error {
	c.compiled = c.compiled[:0]
	for _, pat := range c.Scan.TicketPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("invalid ticket pattern %q: %w", pat, err)
		}
		c.compiled = append(c.compiled, re)
	}
	switch c.Scan.InsertFormat {
	case InsertFormatParen, InsertFormatSpace:
	default:
		return fmt.Errorf("invalid insert_format %q (want %q or %q)",
			c.Scan.InsertFormat, InsertFormatParen, InsertFormatSpace)
	}
	if strings.ToUpper(c.Prefix) != c.Prefix {
		return fmt.Errorf("prefix %q must be uppercase", c.Prefix)
	}
	return nil
}

// TicketRegexps returns the compiled ticket-key patterns.
func (c *Config) TicketRegexps() []*regexp.Regexp {
	return c.compiled
}

// Words returns the active signal words, including ticket-type words when
// enable_ticket_words is set.
func (c *Config) Words() []string {
	if !c.Scan.EnableTicketWords {
		return c.Scan.SignalWords
	}
	words := make([]string, 0, len(c.Scan.SignalWords)+len(ticketWords))
	words = append(words, c.Scan.SignalWords...)
	words = append(words, ticketWords...)
	return words
}

// Save writes the configuration to .lotar/config.yml under root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

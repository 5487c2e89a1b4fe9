package detective

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize is the largest config file LoadConfig accepts (1MB).
const MaxConfigFileSize = 1024 * 1024

//go:embed config.yaml
var defaultConfigYAML []byte

// Config controls which syntax the detectives recognize.
type Config struct {
	Patterns   PatternConfig      `yaml:"patterns"`
	AMD        AMDConfig          `yaml:"amd"`
	CommonJS   CommonJSConfig     `yaml:"commonjs"`
	Extensions map[string]Dialect `yaml:"extensions" validate:"dive,keys,startswith=.,endkeys,required"`
}

// PatternConfig lists the require-like callees. Names are identifiers or
// dotted paths such as "System.import".
type PatternConfig struct {
	RequireCallees []string `yaml:"require_callees" validate:"required,min=1,dive,callee"`
	ModuleCallees  []string `yaml:"module_callees" validate:"dive,callee"`
}

// AMDConfig configures the AMD detective.
type AMDConfig struct {
	DefineCallees  []string `yaml:"define_callees" validate:"required,min=1,dive,callee"`
	KeepPseudoDeps bool     `yaml:"keep_pseudo_deps"`
}

// CommonJSConfig configures the CommonJS detective.
type CommonJSConfig struct {
	CallMode bool `yaml:"call_mode"`
}

var (
	configValidate *validator.Validate
	calleePattern  = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)
)

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("callee", validateCallee)
}

func validateCallee(fl validator.FieldLevel) bool {
	return calleePattern.MatchString(fl.Field().String())
}

var parseDefaultConfig = sync.OnceValues(func() (*Config, error) {
	return ParseConfig(defaultConfigYAML)
})

// DefaultConfig returns a copy of the built-in configuration.
func DefaultConfig() *Config {
	cfg, err := parseDefaultConfig()
	if err != nil {
		panic(fmt.Sprintf("Internal error: embedded config is invalid: %v", err))
	}
	return cfg.Clone()
}

// ParseConfig decodes and validates a YAML configuration. Unknown keys are
// rejected.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config: empty document")
		}
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if len(cfg.Extensions) > 0 {
		// DialectForPath matches extensions case-insensitively
		exts := make(map[string]Dialect, len(cfg.Extensions))
		for ext, d := range cfg.Extensions {
			key := strings.ToLower(ext)
			if prev, ok := exts[key]; ok && prev != d {
				return nil, fmt.Errorf("config: invalid: extension %q maps to both %s and %s", key, prev, d)
			}
			exts[key] = d
		}
		cfg.Extensions = exts
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config: %s is %d bytes, limit is %d", path, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Patterns.RequireCallees = slices.Clone(c.Patterns.RequireCallees)
	out.Patterns.ModuleCallees = slices.Clone(c.Patterns.ModuleCallees)
	out.AMD.DefineCallees = slices.Clone(c.AMD.DefineCallees)
	out.Extensions = maps.Clone(c.Extensions)
	return &out
}

// DialectForPath returns the dialect configured for the extension of path,
// or DialectES. A nil cfg means DefaultConfig.
func DialectForPath(cfg *Config, path string) Dialect {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ext := strings.ToLower(filepath.Ext(path))
	if d, ok := cfg.Extensions[ext]; ok {
		return d
	}
	return DialectES
}

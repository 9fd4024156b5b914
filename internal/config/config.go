// Package config loads the suite manifest.
//
// The manifest is a YAML file describing the corpora, the compiler under
// test, the assembler/linker, and the run policy. Manifests are validated
// against an embedded CUE schema before any tool is invoked.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields the manifest leaves unset.
const (
	DefaultNegativeDir  = "fail"
	DefaultSourceExt    = ".sq"
	DefaultGoldenSuffix = ".y"
	DefaultOutput       = "output.s"
	DefaultExecutable   = "output"
	DefaultRuntime      = "runtime/lib.c"
)

// Duration wraps time.Duration with YAML string decoding ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// CorpusConfig locates the test corpora.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`
	NegativeDir  string `yaml:"negative_dir"`
	SourceExt    string `yaml:"source_ext"`
	GoldenSuffix string `yaml:"golden_suffix"`
}

// CompilerConfig describes the compiler under test.
type CompilerConfig struct {
	// Build is an optional command that builds the compiler itself
	// before the suite runs, e.g. ["cargo", "build"]. A nonzero exit
	// aborts the whole run.
	Build []string `yaml:"build"`

	// Command invokes the compiler; the source path is appended as the
	// sole positional argument.
	Command []string `yaml:"command"`

	// Output is the fixed assembly filename the compiler writes into
	// its working directory.
	Output string `yaml:"output"`
}

// LinkerConfig describes the system assembler/linker.
type LinkerConfig struct {
	Command []string `yaml:"command"`

	// Runtime is the runtime support library linked into every test
	// binary.
	Runtime string `yaml:"runtime"`
}

// Config is the loaded suite manifest.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Compiler CompilerConfig `yaml:"compiler"`
	Linker   LinkerConfig   `yaml:"linker"`

	// Policy is "continue" or "fail-fast".
	Policy string `yaml:"policy"`

	// Timeout bounds each subprocess stage. Zero waits indefinitely.
	Timeout Duration `yaml:"timeout"`

	// Database optionally records run history to a SQLite file.
	Database string `yaml:"database"`
}

// Load reads, validates, and resolves a manifest file. Relative paths in
// the manifest are resolved against the manifest's own directory, so a
// suite can be run from anywhere.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg, errs := Parse(data)
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: invalid manifest %s: %s", path, errs[0].Message)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.resolve(base)
	return cfg, nil
}

// Parse decodes and schema-validates manifest bytes. All schema
// violations are returned, not just the first; the validate command
// reports the full list.
func Parse(data []byte) (*Config, []ValidationError) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, []ValidationError{{Field: "manifest", Message: err.Error()}}
	}

	if errs := validateSchema(raw); len(errs) > 0 {
		return nil, errs
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, []ValidationError{{Field: "manifest", Message: err.Error()}}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Corpus.NegativeDir == "" {
		c.Corpus.NegativeDir = DefaultNegativeDir
	}
	if c.Corpus.SourceExt == "" {
		c.Corpus.SourceExt = DefaultSourceExt
	}
	if c.Corpus.GoldenSuffix == "" {
		c.Corpus.GoldenSuffix = DefaultGoldenSuffix
	}
	if c.Compiler.Output == "" {
		c.Compiler.Output = DefaultOutput
	}
	if len(c.Linker.Command) == 0 {
		c.Linker.Command = []string{"cc"}
	}
	if c.Linker.Runtime == "" {
		c.Linker.Runtime = DefaultRuntime
	}
	if c.Policy == "" {
		c.Policy = "continue"
	}
}

// resolve anchors relative manifest paths at base. Tool commands are left
// on PATH unless they name a filesystem location: case stages run with a
// per-case scratch directory as cwd, so a relative tool path would
// otherwise dangle.
func (c *Config) resolve(base string) {
	c.Corpus.Dir = joinIfRelative(base, c.Corpus.Dir)
	c.Linker.Runtime = joinIfRelative(base, c.Linker.Runtime)
	if c.Database != "" {
		c.Database = joinIfRelative(base, c.Database)
	}
	c.Compiler.Command = resolveTool(base, c.Compiler.Command)
	c.Linker.Command = resolveTool(base, c.Linker.Command)
}

func joinIfRelative(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func resolveTool(base string, argv []string) []string {
	if len(argv) == 0 || !strings.ContainsRune(argv[0], os.PathSeparator) {
		return argv
	}
	out := append([]string{}, argv...)
	out[0] = joinIfRelative(base, out[0])
	return out
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/checksum"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// File is the YAML configuration file layout. Pointer fields distinguish
// "not set" from a zero value.
type File struct {
	Verbosity  *int           `yaml:"verbosity"`
	Ignore     IgnoreSection  `yaml:"ignore"`
	Digest     string         `yaml:"digest"`
	Timeout    *time.Duration `yaml:"timeout"`
	ReportJSON string         `yaml:"report_json"`
}

// IgnoreSection lists bare directory and file name rules
type IgnoreSection struct {
	Dirs  []string `yaml:"dirs"`
	Files []string `yaml:"files"`
}

// Load reads and parses a configuration file.
// ${VAR} references are expanded from the environment and unknown keys are rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration data
func Parse(data []byte) (*File, error) {
	expanded := envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var cfg File
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// Apply merges file values into opts. A scalar from the file is used only when
// its flag was not set explicitly; ignore lists are concatenated with file
// entries first and duplicates removed.
func (f *File) Apply(opts *Options, flagChanged func(name string) bool) error {
	if f.Verbosity != nil && !flagChanged("verbosity") {
		opts.Verbosity = logging.Verbosity(*f.Verbosity)
	}
	if f.Digest != "" && !flagChanged("digest") {
		algo, err := checksum.ParseAlgorithm(f.Digest)
		if err != nil {
			return err
		}
		opts.Digest = algo
	}
	if f.Timeout != nil && !flagChanged("timeout") {
		opts.Timeout = *f.Timeout
	}
	if f.ReportJSON != "" && !flagChanged("report-json") {
		opts.ReportJSON = f.ReportJSON
	}

	opts.IgnoreDirs = dedupe(append(append([]string{}, f.Ignore.Dirs...), opts.IgnoreDirs...))
	opts.IgnoreFiles = dedupe(append(append([]string{}, f.Ignore.Files...), opts.IgnoreFiles...))
	return nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jiang0681/unrpyc/internal/emit"
)

// defaultConfigFile is read from the working directory when --config is not
// given.
const defaultConfigFile = "unrpyc.yml"

var defaultExtensions = []string{".rpyc", ".rpymc"}

// config mirrors unrpyc.yml. Pointer fields distinguish "unset" from the
// zero value.
type config struct {
	Processes       *int     `yaml:"processes"`
	TryHarder       *bool    `yaml:"try_harder"`
	Clobber         *bool    `yaml:"clobber"`
	Dump            *bool    `yaml:"dump"`
	InitOffset      *bool    `yaml:"init_offset"`
	UnknownComments *bool    `yaml:"unknown_comments"`
	Translate       string   `yaml:"translate"`
	Indentation     *int     `yaml:"indentation"`
	Extensions      []string `yaml:"extensions"`
	// Displayables holds --register-sl-displayable entries.
	Displayables []string `yaml:"sl_displayables"`
}

// findConfig loads path, or the default file when path is empty. A missing
// default file is not an error; a missing explicit one is.
func findConfig(path string, explicit bool) (*config, error) {
	if !explicit {
		path = defaultConfigFile
	}
	cfg, err := loadConfig(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}

func loadConfig(path string) (*config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", abs, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", abs, err)
	}
	return &cfg, nil
}

func (c *config) validate() error {
	if c.Processes != nil && *c.Processes < 1 {
		return fmt.Errorf("processes must be at least 1, got %d", *c.Processes)
	}
	if c.Indentation != nil && (*c.Indentation < 1 || *c.Indentation > 8) {
		return fmt.Errorf("indentation must be between 1 and 8, got %d", *c.Indentation)
	}
	for _, ext := range c.Extensions {
		switch strings.ToLower(ext) {
		case ".rpyc", ".rpymc":
		default:
			return fmt.Errorf("extension %q is not a compiled script extension", ext)
		}
	}
	for _, d := range c.Displayables {
		if _, _, err := emit.ParseDisplayable(d); err != nil {
			return err
		}
	}
	return nil
}

// apply copies every set field onto opts.
func (c *config) apply(opts *options) {
	if c.Processes != nil {
		opts.Processes = *c.Processes
	}
	if c.TryHarder != nil {
		opts.TryHarder = *c.TryHarder
	}
	if c.Clobber != nil {
		opts.Clobber = *c.Clobber
	}
	if c.Dump != nil {
		opts.Dump = *c.Dump
	}
	if c.InitOffset != nil {
		opts.InitOffset = *c.InitOffset
	}
	if c.UnknownComments != nil {
		opts.UnknownComments = *c.UnknownComments
	}
	if c.Translate != "" {
		opts.Translate = c.Translate
	}
	if c.Indentation != nil {
		opts.Indentation = strings.Repeat(" ", *c.Indentation)
	}
	if len(c.Extensions) > 0 {
		opts.Extensions = c.Extensions
	}
	opts.displayableArgs = append(opts.displayableArgs, c.Displayables...)
}

// Package config loads scheduler, catalog and evaluation settings from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/evaluate"
	"github.com/wuquanwang/workflow/internal/scheduler"
)

// Config is the full tool configuration.
type Config struct {
	Seed     int64  `yaml:"seed"`
	LogLevel string `yaml:"log_level"`
	// Workers bounds the goroutines used inside one PSO or ACO iteration.
	Workers int `yaml:"workers" validate:"min=0"`

	Catalog  cloud.Catalog           `yaml:"catalog"`
	ProLiS   scheduler.ProLiSOptions `yaml:"prolis"`
	PSO      scheduler.PSOOptions    `yaml:"pso"`
	ACO      scheduler.ACOOptions    `yaml:"aco"`
	Evaluate evaluate.Options        `yaml:"evaluate"`
}

// ValidationError is returned when a configuration fails to pass validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field.
func (e ValidationError) ErrForField(name string) error {
	return e.errorMap[name]
}

// Error lists every failing field in name order.
func (e ValidationError) Error() string {
	var w bytes.Buffer

	fields := make([]string, 0, len(e.errorMap))
	for f := range e.errorMap {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	fmt.Fprintf(&w, "validation failed")
	for _, f := range fields {
		fmt.Fprintf(&w, "\n   %s: %v", f, e.errorMap[f])
	}
	return w.String()
}

// Default returns the published constants: the nine-tier catalog, the
// default parameters of every scheduler and the tight deadline sweep.
func Default() *Config {
	opts := scheduler.DefaultOptions()
	return &Config{
		Seed:     1,
		LogLevel: "info",
		Workers:  opts.Workers,
		Catalog:  *opts.Catalog,
		ProLiS:   opts.ProLiS,
		PSO:      opts.PSO,
		ACO:      opts.ACO,
		Evaluate: evaluate.DefaultOptions(),
	}
}

// Load reads the file at path over the defaults. An empty path or a missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.WithField("path", path).Debug("Config file not found, using defaults")
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := Parse(cfg, data); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse unmarshals data over cfg and validates the result.
func Parse(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "parse yaml")
	}
	return cfg.Validate()
}

// Validate checks field constraints, the catalog ladder and the scheduler
// names to evaluate.
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		if m, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: m}
		}
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return errors.Wrap(err, "catalog")
	}
	if c.ACO.PheromoneMin > c.ACO.PheromoneMax {
		return errors.Errorf("aco: pheromone_min %v exceeds pheromone_max %v",
			c.ACO.PheromoneMin, c.ACO.PheromoneMax)
	}
	known := make(map[string]bool)
	for _, n := range scheduler.Names() {
		known[n] = true
	}
	for _, m := range c.Evaluate.Methods {
		if !known[m] {
			return errors.Errorf("evaluate: unknown method %q, want one of %v", m, scheduler.Names())
		}
	}
	return nil
}

// SchedulerOptions returns the scheduler view of the configuration.
func (c *Config) SchedulerOptions() scheduler.Options {
	catalog := c.Catalog
	return scheduler.Options{
		Catalog: &catalog,
		Workers: c.Workers,
		ProLiS:  c.ProLiS,
		PSO:     c.PSO,
		ACO:     c.ACO,
	}
}

// Level parses LogLevel for logrus.
func (c *Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}

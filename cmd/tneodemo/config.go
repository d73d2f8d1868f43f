package main

import (
	"os"

	"github.com/riuson/tneo/tneo"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of --config; it mirrors tneo.Config
// field for field rather than embedding it directly, so the YAML tags can
// use the board-support-file naming convention (snake_case) without
// reaching into the kernel package to add struct tags it has no other use
// for.
type fileConfig struct {
	PrioritiesCount        int   `yaml:"priorities_count"`
	CheckParam             bool  `yaml:"check_param"`
	Debug                  bool  `yaml:"debug"`
	RoundRobinDefaultTicks []int `yaml:"round_robin_default_ticks"`
	StackOverflowCheck     bool  `yaml:"stack_overflow_check"`
}

func loadConfig(path string) (tneo.Config, error) {
	if path == "" {
		return tneo.DefaultConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return tneo.Config{}, err
	}
	fc := fileConfig{
		PrioritiesCount:    tneo.DefaultConfig().PrioritiesCount,
		CheckParam:         true,
		StackOverflowCheck: true,
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return tneo.Config{}, err
	}
	return tneo.Config{
		PrioritiesCount:        fc.PrioritiesCount,
		CheckParam:             fc.CheckParam,
		Debug:                  fc.Debug,
		RoundRobinDefaultTicks: fc.RoundRobinDefaultTicks,
		StackOverflowCheck:     fc.StackOverflowCheck,
	}, nil
}

package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
)

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func SeedValidator(seed SeedCfg) error {
	if seed.Asn == ReservedAsn {
		return fmt.Errorf("seed for %s uses reserved asn %d", seed.Prefix, ReservedAsn)
	}
	if seed.Prefix == "" {
		return fmt.Errorf("seed for asn %d has an empty prefix", seed.Asn)
	}
	return nil
}

func SimConfigValidator(cfg *SimCfg) error {
	if cfg.Topology.Path != "" {
		if _, err := os.Stat(cfg.Topology.Path); err != nil {
			return fmt.Errorf("topology.path: %w", err)
		}
	}
	if cfg.Topology.Date != "" {
		if _, err := time.Parse(time.DateOnly, cfg.Topology.Date); err != nil {
			return fmt.Errorf("topology.date %s is not YYYY-MM-DD: %w", cfg.Topology.Date, err)
		}
	}
	if len(cfg.Seeds) == 0 {
		return fmt.Errorf("at least one seed announcement is required")
	}
	seen := make(map[Pair[Asn, string]]struct{})
	for _, seed := range cfg.Seeds {
		if err := SeedValidator(seed); err != nil {
			return err
		}
		key := Pair[Asn, string]{seed.Asn, seed.Prefix}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate seed found: %d, %s", seed.Asn, seed.Prefix)
		}
		seen[key] = struct{}{}
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if cfg.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative")
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("log_path: %w", err)
		}
	}
	if cfg.ResultsPath != "" {
		if err := PathValidator(cfg.ResultsPath); err != nil {
			return fmt.Errorf("results_path: %w", err)
		}
	}
	return nil
}

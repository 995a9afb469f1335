// Package config holds the boot manager's settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/systemboot/bootmgr/pkg/launch"
	"github.com/systemboot/bootmgr/pkg/measure"
	"github.com/systemboot/bootmgr/pkg/varstore"
	"github.com/systemboot/bootmgr/pkg/vpd"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file there
// means defaults.
const DefaultPath = "/etc/bootmgr.yaml"

// Variable store backends.
const (
	StoreEFIVarFS = "efivarfs"
	StoreVPD      = "vpd"
)

// Config is the boot manager configuration.
type Config struct {
	// Store selects where boot variables are read from: efivarfs or vpd.
	Store      string `yaml:"store"`
	EFIVarsDir string `yaml:"efivars_dir"`
	VPDDir     string `yaml:"vpd_dir"`
	// MountBase is where partitions holding boot targets are mounted.
	MountBase string `yaml:"mount_base"`

	Measure  MeasureConfig  `yaml:"measure"`
	Recovery RecoveryConfig `yaml:"recovery"`
}

// MeasureConfig configures TPM measurement of launched options.
type MeasureConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
	PCR     uint32 `yaml:"pcr"`
}

// RecoveryConfig configures what a failed non-interactive boot does.
type RecoveryConfig struct {
	// Reboot reboots when true and powers off otherwise.
	Reboot bool `yaml:"reboot"`
	Sync   bool `yaml:"sync"`
	// Permissive logs the failure instead of power cycling.
	Permissive bool `yaml:"permissive"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store:      StoreEFIVarFS,
		EFIVarsDir: varstore.DefaultEFIVarsDir,
		VPDDir:     vpd.VpdDir,
		MountBase:  launch.DefaultMountBase,
		Measure: MeasureConfig{
			Enabled: true,
			Device:  measure.DefaultDevice,
			PCR:     measure.BootOptionPCR,
		},
		Recovery: RecoveryConfig{
			Reboot: true,
			Sync:   true,
		},
	}
}

// LoadFile reads path over the defaults. With optional set, a missing file
// yields the defaults.
func LoadFile(path string, optional bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreEFIVarFS:
		if c.EFIVarsDir == "" {
			return errors.New("efivars_dir is empty")
		}
	case StoreVPD:
		if c.VPDDir == "" {
			return errors.New("vpd_dir is empty")
		}
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Store, StoreEFIVarFS, StoreVPD)
	}
	if c.MountBase == "" {
		return errors.New("mount_base is empty")
	}
	if c.Measure.Enabled && c.Measure.PCR > 23 {
		return fmt.Errorf("measure.pcr %d out of range", c.Measure.PCR)
	}
	return nil
}

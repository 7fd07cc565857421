// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package reproject

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/reproject/cadence"
	"github.com/gogpu/reproject/warp"
)

// MaxFramerate is the upper bound offered by settings editors for both
// rates. The renderer itself accepts any positive rate.
const MaxFramerate = 144

// Settings is the configuration surface of the renderer. The integer
// options keep their stored encoding: ReprojectionMode 0 is no technique
// and 1 to 4 select the techniques in order.
type Settings struct {
	OptimizationOption       int     `yaml:"optimization_option" json:"optimization_option"`
	ReprojectionMode         int     `yaml:"reprojection_mode" json:"reprojection_mode"`
	SimulatedFramerate       int     `yaml:"simulated_framerate" json:"simulated_framerate"`
	ExtrapolatedFramerate    int     `yaml:"extrapolated_framerate" json:"extrapolated_framerate"`
	StepSizeFactor           float32 `yaml:"step_size_factor" json:"step_size_factor"`
	MaximumStepSize          float32 `yaml:"maximum_step_size" json:"maximum_step_size"`
	FillOutOfScreenOcclusion float32 `yaml:"fill_out_of_screen_occlusion" json:"fill_out_of_screen_occlusion"`
	FillDepthOcclusion       float32 `yaml:"fill_depth_occlusion" json:"fill_depth_occlusion"`
}

// DefaultSettings returns pass-through settings at 30 simulated and 60
// extrapolated frames per second.
func DefaultSettings() Settings {
	return Settings{
		SimulatedFramerate:    30,
		ExtrapolatedFramerate: 60,
		StepSizeFactor:        1,
		MaximumStepSize:       1,
	}
}

// Mode decodes OptimizationOption.
func (s Settings) Mode() (OptimizationMode, error) {
	if s.OptimizationOption < 0 || s.OptimizationOption >= int(numModes) {
		return 0, fmt.Errorf("%w: optimization option %d", ErrConfiguration, s.OptimizationOption)
	}
	return OptimizationMode(s.OptimizationOption), nil
}

// Technique decodes ReprojectionMode.
func (s Settings) Technique() (Technique, error) {
	if s.ReprojectionMode < 0 || s.ReprojectionMode >= int(numTechniques) {
		return 0, fmt.Errorf("%w: reprojection mode %d", ErrConfiguration, s.ReprojectionMode)
	}
	return Technique(s.ReprojectionMode), nil
}

// Cadence returns the target rates.
func (s Settings) Cadence() cadence.Config {
	return cadence.Config{
		SimulatedRateHz:    s.SimulatedFramerate,
		ExtrapolatedRateHz: s.ExtrapolatedFramerate,
	}
}

// Params returns the scalar pass parameters.
func (s Settings) Params() warp.Params {
	return warp.Params{
		StepSizeFactor:           s.StepSizeFactor,
		MaximumStepSize:          s.MaximumStepSize,
		FillOutOfScreenOcclusion: s.FillOutOfScreenOcclusion,
		FillDepthOcclusion:       s.FillDepthOcclusion,
	}
}

// Validate checks both options and both rates.
func (s Settings) Validate() error {
	if _, err := s.Mode(); err != nil {
		return err
	}
	if _, err := s.Technique(); err != nil {
		return err
	}
	if err := s.Cadence().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

// ParseSettings decodes YAML settings. Keys that are not present keep their
// DefaultSettings value.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: parse settings: %w", ErrConfiguration, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads and decodes a YAML settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/reproject"
)

// SettingsResult is the effective configuration with its editor labels.
type SettingsResult struct {
	Settings   reproject.Settings `json:"settings"`
	Mode       string             `json:"mode"`
	Technique  string             `json:"technique"`
	Modes      []string           `json:"modes"`
	Techniques []string           `json:"techniques"`
}

// WriteText renders the settings as YAML followed by the option labels.
func (r *SettingsResult) WriteText(w io.Writer) error {
	data, err := yaml.Marshal(r.Settings)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	fmt.Fprintf(w, "# optimization: %s\n", r.Mode)
	fmt.Fprintf(w, "# reprojection: %s\n", r.Technique)
	for i, l := range r.Modes {
		fmt.Fprintf(w, "# optimization_option %d = %s\n", i, l)
	}
	for i, l := range r.Techniques {
		fmt.Fprintf(w, "# reprojection_mode %d = %s\n", i, l)
	}
	return nil
}

// NewSettingsCommand creates the settings command.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the effective settings",
		Long: `Print the settings read from --settings, or the defaults, together
with the labels of every option value.

Examples:
  reprojsim settings
  reprojsim settings --settings fg.yaml --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := reproject.DefaultSettings()
			if path != "" {
				var err error
				if s, err = reproject.LoadSettings(path); err != nil {
					return WrapExitError(ExitCommandError, "invalid settings", err)
				}
			}
			mode, _ := s.Mode()
			technique, _ := s.Technique()
			result := &SettingsResult{
				Settings:   s,
				Mode:       mode.Label(),
				Technique:  technique.Label(),
				Modes:      reproject.ModeLabels(),
				Techniques: reproject.TechniqueLabels(),
			}
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success("", result)
		},
	}

	cmd.Flags().StringVarP(&path, "settings", "s", "", "YAML settings file")
	return cmd
}

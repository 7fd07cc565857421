package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gogpu/reproject/cadence"
)

// CadenceOptions holds flags for the cadence command.
type CadenceOptions struct {
	*RootOptions
	Simulated    int
	Extrapolated int
	DT           float64
	Ticks        int
}

// CadenceTick is one classified tick.
type CadenceTick struct {
	Tick                    int     `json:"tick"`
	Class                   string  `json:"class"`
	AccumulatedSimulated    float64 `json:"accumulated_simulated"`
	AccumulatedExtrapolated float64 `json:"accumulated_extrapolated"`
}

// ClassCounts counts ticks per classification.
type ClassCounts struct {
	Simulated    int `json:"simulated"`
	Extrapolated int `json:"extrapolated"`
	Regular      int `json:"regular"`
}

func (c *ClassCounts) add(class cadence.Classification) {
	switch class {
	case cadence.Simulated:
		c.Simulated++
	case cadence.Extrapolated:
		c.Extrapolated++
	default:
		c.Regular++
	}
}

// CadenceResult holds the classification sequence.
type CadenceResult struct {
	SimulatedRate    int           `json:"simulated_rate"`
	ExtrapolatedRate int           `json:"extrapolated_rate"`
	Ticks            []CadenceTick `json:"ticks"`
	Counts           ClassCounts   `json:"counts"`
}

// WriteText renders the result one tick per line.
func (r *CadenceResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "rates simulated=%d extrapolated=%d\n", r.SimulatedRate, r.ExtrapolatedRate)
	for _, t := range r.Ticks {
		fmt.Fprintf(w, "tick=%d class=%s acc_sim=%.4f acc_ext=%.4f\n",
			t.Tick, t.Class, t.AccumulatedSimulated, t.AccumulatedExtrapolated)
	}
	_, err := fmt.Fprintf(w, "summary simulated=%d extrapolated=%d regular=%d\n",
		r.Counts.Simulated, r.Counts.Extrapolated, r.Counts.Regular)
	return err
}

// NewCadenceCommand creates the cadence command.
func NewCadenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CadenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cadence",
		Short: "Classify a fixed-step tick sequence",
		Long: `Classify ticks delivered every --dt seconds against the two target
rates, without rendering anything.

Examples:
  reprojsim cadence --simulated 30 --extrapolated 60
  reprojsim cadence --simulated 45 --extrapolated 90 --dt 0.008 --ticks 40 --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCadence(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Simulated, "simulated", 30, "simulated frame rate (Hz)")
	cmd.Flags().IntVar(&opts.Extrapolated, "extrapolated", 60, "extrapolated frame rate (Hz)")
	cmd.Flags().Float64Var(&opts.DT, "dt", 1.0/60, "seconds between ticks")
	cmd.Flags().IntVarP(&opts.Ticks, "ticks", "n", 12, "number of ticks")

	return cmd
}

func runCadence(cmd *cobra.Command, opts *CadenceOptions) error {
	cfg := cadence.Config{SimulatedRateHz: opts.Simulated, ExtrapolatedRateHz: opts.Extrapolated}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid rates", err)
	}
	if opts.Ticks < 0 || opts.DT < 0 {
		return WrapExitError(ExitCommandError, "invalid tick sequence",
			fmt.Errorf("ticks=%d dt=%v", opts.Ticks, opts.DT))
	}

	result := classify(cfg, opts.DT, opts.Ticks)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success("", result)
}

// classify runs n ticks of length dt. Each entry records the accumulators
// the classification was made from.
func classify(cfg cadence.Config, dt float64, n int) *CadenceResult {
	result := &CadenceResult{
		SimulatedRate:    cfg.SimulatedRateHz,
		ExtrapolatedRate: cfg.ExtrapolatedRateHz,
		Ticks:            make([]CadenceTick, 0, n),
	}
	var e cadence.Evaluator
	for i := 0; i < n; i++ {
		before := e.State()
		class, _ := e.Classify(dt, cfg)
		result.Ticks = append(result.Ticks, CadenceTick{
			Tick:                    i,
			Class:                   class.String(),
			AccumulatedSimulated:    before.AccumulatedSimulated,
			AccumulatedExtrapolated: before.AccumulatedExtrapolated,
		})
		result.Counts.add(class)
	}
	return result
}

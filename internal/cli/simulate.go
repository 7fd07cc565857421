package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gogpu/reproject"
	"github.com/gogpu/reproject/backend"
	"github.com/gogpu/reproject/backend/software"
	"github.com/gogpu/reproject/warp"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	SettingsPath string
	Optimization int
	Reprojection int
	Simulated    int
	Extrapolated int

	Ticks   int
	DT      float64
	Width   int
	Height  int
	YawRate float64

	Backend  string
	Workers  int
	BudgetMB int

	DumpDir   string
	DumpScale float64
	RunID     string
}

// TickTrace is the trace of one rendered tick.
type TickTrace struct {
	Tick      int      `json:"tick"`
	Class     string   `json:"class"`
	Presented bool     `json:"presented"`
	Live      int      `json:"live"`
	Passes    []string `json:"passes"`
	Frame     string   `json:"frame,omitempty"`
}

// SimulationResult holds the trace of a simulation run.
type SimulationResult struct {
	RunID     string             `json:"-"`
	Settings  reproject.Settings `json:"settings"`
	Mode      string             `json:"mode"`
	Technique string             `json:"technique"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Ticks     []TickTrace        `json:"ticks"`
	Counts    ClassCounts        `json:"counts"`
	Presented int                `json:"presented"`
}

// WriteText renders the trace one tick per line.
func (r *SimulationResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "run %s\n", r.RunID)
	fmt.Fprintf(w, "settings mode=%s technique=%s simulated=%d extrapolated=%d size=%dx%d\n",
		r.Mode, r.Technique, r.Settings.SimulatedFramerate, r.Settings.ExtrapolatedFramerate, r.Width, r.Height)
	for _, t := range r.Ticks {
		fmt.Fprintf(w, "tick=%d class=%s presented=%t live=%d passes=%s\n",
			t.Tick, t.Class, t.Presented, t.Live, strings.Join(t.Passes, ","))
		if t.Frame != "" {
			fmt.Fprintf(w, "  frame %s\n", t.Frame)
		}
	}
	_, err := fmt.Fprintf(w, "summary ticks=%d simulated=%d extrapolated=%d regular=%d presented=%d\n",
		len(r.Ticks), r.Counts.Simulated, r.Counts.Extrapolated, r.Counts.Regular, r.Presented)
	return err
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the scheduler over a synthetic scene",
		Long: `Render a turning camera for --ticks ticks on the software backend and
trace the classification and passes of every tick.

Settings are read from --settings (YAML) and individual values can be
overridden with flags. With --dump every presented frame is written as a
lossless WebP file.

Examples:
  reprojsim simulate --optimization 2 --reprojection 4
  reprojsim simulate --settings lr.yaml --ticks 120 --dump ./frames --dump-scale 4
  reprojsim simulate --format json --run-id ci-42`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SettingsPath, "settings", "s", "", "YAML settings file")
	cmd.Flags().IntVar(&opts.Optimization, "optimization", 0, "optimization option (0 none, 1 latency reduction, 2 frame generation)")
	cmd.Flags().IntVar(&opts.Reprojection, "reprojection", 0, "reprojection mode (0 none, 1-4 technique)")
	cmd.Flags().IntVar(&opts.Simulated, "simulated", 30, "simulated frame rate (Hz)")
	cmd.Flags().IntVar(&opts.Extrapolated, "extrapolated", 60, "extrapolated frame rate (Hz)")
	cmd.Flags().IntVarP(&opts.Ticks, "ticks", "n", 12, "number of ticks")
	cmd.Flags().Float64Var(&opts.DT, "dt", 1.0/60, "seconds between ticks")
	cmd.Flags().IntVar(&opts.Width, "width", 64, "frame width")
	cmd.Flags().IntVar(&opts.Height, "height", 64, "frame height")
	cmd.Flags().Float64Var(&opts.YawRate, "yaw-rate", 0.5, "camera turn rate (rad/s)")
	cmd.Flags().StringVar(&opts.Backend, "backend", backend.Software, "reprojection backend")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "software backend workers (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.BudgetMB, "budget", 0, "buffer memory budget in MB (0 = 256 MB default)")
	cmd.Flags().StringVar(&opts.DumpDir, "dump", "", "directory for WebP frame dumps")
	cmd.Flags().Float64Var(&opts.DumpScale, "dump-scale", 1, "scale factor of dumped frames")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run identifier (default: random UUIDv7)")

	return cmd
}

// loadSettings reads the settings file, if any, and applies the flags the
// user set explicitly.
func loadSettings(cmd *cobra.Command, opts *SimulateOptions) (reproject.Settings, error) {
	s := reproject.DefaultSettings()
	if opts.SettingsPath != "" {
		var err error
		if s, err = reproject.LoadSettings(opts.SettingsPath); err != nil {
			return s, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("optimization") {
		s.OptimizationOption = opts.Optimization
	}
	if flags.Changed("reprojection") {
		s.ReprojectionMode = opts.Reprojection
	}
	if flags.Changed("simulated") {
		s.SimulatedFramerate = opts.Simulated
	}
	if flags.Changed("extrapolated") {
		s.ExtrapolatedFramerate = opts.Extrapolated
	}
	return s, s.Validate()
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions) error {
	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.Ticks < 0 || opts.DT < 0 {
		return WrapExitError(ExitCommandError, "invalid simulation",
			fmt.Errorf("size %dx%d ticks=%d dt=%v", opts.Width, opts.Height, opts.Ticks, opts.DT))
	}

	var dumper *frameDumper
	if opts.DumpDir != "" {
		if dumper, err = newFrameDumper(opts.DumpDir, opts.DumpScale); err != nil {
			return WrapExitError(ExitCommandError, "cannot dump frames", err)
		}
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}

	b, err := backend.Open(opts.Backend, backend.Config{
		Workers:        opts.Workers,
		MemoryBudgetMB: opts.BudgetMB,
		Logger:         reproject.Logger(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open backend", err)
	}
	defer b.Close()

	result, err := simulate(b, settings, opts, dumper)
	if result != nil {
		result.RunID = runID
	}
	if err != nil {
		return WrapExitError(ExitFailure, "simulation failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(runID, result)
}

// simulate renders opts.Ticks ticks on b. The scene is drawn into CPU
// images, so b must accept software images as host buffers. On failure it
// returns the trace up to the failing tick together with the error.
func simulate(b warp.Backend, settings reproject.Settings, opts *SimulateOptions, dumper *frameDumper) (*SimulationResult, error) {
	tb := &tracingBackend{Backend: b}
	r, err := reproject.NewRenderer(tb, settings)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	mode, _ := settings.Mode()
	technique, _ := settings.Technique()
	result := &SimulationResult{
		Settings:  settings,
		Mode:      mode.String(),
		Technique: technique.String(),
		Width:     opts.Width,
		Height:    opts.Height,
		Ticks:     make([]TickTrace, 0, opts.Ticks),
	}

	sc := newScene(opts.Width, opts.Height, opts.YawRate)
	src := software.NewImage(opts.Width, opts.Height, warp.FormatRGBA8Unorm, "source")
	md := software.NewImage(opts.Width, opts.Height, warp.FormatRGBA32Float, "motion-depth")
	dst := software.NewImage(opts.Width, opts.Height, warp.FormatRGBA8Unorm, "destination")

	for i := 0; i < opts.Ticks; i++ {
		sc.render(src, md, opts.DT)
		ctx := reproject.RenderContext{
			Width:       opts.Width,
			Height:      opts.Height,
			Camera:      sc.camera(),
			MotionDepth: md,
		}
		res, err := r.Render(src, dst, ctx, opts.DT)
		if err != nil {
			return result, fmt.Errorf("tick %d: %w", i, err)
		}

		tick := TickTrace{
			Tick:      i,
			Class:     res.Classification.String(),
			Presented: res.Presented,
			Live:      r.Stats().LiveBuffers,
			Passes:    tb.take(),
		}
		if res.Presented {
			result.Presented++
			if dumper != nil {
				if tick.Frame, err = dumper.dump(i, dst); err != nil {
					return result, fmt.Errorf("tick %d: %w", i, err)
				}
			}
		}
		result.Counts.add(res.Classification)
		result.Ticks = append(result.Ticks, tick)
		sc.advance(opts.DT)
	}
	return result, nil
}

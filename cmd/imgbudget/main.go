package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"imgbudget/internal/filesystem"
	"imgbudget/internal/logging"
	"imgbudget/internal/media"
	"imgbudget/internal/mediatypes"
	"imgbudget/internal/memory"
	"imgbudget/internal/startup"
	"imgbudget/internal/transcoder"
	"imgbudget/internal/workers"

	"golang.org/x/term"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2

	// outputSuffix avoids overwriting an input that is already a .jpg
	outputSuffix = "_budget"
)

// errOverBudget marks a best-effort result refused by -strict.
var errOverBudget = errors.New("output exceeds byte budget at the quality floor")

// options are the parsed command line settings.
type options struct {
	outDir      string
	workers     int
	jsonOut     bool
	strict      bool
	vips        bool
	showVersion bool
	config      transcoder.Config
}

// fileResult is one line of output.
type fileResult struct {
	Input  string             `json:"input"`
	Output string             `json:"output,omitempty"`
	Result *transcoder.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
	Kind   string             `json:"kind,omitempty"`

	err error
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	opts, paths, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.showVersion {
		info := startup.GetBuildInfo()
		fmt.Fprintf(stdout, "imgbudget %s (commit %s, built %s, %s %s/%s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		return exitOK
	}

	if len(paths) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memResult := memory.ConfigureFromEnv()
	logging.Debug("Memory: %s", memResult)

	inputs, err := collectInputs(ctx, paths)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if len(inputs) == 0 {
		fmt.Fprintln(stderr, "Error: no image files found")
		return exitUsage
	}

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			fmt.Fprintf(stderr, "Error: failed to create output directory: %v\n", err)
			return exitFailed
		}
	}

	var topts []transcoder.Option
	if opts.vips {
		if err := media.InitVips(); err != nil {
			fmt.Fprintf(stderr, "Warning: libvips unavailable, only native formats accepted: %v\n", err)
		} else {
			defer media.ShutdownVips()
			topts = append(topts, transcoder.WithFallback(media.VipsDecoder{MaxPixels: opts.config.MaxInputPixels}))
		}
	}

	pool := workers.NewPool(opts.workers)
	results := run(ctx, transcoder.New(topts...), pool, opts, inputs)

	if opts.jsonOut || !isTerminal(stdout) {
		printJSON(stdout, results)
	} else {
		printTable(stdout, results)
	}

	for _, r := range results {
		if r.err != nil {
			return exitFailed
		}
	}
	return exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "imgbudget - transcode images to JPEG within a byte budget")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: imgbudget [flags] file|dir...")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Directories are walked recursively for image files. Each input is")
	fmt.Fprintln(w, "written as <name>.jpg in -out, or next to the input when -out is empty.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags:")
}

// parseFlags reads args into options on top of the default transcode config.
func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{config: transcoder.DefaultConfig()}
	cfg := &opts.config

	flags := flag.NewFlagSet("imgbudget", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		printUsage(stderr)
		flags.PrintDefaults()
	}

	flags.StringVar(&opts.outDir, "out", "", "output directory (default: next to each input)")
	flags.IntVar(&opts.workers, "workers", 0, "concurrent transcodes (default: one per CPU, or $"+workers.EnvOverride+")")
	flags.BoolVar(&opts.jsonOut, "json", false, "print JSON lines even on a terminal")
	flags.BoolVar(&opts.strict, "strict", false, "fail files whose output still exceeds the budget")
	flags.BoolVar(&opts.vips, "vips", false, "decode HEIF/AVIF/JPEG XL through libvips")
	flags.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	flags.Int64Var(&cfg.BigThresholdBytes, "threshold", cfg.BigThresholdBytes, "input size in bytes above which the search loop runs")
	flags.Int64Var(&cfg.TargetBudgetBytes, "budget", cfg.TargetBudgetBytes, "target output size in bytes")
	flags.IntVar(&cfg.InitialQuality, "quality", cfg.InitialQuality, "first search iteration quality (1-100)")
	flags.IntVar(&cfg.DirectQuality, "direct-quality", cfg.DirectQuality, "quality of the single pass for small inputs (1-100)")
	flags.IntVar(&cfg.QualityFloor, "floor", cfg.QualityFloor, "lowest quality the search loop will use")
	flags.IntVar(&cfg.QualityStep, "step", cfg.QualityStep, "quality decrement per iteration")
	flags.Float64Var(&cfg.ScaleDecay, "decay", cfg.ScaleDecay, "per-iteration dimension multiplier in (0, 1]")
	flags.IntVar(&cfg.MinDimensionPx, "min-dim", cfg.MinDimensionPx, "smallest width or height the loop will produce")
	flags.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "search loop iteration ceiling")
	flags.Int64Var(&cfg.MaxInputPixels, "max-pixels", cfg.MaxInputPixels, "reject sources with more pixels (0 = no limit)")

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.workers < 0 {
		return nil, nil, fmt.Errorf("-workers must be >= 0, got %d", opts.workers)
	}
	if opts.workers == 0 {
		opts.workers = workers.ForCPU(0)
	}

	return opts, flags.Args(), nil
}

// collectInputs expands directories into the image files below them.
// Files named explicitly are always kept, whatever their extension.
func collectInputs(ctx context.Context, paths []string) ([]string, error) {
	var inputs []string
	for _, p := range paths {
		info, err := filesystem.Stat(ctx, p, filesystem.DefaultRetryConfig())
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if mediatypes.IsImageFile(filepath.Ext(path)) {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return inputs, nil
}

// outputPath names the JPEG written for input. An output that would land
// on the input itself gets a suffix instead.
func outputPath(outDir, input string) string {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))

	out := filepath.Join(dir, stem+mediatypes.OutputExtension)
	if filepath.Clean(out) == filepath.Clean(input) {
		out = filepath.Join(dir, stem+outputSuffix+mediatypes.OutputExtension)
	}
	return out
}

// run transcodes every input through the pool. Results keep input order.
func run(ctx context.Context, t *transcoder.Transcoder, pool *workers.Pool, opts *options, inputs []string) []fileResult {
	results := make([]fileResult, len(inputs))
	errs := pool.Each(ctx, len(inputs), func(ctx context.Context, i int) error {
		results[i] = transcodeFile(ctx, t, opts, inputs[i])
		return results[i].err
	})

	// Tasks that never got a slot
	for i, err := range errs {
		if results[i].Input == "" {
			results[i] = failed(inputs[i], err)
		}
	}
	return results
}

func transcodeFile(ctx context.Context, t *transcoder.Transcoder, opts *options, input string) fileResult {
	raw, err := filesystem.ReadFile(ctx, input, filesystem.DefaultRetryConfig())
	if err != nil {
		return failed(input, err)
	}

	res, err := t.Transcode(ctx, raw, opts.config)
	if err != nil {
		return failed(input, err)
	}
	if opts.strict && !res.BudgetMet {
		r := failed(input, errOverBudget)
		r.Result = res
		return r
	}

	out := outputPath(opts.outDir, input)
	if err := filesystem.WriteFileAtomic(ctx, out, res.Output, 0o644, filesystem.DefaultRetryConfig()); err != nil {
		return failed(input, err)
	}

	logging.Debug("%s: %s", input, res.Summary())
	return fileResult{Input: input, Output: out, Result: res}
}

func failed(input string, err error) fileResult {
	kind := transcoder.Kind(err)
	if errors.Is(err, errOverBudget) {
		kind = "over_budget"
	}
	return fileResult{Input: input, Error: err.Error(), Kind: kind, err: err}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printJSON(w io.Writer, results []fileResult) {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to encode result for %s: %v\n", r.Input, err)
		}
	}
}

func printTable(w io.Writer, results []fileResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tFORMAT\tSIZE\tOUTPUT\tDIMENSIONS\tQUALITY\tITER\tRESULT")

	var ok int
	for _, r := range results {
		if r.Result == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%s: %s\n", r.Input, r.Kind, r.Error)
			continue
		}
		res := r.Result
		status := string(res.Termination)
		if r.err != nil {
			status = r.Kind
		} else {
			ok++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dx%d\t%d\t%d\t%s\n",
			r.Input, res.SourceFormat,
			memory.FormatBytes(res.InputSize), memory.FormatBytes(res.OutputSize),
			res.Width, res.Height, res.Quality, res.Iterations, status)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d of %d file(s) transcoded\n", ok, len(results))
}

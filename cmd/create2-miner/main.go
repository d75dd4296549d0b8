package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/screa/create2-miner/internal/config"
	"github.com/screa/create2-miner/internal/crypto"
	logpkg "github.com/screa/create2-miner/internal/logger"
	"github.com/screa/create2-miner/internal/output"
	"github.com/screa/create2-miner/internal/progress"
	minerpkg "github.com/screa/create2-miner/pkg/miner"
	"github.com/screa/create2-miner/pkg/types"
)

// Exit codes
const (
	exitFound       = 0
	exitError       = 1
	exitNotFound    = 2
	exitInterrupted = 130
)

var (
	errNotFound    = errors.New("no match found")
	errInterrupted = errors.New("interrupted")
)

var (
	cfg    = config.NewConfig()
	logger *logpkg.Logger

	// reporterFor picks the progress display for a job; nil means none.
	reporterFor = newReporter
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "create2-miner",
		Short: "High-performance CREATE2 vanity salt miner",
		Long: `A performant command line utility for mining CREATE2 salts.
It searches for a salt whose keccak256-derived contract address matches
a hex prefix, suffix, or both.`,
		RunE:          runMiner,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.Flags()
	flags.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	flags.StringVarP(&cfg.Target, "target", "t", "", "Exact target address (hex, case-insensitive)")
	flags.StringVarP(&cfg.Prefix, "prefix", "p", "", "Address prefix to match")
	flags.StringVarP(&cfg.Suffix, "suffix", "s", "", "Address suffix to match")
	flags.StringVarP(&cfg.Factory, "factory", "f", crypto.DefaultFactoryAddress, "CREATE2 factory (deployer) address")
	flags.StringVarP(&cfg.InitCodeHash, "init-code-hash", "H", "", "keccak256 of the contract init code (hex)")
	flags.StringVarP(&cfg.Bytecode, "bytecode", "B", "", "Contract init code (hex), hashed before mining")
	flags.StringVarP(&cfg.BytecodeFile, "bytecode-file", "F", "", "File containing contract init code (hex)")
	flags.StringVarP(&cfg.ContractName, "name", "n", "", "Contract name recorded in the output")
	flags.Uint64VarP(&cfg.MaxAttempts, "max-attempts", "m", 0, "Attempt ceiling (0 = unbounded; sequential defaults to 100000000 per worker)")
	flags.StringVar(&cfg.Ceiling, "ceiling", cfg.Ceiling, "How --max-attempts applies: auto, global or per-worker (auto is per-worker for sequential without --max-attempts)")
	flags.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Salt generation: random or sequential")
	flags.StringSliceVar(&cfg.StartSalts, "start-salt", nil, "Starting salt per worker (sequential strategy, one per worker)")
	flags.StringVar(&cfg.Network, "network", cfg.Network, "Network label recorded in the output")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Result JSON file (empty to skip)")
	flags.StringVarP(&cfg.ConfigFile, "config", "c", "", "Job file (YAML or JSON); flags override its values")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&cfg.NoProgress, "no-progress", false, "Disable the terminal progress display")
	flags.StringVarP(&cfg.LogFile, "log-file", "l", "", "Log file for progress tracking (default: stdout only)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.IntVarP(&cfg.LogInterval, "log-interval", "i", cfg.LogInterval, "Progress logging interval in seconds")

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Close()
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitFound
	case errors.Is(err, errNotFound):
		return exitNotFound
	case errors.Is(err, errInterrupted):
		return exitInterrupted
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
}

func runMiner(cmd *cobra.Command, args []string) error {
	if cfg.ConfigFile != "" {
		f, err := config.LoadFile(cfg.ConfigFile)
		if err != nil {
			return err
		}
		cfg.Apply(f, cmd.Flags().Changed)
	}

	if err := setupLogging(); err != nil {
		return err
	}

	// All input errors surface here, before any worker starts.
	plan, err := cfg.Resolve()
	if err != nil {
		return err
	}

	logger.Printf("Starting CREATE2 miner with %d workers (%s salts)...", plan.Workers, plan.Strategy)
	logger.Printf("Target: %s", cfg.GetTargetDescription())
	logger.Printf("Factory address: %s", crypto.ChecksumHex(plan.Factory))
	logger.Debugw("plan",
		"network", cfg.Network,
		"contracts", len(plan.Jobs),
		"max_attempts", plan.MaxAttempts,
		"ceiling", plan.Ceiling.String(),
		"difficulty", plan.Pattern.Difficulty(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := output.NewReport(cfg.Network, plan.Factory, time.Now())
	var runErr error
	for _, job := range plan.Jobs {
		out, err := mineJob(ctx, plan, job)
		if err != nil && out.Status != types.StatusCancelled {
			return err
		}
		report.Add(job.Name, job.ContentHash, plan.Pattern, out)
		printOutcome(job, out)

		if out.Status == types.StatusCancelled {
			logger.Println("Received interrupt signal. Mining stopped by user.")
			runErr = errInterrupted
			break
		}
	}
	if runErr == nil && !report.AllFound() {
		runErr = errNotFound
	}

	if cfg.Output != "" {
		if err := report.Write(cfg.Output); err != nil {
			return err
		}
		logger.Printf("Results saved to %s", cfg.Output)
	}
	return runErr
}

func mineJob(ctx context.Context, plan *config.Plan, job config.Job) (types.Outcome, error) {
	miner, err := minerpkg.NewMiner(minerpkg.Config{
		Factory:     plan.Factory,
		ContentHash: job.ContentHash,
		Pattern:     plan.Pattern,
		Workers:     plan.Workers,
		MaxAttempts: plan.MaxAttempts,
		Ceiling:     plan.Ceiling,
		Strategy:    plan.Strategy,
		StartSalts:  plan.StartSalts,
	}, logger)
	if err != nil {
		return types.Outcome{}, err
	}

	logger.Infow("searching",
		"contract", job.Name,
		"init_code_hash", job.ContentHash.Hex(),
		"pattern", plan.Pattern.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	searchCtx, searchDone := context.WithCancel(gctx)
	defer searchDone()

	var out types.Outcome
	g.Go(func() error {
		defer searchDone()
		var err error
		out, err = miner.Mine(searchCtx)
		return err
	})
	if reporter := reporterFor(job.Name, miner); reporter != nil {
		g.Go(func() error {
			// A broken display must not end the search.
			if err := reporter.Run(searchCtx, miner); err != nil {
				logger.Warnw("progress display failed", "contract", job.Name, "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if out.Status == types.StatusCancelled && ctx.Err() != nil {
		return out, errInterrupted
	}
	return out, err
}

func newReporter(name string, miner *minerpkg.Miner) progress.Reporter {
	mc := miner.Config()
	opts := progress.Options{
		Title:      fmt.Sprintf("%s %s", name, mc.Pattern),
		Interval:   time.Duration(cfg.LogInterval) * time.Second,
		Difficulty: mc.Pattern.Difficulty(),
	}
	if mc.Ceiling == types.CeilingGlobal {
		opts.Total = mc.MaxAttempts
	}

	if !cfg.NoProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		opts.Interval = 0
		return progress.NewTerminalReporter(opts)
	}
	if cfg.Verbose {
		return progress.NewLogReporter(logger.Named("progress"), opts)
	}
	return nil
}

func printOutcome(job config.Job, out types.Outcome) {
	if !out.Found() {
		logger.Printf("No match found for %s after %d attempts (%s).", job.Name, out.TotalAttempts, out.Status)
		return
	}

	r := out.Result
	rate := 0.0
	if r.Elapsed.Seconds() > 0 {
		rate = float64(r.Attempts) / r.Elapsed.Seconds()
	}
	logger.Printf("Found match for %s!", job.Name)
	logger.Printf("Salt: %s", r.Salt.Hex())
	logger.Printf("Address: %s", crypto.ChecksumHex(r.Address))
	logger.Printf("Attempts: %d", r.Attempts)
	logger.Printf("Duration: %v", r.Elapsed)
	logger.Printf("Rate: %.2f hashes/sec", rate)

	if !cfg.NoProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		pterm.DefaultBox.
			WithTitle(job.Name).
			WithTitleTopCenter().
			WithBoxStyle(pterm.NewStyle(pterm.FgGreen)).
			Println(fmt.Sprintf("Address: %s\nSalt:    %s", crypto.ChecksumHex(r.Address), r.Salt.Hex()))
	}
}

func setupLogging() error {
	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	l, err := logpkg.NewWithConfig(logpkg.Config{
		Level:    level,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	logger = l
	return nil
}

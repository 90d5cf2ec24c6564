package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"golang.org/x/sys/unix"

	sim "github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/record"
	"github.com/inference-sim/pagesim/sim/trace"
)

var (
	// CLI flags
	configPath   string // YAML simulation config
	envFile      string // optional dotenv file
	logLevel     string // diagnostic log verbosity
	logFile      string // simulation event log, truncated at start
	scheme       string // request scheme selector
	debug        bool   // dump reference/LRU lists after each exchange
	seed         int64  // master RNG seed
	recordDB     string // SQLite recording path ("auto" picks a fresh name)
	traceLevel   string // in-memory exchange trace level
	summaryJSON  string // write the summary as JSON here
	flagOverride = sim.DefaultConfig()
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pagesim",
	Short: "Demand-paged virtual memory simulator with LRU eviction",
}

// runCmd executes the simulation using parameters from config and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the paging simulation",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := sim.ParseScheme(scheme); err != nil {
			return err
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			return fmt.Errorf("unknown trace level %q", traceLevel)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cfg.Debug && level < logrus.DebugLevel {
			logrus.SetLevel(logrus.DebugLevel)
		}

		out, closeLog, err := openEventSink(logFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer closeLog()

		opts := []sim.Option{
			sim.WithLogPrefix(filepath.Base(os.Args[0])),
			sim.WithTrace(trace.TraceLevel(traceLevel)),
		}
		if recordDB != "" {
			path := recordDB
			if path == "auto" {
				path = record.DefaultPath()
			}
			rec, err := record.NewSQLiteRecorder(path, record.DefaultBatchSize)
			if err != nil {
				logrus.Fatalf("unable to open recording: %v", err)
			}
			logrus.Infof("recording exchanges to %s", rec.Path())
			opts = append(opts, sim.WithRecorder(rec))
		}

		s, err := sim.NewSimulator(cfg, out, opts...)
		if err != nil {
			logrus.Fatalf("unable to set up simulation: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
		defer stop()

		runErr := s.Run(ctx)
		s.PrintSummary()
		if s.Trace.Enabled() {
			ts := trace.Summarize(s.Trace)
			logrus.Infof("trace: %d exchanges, hit ratio %.4f, %d evictions", ts.TotalExchanges, ts.HitRatio, ts.Evictions)
		}
		if summaryJSON != "" {
			if err := s.Metrics.WriteJSON(summaryJSON); err != nil {
				logrus.Errorf("%v", err)
			}
		}
		if runErr != nil {
			logrus.Fatalf("simulation aborted: %v", runErr)
		}
		logrus.Info("Simulation complete.")
	},
}

// schemeCmd lists the request schemes accepted by --scheme.
var schemeCmd = &cobra.Command{
	Use:   "schemes",
	Short: "List the request generation schemes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "1  uniform   addresses drawn uniformly over the address space (alias: random)")
		fmt.Fprintln(w, "2  weighted  pages drawn from a harmonic cumulative weight table, favouring low pages")
	},
}

// configCmd prints the effective configuration as YAML.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective simulation config as YAML",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		data, err := marshalConfig(cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		cmd.OutOrStdout().Write(data)
	},
}

// resolveConfig layers defaults, the dotenv file and PAGESIM_* variables,
// the YAML config and finally explicitly set flags.
func resolveConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if err := loadDotEnv(envFile); err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if v, ok := os.LookupEnv(envLogFile); ok && !cmd.Flags().Changed("log-file") {
		logFile = v
	}
	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("scheme") {
		cfg.Scheme = scheme
	}
	if f.Changed("debug") {
		cfg.Debug = debug
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("max-concurrent") {
		cfg.MaxConcurrent = flagOverride.MaxConcurrent
	}
	if f.Changed("total") {
		cfg.TotalTarget = flagOverride.TotalTarget
	}
	if f.Changed("frames") {
		cfg.FrameCount = flagOverride.FrameCount
	}
	if f.Changed("pages") {
		cfg.PageCount = flagOverride.PageCount
	}
	if f.Changed("page-size") {
		cfg.PageSize = flagOverride.PageSize
	}
	if f.Changed("references") {
		cfg.ReferenceLimit = flagOverride.ReferenceLimit
	}
	if f.Changed("scan-policy") {
		cfg.ScanPolicy = flagOverride.ScanPolicy
	}
	if f.Changed("write-back-penalty-ns") {
		cfg.WriteBackPenaltyNs = flagOverride.WriteBackPenaltyNs
	}
	if f.Changed("timeout") {
		cfg.Timeout = flagOverride.Timeout
	}
	return cfg, cfg.Validate()
}

// openEventSink returns stderr teed into the truncated log file.
func openEventSink(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := sim.OpenLogFile(path)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(os.Stderr, f), func() {
		if err := f.Close(); err != nil {
			logrus.Errorf("closing %s: %v", path, err)
		}
	}, nil
}

// fatalExit runs the atexit handlers (recording flush) before a logrus
// Fatal terminates the process.
func fatalExit() {
	atexit.Exit(1)
}

// Execute runs the CLI root command
func Execute() {
	logrus.RegisterExitHandler(fatalExit)
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	d := sim.DefaultConfig()
	cmd.Flags().StringVar(&configPath, "config", "", "YAML simulation config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with PAGESIM_* defaults")
	cmd.Flags().StringVarP(&scheme, "scheme", "m", d.Scheme, "Request scheme (1|uniform, 2|weighted)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Dump reference and LRU lists after every exchange")
	cmd.Flags().Int64Var(&seed, "seed", d.Seed, "Seed for every random stream of the run")

	cmd.Flags().IntVar(&flagOverride.MaxConcurrent, "max-concurrent", d.MaxConcurrent, "Maximum live workers")
	cmd.Flags().IntVar(&flagOverride.TotalTarget, "total", d.TotalTarget, "Total workers to spawn")
	cmd.Flags().IntVar(&flagOverride.FrameCount, "frames", d.FrameCount, "Physical frames")
	cmd.Flags().IntVar(&flagOverride.PageCount, "pages", d.PageCount, "Pages per worker")
	cmd.Flags().IntVar(&flagOverride.PageSize, "page-size", d.PageSize, "Bytes per page and frame")
	cmd.Flags().IntVar(&flagOverride.ReferenceLimit, "references", d.ReferenceLimit, "References per worker before it terminates")
	cmd.Flags().StringVar(&flagOverride.ScanPolicy, "scan-policy", d.ScanPolicy, "Free frame scan policy (first-fit, next-fit)")
	cmd.Flags().Uint32Var(&flagOverride.WriteBackPenaltyNs, "write-back-penalty-ns", d.WriteBackPenaltyNs, "Simulated ns charged for writing back a dirty victim")
	cmd.Flags().DurationVar(&flagOverride.Timeout, "timeout", d.Timeout, "Wall-clock time after which no more workers are spawned")
}

// init sets up CLI flags and subcommands
func init() {
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&logFile, "log-file", "output.log", "Simulation event log (empty: stderr only)")
	runCmd.Flags().StringVar(&recordDB, "record-db", "", "Record every exchange to this SQLite file (\"auto\" for a generated name)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Exchange trace level (none, exchanges)")
	runCmd.Flags().StringVar(&summaryJSON, "summary-json", "", "Also write the summary as JSON to this file")

	addConfigFlags(configCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(schemeCmd)
	rootCmd.AddCommand(configCmd)
}

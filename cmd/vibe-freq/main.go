// Package main provides the vibe-freq command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageError marks errors caused by wrong command-line usage.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func run(args []string, stdout, stderr io.Writer) int {
	viper.Reset()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "vibe-freq",
		Short: "Local observation frequency database for germline variants",
		Long: `vibe-freq counts how often small variants and structural variants were
observed across loaded cases, and annotates or exports those frequencies as VCF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ~/.vibe-freq.yaml)")
	pf.StringP("database", "d", "", "DuckDB database path (default ~/.vibe-freq/freq.duckdb)")
	pf.String("genome-build", "GRCh37", "Genome build: GRCh37 or GRCh38")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	viper.BindPFlag("database", pf.Lookup("database"))
	viper.BindPFlag("genome_build", pf.Lookup("genome-build"))
	viper.BindPFlag("verbose", pf.Lookup("verbose"))

	root.AddCommand(
		newLoadCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newAnnotateCmd(),
		newExportCmd(),
		newProfileCmd(),
		newCasesCmd(),
		newWipeCmd(),
		newIndexCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// initConfig reads the config file and environment on top of the defaults.
func initConfig(cfgFile string) error {
	setDefaults()

	viper.SetEnvPrefix("VIBE_FREQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".vibe-freq")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile != "" && os.IsNotExist(err)) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setDefaults() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault("database", filepath.Join(home, ".vibe-freq", "freq.duckdb"))
	}
	viper.SetDefault("genome_build", "GRCh37")
	viper.SetDefault("max_window", 2000)
	viper.SetDefault("gq_threshold", 20)
	viper.SetDefault("ignore_gq_if_unset", false)
	viper.SetDefault("qual_gq", false)
	viper.SetDefault("keep_chr_prefix", false)
	viper.SetDefault("batch_size", 10000)
	viper.SetDefault("profile.hard_threshold", 0.95)
	viper.SetDefault("profile.soft_threshold", 0.9)
	viper.SetDefault("profile.check", true)
}

// newLogger builds the CLI logger: info level console output on stderr, or
// development output at debug level with --verbose.
func newLogger(verbose bool, stderr io.Writer) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zapcore.InfoLevel
	if verbose {
		cfg = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(stderr), level)
	return zap.New(core)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vibe-freq version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// noArgs and exactArgs wrap the cobra validators so argument errors map to
// ExitUsage.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err}
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

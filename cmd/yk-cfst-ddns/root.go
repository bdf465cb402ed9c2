package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/config"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/retry"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/speedtest"
)

const envPrefix = "CFST_DDNS"

type options struct {
	ConfigPath      string
	ResultFile      string
	MetricsTextfile string
	DryRun          bool
	Dev             bool
	Verbosity       int
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "yk-cfst-ddns",
		Short:         "Point DNS records at the best IP found by CloudflareSpeedTest",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options{
				ConfigPath:      v.GetString("config"),
				ResultFile:      v.GetString("result_file"),
				MetricsTextfile: v.GetString("metrics_textfile"),
				DryRun:          v.GetBool("dry_run"),
				Dev:             v.GetBool("dev"),
				Verbosity:       v.GetInt("verbosity"),
			}
			log, sync, err := newLogger(opts.Dev, opts.Verbosity)
			if err != nil {
				return err
			}
			defer sync()
			return run(cmd.Context(), log, cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "config.toml", "Path to the configuration file (.toml or .yaml)")
	flags.String("result-file", "", "CloudflareSpeedTest result file, overrides the config")
	flags.String("metrics-textfile", "", "Write run metrics to this file for the node_exporter textfile collector")
	flags.Bool("dry-run", false, "Look up records and report the planned change without sending it")
	flags.Bool("dev", false, "Human-readable development logging")
	flags.IntP("verbosity", "v", 0, "Log verbosity, 1 enables debug output")
	bindFlags(v, flags)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})

	return cmd
}

// bindFlags makes every flag settable from CFST_DDNS_* variables.
// Precedence is: flags > env > default.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

func newLogger(dev bool, verbosity int) (logr.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	if verbosity < 0 {
		verbosity = 0
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))

	z, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}

func run(ctx context.Context, log logr.Logger, out io.Writer, opts options) error {
	setupLog := log.WithName("setup")
	setupLog.Info("starting yk-cfst-ddns", "version", Version)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	setupLog.Info("loaded config", "path", opts.ConfigPath, "entries", len(cfg.DNS))

	resultFile := cfg.SpeedTest.ResultFile
	if opts.ResultFile != "" {
		resultFile = opts.ResultFile
	}
	results, err := speedtest.ReadFile(log.WithName("speedtest"), resultFile)
	if err != nil {
		return fmt.Errorf("unable to read speed test results: %w", err)
	}
	best, err := speedtest.Best(results)
	if err != nil {
		return fmt.Errorf("%s: %w", resultFile, err)
	}
	setupLog.Info("using best IP", "ip", best.IP.String(), "lossRate", best.LossRate,
		"latencyMs", best.AvgLatencyMS, "downloadMBps", best.DownloadSpeed)

	settings := dns.SettingsFunc(cfg.ProviderSettings)
	if opts.DryRun {
		settings = withDryRun(settings)
	}

	baseDelay, maxDelay, err := cfg.Retry.Delays()
	if err != nil {
		return err
	}

	m := metrics.New()
	runner := &controller.Runner{
		Log:       log.WithName("runner"),
		Providers: dns.NewRegistry(log, settings),
		Metrics:   m,
		Retry: retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   baseDelay,
			MaxDelay:    maxDelay,
		},
	}
	summary := runner.Run(ctx, cfg.Entries(), best)
	m.Finish(time.Now())

	fmt.Fprint(out, controller.FormatSummary(summary))

	textfile := cfg.Metrics.Textfile
	if opts.MetricsTextfile != "" {
		textfile = opts.MetricsTextfile
	}
	if textfile != "" {
		if err := m.WriteTextfile(textfile); err != nil {
			setupLog.Error(err, "unable to write metrics", "path", textfile)
		}
	}

	if summary.Failed() > 0 {
		setupLog.Info("finished with failures", "failed", summary.Failed(), "total", len(summary.Results))
	}
	return ctx.Err()
}

// withDryRun forces dry_run on every provider built from settings.
func withDryRun(settings dns.SettingsFunc) dns.SettingsFunc {
	return func(id string) (map[string]string, error) {
		s, err := settings(id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = make(map[string]string, 1)
		}
		s["dry_run"] = "true"
		return s, nil
	}
}

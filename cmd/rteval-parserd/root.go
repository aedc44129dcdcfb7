package main

import (
	"github.com/rteval/parserd/config"

	"github.com/spf13/cobra"
)

type options struct {
	configFile string
	pidFile    string
	log        string
	logLevel   string
	threads    int
	metrics    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "rteval-parserd",
		Short:         "rteval report parsing daemon",
		Long:          "rteval-parserd drains the rteval submission queue and turns uploaded XML reports into per-client report files and database rows.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.DefaultConfigFile, "configuration file")
	flags := cmd.Flags()
	flags.StringVarP(&opts.pidFile, "pidfile", "p", config.DefaultPIDFile, "PID file")
	flags.StringVarP(&opts.log, "log", "L", "", "log sink: syslog:<facility> or an absolute path")
	flags.StringVarP(&opts.logLevel, "loglevel", "l", "", "log level: emerg..debug")
	flags.IntVarP(&opts.threads, "threads", "t", 0, "worker count, 0 = CPU count")
	flags.StringVar(&opts.metrics, "metrics-listen", "", "address for the Prometheus /metrics listener")

	cmd.AddCommand(newSubmitCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	return cmd
}

// loadConfig merges the configuration file with flag overrides.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Threads = opts.threads
	}
	if flags.Changed("log") {
		cfg.Log = opts.log
	}
	if flags.Changed("loglevel") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("metrics-listen") {
		cfg.MetricsListen = opts.metrics
	}
	return cfg, nil
}

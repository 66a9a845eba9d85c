package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mediationd/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mediationd",
		Short:         "Rewarded-ad mediation daemon for MoPub and Vungle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "mediationd", version)
			return err
		},
	}
}

func newServeCmd() *cobra.Command {
	defaultAddr := config.DefaultAddr
	if v := os.Getenv("MEDIATIOND_ADDR"); v != "" {
		defaultAddr = v
	}
	var (
		configPath string
		addr       string
		logLevel   string
		logFormat  string
		logFile    string
		cors       string
		disable    string
		requestTTL int
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the mediation HTTP API",
		Example: "  mediationd serve --config mediationd.yaml\n  mediationd serve --addr :9090 --disable mopub",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			flags := cmd.Flags()
			if flags.Changed("addr") || cfg.Addr == "" {
				cfg.Addr = addr
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("log-file") {
				cfg.LogFile = logFile
			}
			if flags.Changed("cors-origins") {
				cfg.CORSOrigins = splitCSV(cors)
			}
			if flags.Changed("request-ttl") {
				cfg.RequestTTLSeconds = requestTTL
			}
			for _, name := range splitCSV(disable) {
				switch strings.ToLower(name) {
				case "mopub":
					cfg.MoPub.Disabled = true
				case "vungle":
					cfg.Vungle.Disabled = true
				default:
					return fmt.Errorf("unknown network in --disable: %s", name)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg.WithDefaults())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml, .json, .toml)")
	f.StringVar(&addr, "addr", defaultAddr, "HTTP listen address (defaults MEDIATIOND_ADDR or :8080)")
	f.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	f.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log format: console|json")
	f.StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotating file")
	f.StringVar(&cors, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	f.StringVar(&disable, "disable", "", "Comma-separated networks to disable (mopub,vungle)")
	f.IntVar(&requestTTL, "request-ttl", config.DefaultRequestTTL, "Seconds a request stays in the request log")
	return cmd
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

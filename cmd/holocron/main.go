package main

import (
	"io"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aryannaik/holocron/internal/config"
	"github.com/aryannaik/holocron/internal/session"
	"github.com/aryannaik/holocron/internal/swapi"
)

type globalFlags struct {
	configPath string
	baseURL    string
	verbose    bool
}

func main() {
	var flags globalFlags
	root := &cobra.Command{
		Use:          "holocron",
		Short:        "Browse, search and locally edit the Star Wars catalog",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "Override the API base URL")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log fetches and cache activity to stderr")

	root.AddCommand(serveCmd(&flags))
	root.AddCommand(listCmd(&flags))
	root.AddCommand(searchCmd(&flags))
	root.AddCommand(showCmd(&flags))
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.baseURL != "" {
		cfg.API.BaseURL = flags.baseURL
	}
	return cfg, nil
}

// openSession builds a session for one command. One-shot commands log only
// with --verbose; serve always logs.
func openSession(flags *globalFlags, reg *prometheus.Registry, alwaysLog bool) (*config.Config, *session.Session, *swapi.Client, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if !alwaysLog && !flags.verbose {
		logger.SetOutput(io.Discard)
	}
	sess, client := session.FromConfig(cfg, reg, logger)
	return cfg, sess, client, nil
}

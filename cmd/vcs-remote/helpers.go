package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fenilsonani/vcs-remote/internal/observability"
	"github.com/fenilsonani/vcs-remote/internal/transport"
	httptransport "github.com/fenilsonani/vcs-remote/internal/transport/http"
	"github.com/fenilsonani/vcs-remote/internal/transport/smart"
	sshtransport "github.com/fenilsonani/vcs-remote/internal/transport/ssh"
)

// setup loads the config and builds the logger, honoring flag overrides.
func setup(cmd *cobra.Command) (*Config, *zap.Logger, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, observability.NewLogger(cfg.LogLevel, cfg.LogFormat), nil
}

// dialClient builds a smart client for the URL, picking the subtransport by
// scheme so the SSH one can carry the config's known_hosts setting.
func dialClient(cmd *cobra.Command, cfg *Config, url string, logger *zap.Logger) (*smart.Client, error) {
	owner := &transport.Owner{
		URL:         url,
		Credentials: credentialCallback(cmd, cfg),
		Logger:      logger,
	}

	switch transport.Scheme(url) {
	case "http", "https":
		return smart.NewClient(url, httptransport.NewSubtransport(owner), logger), nil
	case "ssh", "":
		opts := sshtransport.DialOptions{KnownHostsPath: cfg.KnownHosts}
		return smart.NewClient(url, sshtransport.NewSubtransport(owner, opts), logger), nil
	default:
		return nil, fmt.Errorf("unsupported remote URL %q", url)
	}
}

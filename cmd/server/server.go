package server

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/stephnangue/regbridge/auth"
	"github.com/stephnangue/regbridge/auth/introspect"
	"github.com/stephnangue/regbridge/auth/token"
	"github.com/stephnangue/regbridge/config"
	regbridgehttp "github.com/stephnangue/regbridge/http"
	"github.com/stephnangue/regbridge/listener"
	log "github.com/stephnangue/regbridge/logger"
	"github.com/stephnangue/regbridge/restconf"
)

const (
	// Subsystem names for logging
	subsystemServer    = "server"
	subsystemAuth      = "auth"
	subsystemCache     = "auth.cache"
	subsystemIntrospec = "auth.introspect"
	subsystemRestconf  = "restconf"
	subsystemHTTP      = "http"
	subsystemListener  = "listener"
)

var (
	configPath string

	ServerCmd = &cobra.Command{
		Use:   "server",
		Short: "This command starts a regbridge server that responds to registration requests",
		Long: `
Usage: regbridge server [options]

  This command starts a regbridge server that accepts client registration
  requests, validates the caller's bearer token against the authorization
  server, and relays the registration to the admin API. Start a server with
  a configuration file:

      $ regbridge server --config=/etc/regbridge/config.hcl

  Every option can also be supplied through REGBRIDGE_* environment
  variables; file values take precedence.
  `,
		RunE: run,
	}
)

func init() {
	ServerCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (e.g., path/to/regbridge.hcl)")
}

func run(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := buildLogger(cfg)

	introspector, err := introspect.NewClient(introspect.Config{
		Endpoint:     cfg.IntrospectionEndpoint(),
		ClientID:     cfg.IntrospectionClientID,
		ClientSecret: cfg.IntrospectionClientSecret,
		VerifyTLS:    cfg.VerifyTLS,
		Timeout:      cfg.ClientTimeout,
		Logger:       logger.WithSystem(subsystemIntrospec),
	})
	if err != nil {
		return fmt.Errorf("failed to construct introspection client: %w", err)
	}

	cache, err := token.NewCache(cfg.CacheBackend, &token.Config{
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
		Logger:     logger.WithSystem(subsystemCache),
	}, introspector)
	if err != nil {
		return fmt.Errorf("failed to construct token cache: %w", err)
	}
	defer cache.Close()

	filter := auth.NewFilter(cache, logger.WithSystem(subsystemAuth))

	var limiter *rate.Limiter
	if cfg.AdminRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.AdminRateLimit), cfg.AdminRateLimit)
	}

	admin, err := restconf.NewClient(restconf.Config{
		BaseURL:    cfg.AdminAPIBaseURL,
		Username:   cfg.AdminAPIUsername,
		Password:   cfg.AdminAPIPassword,
		ProfileID:  cfg.ProfileID,
		VerifyTLS:  cfg.VerifyTLS,
		Timeout:    cfg.ClientTimeout,
		MaxRetries: cfg.AdminMaxRetries,
		Limiter:    limiter,
		Logger:     logger.WithSystem(subsystemRestconf),
	})
	if err != nil {
		return fmt.Errorf("failed to construct admin API client: %w", err)
	}

	httpHandler := regbridgehttp.Handler(&regbridgehttp.HandlerProperties{
		Config: cfg,
		Filter: filter,
		Admin:  admin,
		Logger: logger.WithSystem(subsystemHTTP),
	})

	ln, err := listener.New(listener.Config{
		Logger:      logger.WithSystem(subsystemListener),
		Address:     cfg.ListenAddress,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
	}, httpHandler)
	if err != nil {
		return fmt.Errorf("failed to construct listener: %w", err)
	}

	printInfo(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Regbridge server started! Log data will stream in below:\n")

	if err := ln.Start(ctx); err != nil {
		logger.Error("listener terminated", log.Err(err))
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server shutdown completed successfully\n")
	return nil
}

// printInfo writes the server configuration table, sorted by key.
func printInfo(cmd *cobra.Command, cfg *config.Config) {
	infoKeys := make([]string, 0, 10)
	info := make(map[string]string)

	addInfo := func(key, value string) {
		info[key] = value
		infoKeys = append(infoKeys, key)
	}

	addInfo("listen address", cfg.ListenAddress)
	addInfo("log level", cfg.LogLevel)
	addInfo("log format", cfg.LogFormat)
	addInfo("log file", cfg.LogFile)
	addInfo("issuer path", cfg.IssuerPath)
	addInfo("oauth profile", cfg.ProfileID)
	addInfo("admin api", cfg.AdminAPIBaseURL)
	addInfo("introspection endpoint", cfg.IntrospectionEndpoint())
	addInfo("cache backend", cfg.CacheBackend)
	addInfo("cache ttl", cfg.CacheTTL.String())
	addInfo("cache max entries", fmt.Sprintf("%d", cfg.CacheMaxEntries))
	addInfo("verify tls", fmt.Sprintf("%t", cfg.VerifyTLS))
	addInfo("client timeout", cfg.ClientTimeout.String())

	sort.Strings(infoKeys)
	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Regbridge server configuration:\n\n")

	titleCaser := cases.Title(language.English, cases.NoLower)

	for _, k := range infoKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%24s: %s\n", titleCaser.String(k), info[k])
	}
}

func buildLogger(cfg *config.Config) log.Logger {
	level := log.ParseLogLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.DebugLevel
	}

	logConfig := &log.Config{
		Level:   level,
		System:  subsystemServer,
		Format:  log.ParseOutputFormat(cfg.LogFormat),
		Outputs: []io.Writer{os.Stdout},
	}

	if cfg.LogFile != "" {
		logConfig.FileConfig = &log.FileConfig{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 5,
		}
	}

	return log.NewZerologLogger(logConfig)
}

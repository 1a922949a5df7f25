package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/iwvelando/mro-estimator/internal/capture"
	"github.com/iwvelando/mro-estimator/internal/config"
	"github.com/iwvelando/mro-estimator/internal/crm"
	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/export"
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/internal/server"
	"github.com/iwvelando/mro-estimator/internal/store"
	"github.com/iwvelando/mro-estimator/internal/wizard"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/output"
	"github.com/iwvelando/mro-estimator/pkg/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: mro-estimator <command> [flags]

commands:
  serve     run the web calculator and lead capture API
  estimate  compute an estimate for a profile file and print it
`

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var config zap.Config
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
	case "json":
		config = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		config.OutputPaths = []string{loggingConfig.OutputFile}
		config.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return config.Build()
}

// fatal reports a failure that happened before a logger exists.
func fatal(msg string, err error) {
	fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"%s\", \"error\": \"%v\"}\n", msg, err)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "estimate":
		runEstimate(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func loadConfigAndLogger(configLocation, logLevel string) (*config.Configuration, *zap.Logger) {
	conf, err := config.LoadConfiguration(configLocation)
	if err != nil {
		fatal(fmt.Sprintf("failed to load configuration at %s", configLocation), err)
	}

	logger, err := initializeLogger(conf.Logging, logLevel)
	if err != nil {
		fatal("failed to initialize logger", err)
	}
	return conf, logger
}

// configPath returns path, or "" when path is the default file and it does
// not exist, so a bare invocation runs on defaults and environment.
func configPath(path string) string {
	if path != constants.DefaultConfigFile {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configLocation := fs.String("config", constants.DefaultConfigFile, "path to configuration file")
	logLevel := fs.String("log-level", "", "log level override (debug, info, warn, error)")
	address := fs.String("address", "", "listen address override")
	_ = fs.Parse(args)

	conf, logger := loadConfigAndLogger(configPath(*configLocation), *logLevel)
	defer func() {
		_ = logger.Sync()
	}()

	if *address != "" {
		conf.Server.Address = *address
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, logger, store.Options{
		Driver:      conf.Store.Driver,
		DatabaseURL: conf.Store.DatabaseURL,
	})
	if err != nil {
		logger.Fatal("failed to open lead store",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	defer st.Close()

	syncer, err := buildSyncer(conf.CRM, logger)
	if err != nil {
		logger.Fatal("failed to configure CRM",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	crmTimeout, _ := conf.CRM.TimeoutDuration()
	leads := capture.New(st, syncer, logger, crmTimeout)

	sessionTTL, _ := conf.Server.SessionTTLDuration()
	sessions := wizard.NewManager(leads, logger, sessionTTL)
	if sessionTTL > 0 {
		go sessions.Run(ctx, sessionTTL/4)
	}

	maxBodySize, _ := conf.Server.MaxBodySizeBytes()
	srv := &http.Server{
		Addr: conf.Server.Address,
		Handler: server.NewHandler(logger, server.Dependencies{
			Sessions:          sessions,
			Leads:             leads,
			LeadRatePerMinute: conf.Server.LeadRatePerMinute,
		}, maxBodySize, version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "main"),
			zap.String("address", conf.Server.Address),
			zap.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down HTTP server",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if err := leads.Wait(shutdownCtx); err != nil {
		logger.Warn("pending CRM syncs abandoned at shutdown",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	logger.Info("stopped", zap.String("op", "main"))
}

// buildSyncer returns the CRM syncer for cfg. A static access token wins
// over a connector.
func buildSyncer(cfg config.CRMConfig, logger *zap.Logger) (crm.Syncer, error) {
	if !cfg.Enabled {
		logger.Info("CRM sync disabled", zap.String("op", "main"))
		return crm.Disabled{}, nil
	}

	var creds crm.CredentialSource
	switch {
	case cfg.AccessToken != "":
		creds = crm.StaticToken(cfg.AccessToken)
	case cfg.ConnectorURL != "":
		creds = crm.Connector{URL: cfg.ConnectorURL, Token: cfg.ConnectorToken}
	default:
		return nil, errors.New("crm.enabled requires crm.accessToken or crm.connectorURL")
	}

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	return crm.New(crm.Config{
		BaseURL:  cfg.BaseURL,
		FormsURL: cfg.FormsURL,
		PortalID: cfg.PortalID,
		FormGUID: cfg.FormGUID,
		PageURI:  cfg.PageURI,
		PageName: cfg.PageName,
		Timeout:  timeout,
	}, creds, logger), nil
}

func runEstimate(args []string) {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	configLocation := fs.String("config", constants.DefaultConfigFile, "path to configuration file")
	profileLocation := fs.String("profile", "profile.yaml", "path to profile file")
	concerns := fs.String("concerns", "", "comma-separated concerns override: inventory, spend, downtime")
	outputFormatFlag := fs.String("output-format", "", "type of output override: pretty, csv")
	xlsxPath := fs.String("xlsx", "", "also write the estimate as a workbook to this path")
	acceptDefaultMix := fs.Bool("accept-default-mix", false, "replace an unbalanced inventory mix with the default")
	logLevel := fs.String("log-level", "", "log level override (debug, info, warn, error)")
	_ = fs.Parse(args)

	conf, logger := loadConfigAndLogger(configPath(*configLocation), *logLevel)
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	p, sel, err := profile.LoadFile(*profileLocation)
	if err != nil {
		logger.Fatal("failed to load profile",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if *concerns != "" {
		sel, err = profile.ParseSelection(splitList(*concerns))
		if err != nil {
			logger.Fatal("invalid concerns",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
	if sel.Empty() {
		logger.Fatal(wizard.ErrNoConcerns.Error(), zap.String("op", "main"))
	}

	outcome := validation.Validate(p, sel)
	if outcome.Status == validation.StatusNeedsConfirmation && *acceptDefaultMix {
		logger.Warn("inventory mix does not sum to 100%, using the default mix",
			zap.String("op", "main"),
		)
		p = validation.ApplyFallback(p)
		outcome = validation.Validate(p, sel)
	}
	switch outcome.Status {
	case validation.StatusBlocked:
		logger.Fatal("profile is invalid",
			zap.String("op", "main"),
			zap.Any("errors", outcome.Errors),
		)
	case validation.StatusNeedsConfirmation:
		logger.Fatal("inventory mix does not sum to 100%; fix it or pass -accept-default-mix",
			zap.String("op", "main"),
			zap.Float64("mixTotal", p.Mix.Sum()),
		)
	}
	for _, w := range outcome.Warnings {
		logger.Warn(w.Message,
			zap.String("op", "main"),
			zap.String("field", w.Field),
		)
	}

	result := estimate.Estimate(p, sel)

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(result)
	case constants.OutputFormatCSV:
		output.CsvFormat(result)
	}

	if *xlsxPath != "" {
		if err := writeWorkbook(*xlsxPath, p, result); err != nil {
			logger.Fatal("failed to write workbook",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
}

func writeWorkbook(path string, p profile.Profile, r estimate.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, p, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartsensors/config"
	"smartsensors/log"
	"smartsensors/metrics"
	"smartsensors/services"

	"go.uber.org/zap"
)

func main() {
	defer services.Recover()

	// Initialize structured logger
	logger := log.GetInstance()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	time.Local = loc

	for _, warning := range cfg.Validate() {
		logger.Warn("Configuration warning", zap.String("warning", warning))
	}

	metrics.Init()

	// Escalation sinks
	var escalators []services.Escalator
	if cfg.SendToBackend {
		escalators = append(escalators, services.NewHTTPEscalator(logger, cfg.FrontendLogURL()))
	}

	if cfg.MQTTBroker != "" {
		mqttEscalator, err := services.NewMQTTEscalator(cfg, logger)
		if err != nil {
			logger.Warn("MQTT escalation disabled", zap.Error(err))
		} else {
			defer mqttEscalator.Close()
			escalators = append(escalators, mqttEscalator)
		}
	}

	if cfg.RabbitMQURL != "" {
		rabbitEscalator, err := services.NewRabbitMQEscalator(cfg, logger)
		if err != nil {
			logger.Warn("RabbitMQ escalation disabled", zap.Error(err))
		} else {
			defer rabbitEscalator.Close()
			escalators = append(escalators, rabbitEscalator)
		}
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegramEscalator, err := services.NewTelegramEscalator(cfg, logger)
		if err != nil {
			logger.Warn("Telegram escalation disabled", zap.Error(err))
		} else {
			escalators = append(escalators, telegramEscalator)
		}
	}

	multi := services.NewMultiEscalator(escalators...)
	var escalator services.Escalator
	if multi.Len() > 0 {
		escalator = multi
	}

	// Diagnostic logger, registered once for uncaught failures
	store := services.NewFileLogStore(cfg.LogStorePath)
	diag := services.NewDiagnosticLogger(cfg, logger, store, escalator)
	diag.InstallGlobalCapture()

	// Create context for startup calls
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetcher services.Fetcher
	switch cfg.DataSource {
	case "firebase":
		firebaseFetcher, err := services.NewFirebaseFetcher(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase source", zap.Error(err))
		}
		fetcher = firebaseFetcher
	default:
		fetcher = services.NewHTTPFetcher(logger, cfg.SensorDataURL(), cfg.RequestTimeout)
	}

	// Start one polling loop per active view
	poller := services.NewPoller(cfg, diag, logger)
	handles := make(map[string]*services.PollHandle, len(cfg.ActiveViews))
	for _, view := range cfg.ActiveViews {
		spec, err := services.LookupView(view)
		if err != nil {
			logger.Warn("Skipping unknown view", zap.String("view", view))
			continue
		}
		handle := poller.Start(spec.Component, fetcher, cfg.PollInterval(view))
		defer handle.Stop()
		handles[view] = handle
	}
	if len(handles) == 0 {
		logger.Fatal("No valid views configured", zap.Strings("active_views", cfg.ActiveViews))
	}

	views := services.NewViewBuilder(services.NewChartProjector(cfg.ChartMaxPoints), services.NewClassifier(cfg))
	dashboard := services.NewDashboard(handles, views, diag, logger)

	server := &http.Server{
		Addr:              cfg.DashboardAddr,
		Handler:           dashboard.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			diag.Error("Dashboard", "Dashboard server failed", err)
		}
	}()

	logger.Info("Smart sensors client started",
		zap.String("data_source", cfg.DataSource),
		zap.String("endpoint", cfg.SensorDataURL()),
		zap.Strings("views", cfg.ActiveViews),
		zap.String("dashboard", cfg.DashboardAddr),
		zap.String("escalation", multi.Name()),
		zap.Int("restored_logs", diag.Len()),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down dashboard", zap.Error(err))
	}

	for _, handle := range handles {
		handle.Stop()
	}

	if err := diag.Flush(shutdownCtx); err != nil {
		logger.Warn("Pending log escalations dropped", zap.Error(err))
	}

	logger.Info("Smart sensors client stopped")
}

package main

import (
	"fmt"
	"os"

	"smartsensors/config"
	"smartsensors/log"
	"smartsensors/models"
	"smartsensors/services"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	storePath = flag.String("store", "", "Path of the persisted log file (default LOG_STORE_PATH)")
	level     = flag.String("level", "", "Only print entries of this level (info, warning, error)")
	out       = flag.String("out", "", "Write a JSON export to this file instead of printing")
	clearLogs = flag.Bool("clear", false, "Delete the persisted log after printing")
)

func main() {
	flag.Parse()

	logger := log.GetInstance()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if *storePath != "" {
		cfg.LogStorePath = *storePath
	}

	// Read-only view of the blob: keep every entry and never escalate
	cfg.LoggingEnabled = true
	cfg.SendToBackend = false
	cfg.AutoClearAfter = 0

	store := services.NewFileLogStore(cfg.LogStorePath)
	diag := services.NewDiagnosticLogger(cfg, logger, store, nil)

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Fatal("Failed to create export file", zap.Error(err))
		}
		if err := diag.ExportLogs(f); err != nil {
			f.Close()
			logger.Fatal("Failed to export logs", zap.Error(err))
		}
		if err := f.Close(); err != nil {
			logger.Fatal("Failed to close export file", zap.Error(err))
		}
		logger.Info("Logs exported", zap.String("file", *out), zap.Int("count", diag.Len()))
	} else {
		for _, entry := range diag.GetLogs(models.LogLevel(*level)) {
			fmt.Printf("%s [%-7s] %-20s %s\n",
				entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
				entry.Level,
				entry.Component,
				entry.Message)
		}
	}

	if *clearLogs {
		diag.ClearLogs()
		logger.Info("Persisted logs cleared", zap.String("store", store.Path()))
	}
}

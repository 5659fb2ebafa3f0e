package services

import (
	"context"
	"fmt"
	"time"

	"smartsensors/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FirebaseFetcher reads the sensor payload mirrored into a Realtime Database
// node. The node holds the same document the HTTP /data endpoint returns.
type FirebaseFetcher struct {
	client *db.Client
	path   string
	logger *zap.Logger
}

// NewFirebaseFetcher connects to the Realtime Database configured in cfg
func NewFirebaseFetcher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FirebaseFetcher, error) {
	if cfg.FirebaseDbUrl == "" || cfg.FirebaseServiceAccountJSON == "" {
		return nil, fmt.Errorf("firebase configuration is required for DATA_SOURCE=firebase")
	}

	conf := &firebase.Config{
		DatabaseURL: cfg.FirebaseDbUrl,
	}

	opt := option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	ff := &FirebaseFetcher{
		client: client,
		path:   cfg.FirebaseSensorPath,
		logger: logger,
	}

	if err := ff.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("firebase connection test failed: %w", err)
	}

	return ff, nil
}

// testConnection reads the configured node with retry
func (ff *FirebaseFetcher) testConnection(ctx context.Context) error {
	maxRetries := 3
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ff.logger.Info("Testing Firebase connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		var data any
		err = ff.client.NewRef(ff.path).Get(ctx, &data)
		if err == nil {
			ff.logger.Info("Firebase connection successful", zap.String("path", ff.path))
			return nil
		}

		ff.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to Firebase after %d attempts: %w", maxRetries, err)
}

// Endpoint returns a descriptive name of the polled node
func (ff *FirebaseFetcher) Endpoint() string {
	return "firebase:" + ff.path
}

// Fetch reads the node once
func (ff *FirebaseFetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	var payload map[string]any
	if err := ff.client.NewRef(ff.path).Get(ctx, &payload); err != nil {
		return nil, &FetchError{Endpoint: ff.Endpoint(), Err: err}
	}
	if payload == nil {
		return nil, &FetchError{Endpoint: ff.Endpoint(), Err: ErrNoData}
	}

	return &FetchResult{
		Payload:    payload,
		StatusCode: 200,
		Endpoint:   ff.Endpoint(),
	}, nil
}

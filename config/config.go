package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// View names, one polling loop per view
const (
	ViewAirQuality = "air_quality"
	ViewGasSensors = "gas_sensors"
	ViewDeviceInfo = "device_info"
)

const defaultBaseURL = "http://192.168.4.2:8000"

// DefaultMinPollInterval is the poll interval floor
const DefaultMinPollInterval = time.Second

type Config struct {
	// Sensor backend
	BaseURL         string
	SensorDataPath  string
	FrontendLogPath string
	RequestTimeout  time.Duration
	DataSource      string // "http" or "firebase"

	// Polling
	SensorDataInterval time.Duration
	GasSensorsInterval time.Duration
	DeviceInfoInterval time.Duration
	MinPollInterval    time.Duration
	ActiveViews        []string
	ChartMaxPoints     int

	// Diagnostic logging
	LoggingEnabled bool
	SendToBackend  bool
	SendOnlyErrors bool
	MaxLocalLogs   int
	AutoClearAfter time.Duration
	LogStorePath   string
	ClientURL      string
	ClientAgent    string

	// Dashboard read API
	DashboardAddr string
	Timezone      string

	// Optional escalation sinks
	MQTTBroker         string
	MQTTUser           string
	MQTTPass           string
	MQTTTopic          string
	RabbitMQURL        string
	RabbitMQExchange   string
	RabbitMQRoutingKey string
	TelegramBotToken   string
	TelegramChatID     string

	// Optional Firebase telemetry source
	FirebaseDbUrl              string
	FirebaseServiceAccountJSON string
	FirebaseSensorPath         string

	// Thresholds for sensor classification
	PM25Good          float64
	PM25Moderate      float64
	PM25Unhealthy     float64
	PM25VeryUnhealthy float64
	PM10Good          float64
	PM10Moderate      float64
	PM10Unhealthy     float64
	PM10VeryUnhealthy float64
	SO2Safe           float64
	SO2Warning        float64
	TVOCSafe          float64
	TVOCWarning       float64
	LELSafe           float64
	LELWarning        float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dashboardAddr := getEnv("DASHBOARD_ADDR", ":8080")

	config := &Config{
		BaseURL:         strings.TrimRight(getEnv("API_BASE_URL", defaultBaseURL), "/"),
		SensorDataPath:  getEnv("SENSOR_DATA_PATH", "/data"),
		FrontendLogPath: getEnv("FRONTEND_LOG_PATH", "/api/log/frontend"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		DataSource:      getEnv("DATA_SOURCE", "http"),

		SensorDataInterval: getEnvDuration("SENSOR_DATA_INTERVAL", 2*time.Second),
		GasSensorsInterval: getEnvDuration("GAS_SENSORS_INTERVAL", 2*time.Second),
		DeviceInfoInterval: getEnvDuration("DEVICE_INFO_INTERVAL", 2*time.Second),
		MinPollInterval:    getEnvDuration("MIN_POLL_INTERVAL", DefaultMinPollInterval),
		ActiveViews:        getEnvList("ACTIVE_VIEWS", []string{ViewAirQuality, ViewGasSensors, ViewDeviceInfo}),
		ChartMaxPoints:     getEnvInt("CHART_MAX_POINTS", 10),

		LoggingEnabled: getEnvBool("LOGGING_ENABLED", true),
		SendToBackend:  getEnvBool("LOG_SEND_TO_BACKEND", true),
		SendOnlyErrors: getEnvBool("LOG_SEND_ONLY_ERRORS", true),
		MaxLocalLogs:   getEnvInt("LOG_MAX_LOCAL", 100),
		AutoClearAfter: getEnvDuration("LOG_AUTO_CLEAR_AFTER", 24*time.Hour),
		LogStorePath:   getEnv("LOG_STORE_PATH", "app_logs.json"),
		ClientURL:      getEnv("CLIENT_URL", "http://localhost"+dashboardAddr+"/"),
		ClientAgent:    getEnv("CLIENT_AGENT", "smartsensors-client/1.0"),

		DashboardAddr: dashboardAddr,
		Timezone:      getEnv("TZ_NAME", "Asia/Tehran"),

		MQTTBroker:         getEnv("MQTT_BROKER", ""),
		MQTTUser:           getEnv("MQTT_USER", ""),
		MQTTPass:           getEnv("MQTT_PASS", ""),
		MQTTTopic:          getEnv("MQTT_TOPIC", "smartsensors/logs"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "smartsensors.logs"),
		RabbitMQRoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "frontend_logs"),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),

		FirebaseDbUrl:              getEnv("FIREBASE_DB_URL", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseSensorPath:         getEnv("FIREBASE_SENSOR_PATH", "sensor-data/latest"),

		// Default thresholds - can be overridden by env vars
		PM25Good:          getEnvFloat("PM25_GOOD", 12),
		PM25Moderate:      getEnvFloat("PM25_MODERATE", 35),
		PM25Unhealthy:     getEnvFloat("PM25_UNHEALTHY", 55),
		PM25VeryUnhealthy: getEnvFloat("PM25_VERY_UNHEALTHY", 150),
		PM10Good:          getEnvFloat("PM10_GOOD", 54),
		PM10Moderate:      getEnvFloat("PM10_MODERATE", 154),
		PM10Unhealthy:     getEnvFloat("PM10_UNHEALTHY", 254),
		PM10VeryUnhealthy: getEnvFloat("PM10_VERY_UNHEALTHY", 354),
		SO2Safe:           getEnvFloat("SO2_SAFE", 0.5),
		SO2Warning:        getEnvFloat("SO2_WARNING", 2.0),
		TVOCSafe:          getEnvFloat("TVOC_SAFE", 220),
		TVOCWarning:       getEnvFloat("TVOC_WARNING", 660),
		LELSafe:           getEnvFloat("LEL_SAFE", 10),
		LELWarning:        getEnvFloat("LEL_WARNING", 20),
	}

	if config.MaxLocalLogs <= 0 {
		return nil, fmt.Errorf("LOG_MAX_LOCAL must be positive, got %d", config.MaxLocalLogs)
	}
	if config.MinPollInterval <= 0 {
		return nil, fmt.Errorf("MIN_POLL_INTERVAL must be positive, got %s", config.MinPollInterval)
	}
	if config.ChartMaxPoints <= 0 {
		return nil, fmt.Errorf("CHART_MAX_POINTS must be positive, got %d", config.ChartMaxPoints)
	}
	switch config.DataSource {
	case "http", "firebase":
	default:
		return nil, fmt.Errorf("unknown DATA_SOURCE %q", config.DataSource)
	}

	return config, nil
}

// SensorDataURL returns the full URL of the sensor data endpoint
func (c *Config) SensorDataURL() string {
	return c.BaseURL + c.SensorDataPath
}

// FrontendLogURL returns the full URL of the log escalation endpoint
func (c *Config) FrontendLogURL() string {
	return c.BaseURL + c.FrontendLogPath
}

// PollInterval returns the polling interval for a view, never below MinPollInterval
func (c *Config) PollInterval(view string) time.Duration {
	var interval time.Duration
	switch view {
	case ViewGasSensors:
		interval = c.GasSensorsInterval
	case ViewDeviceInfo:
		interval = c.DeviceInfoInterval
	default:
		interval = c.SensorDataInterval
	}
	return c.ClampInterval(interval)
}

// ClampInterval raises interval to the configured floor. A non-positive
// floor falls back to DefaultMinPollInterval.
func (c *Config) ClampInterval(interval time.Duration) time.Duration {
	floor := c.MinPollInterval
	if floor <= 0 {
		floor = DefaultMinPollInterval
	}
	if interval < floor {
		return floor
	}
	return interval
}

// Validate returns human readable warnings about risky settings
func (c *Config) Validate() []string {
	var warnings []string

	if c.BaseURL == defaultBaseURL {
		warnings = append(warnings, "API_BASE_URL is set to default, update it to your backend address")
	}
	if strings.HasPrefix(c.BaseURL, "http://") && !isLocalURL(c.BaseURL) {
		warnings = append(warnings, "API_BASE_URL uses plain HTTP, consider HTTPS")
	}
	for _, view := range c.ActiveViews {
		raw := c.SensorDataInterval
		switch view {
		case ViewGasSensors:
			raw = c.GasSensorsInterval
		case ViewDeviceInfo:
			raw = c.DeviceInfoInterval
		}
		if raw < time.Second {
			warnings = append(warnings, fmt.Sprintf("poll interval for %s is below 1s (%s)", view, raw))
		}
	}
	if c.SendToBackend && c.BaseURL == "" {
		warnings = append(warnings, "LOG_SEND_TO_BACKEND is on but API_BASE_URL is empty")
	}

	return warnings
}

func isLocalURL(u string) bool {
	return strings.Contains(u, "://localhost") || strings.Contains(u, "://127.0.0.1") ||
		strings.Contains(u, "://192.168.") || strings.Contains(u, "://10.")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("2s") or plain milliseconds ("2000")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sensor sources selectable with SENSOR_SOURCE.
const (
	SourceSimulated = "simulated"
	SourceMQTT      = "mqtt"
	SourceNone      = "none"
)

type Config struct {
	Port   int
	APIKey string // empty disables the API key check

	DatabasePath   string
	LogDirectory   string
	PhotoDirectory string

	SensorSource     string
	LocationInterval time.Duration
	HasAccelerometer bool
	CameraDevice     int // -1 disables photo capture

	// Starting point of the simulated random walk.
	SimLatitude  float64
	SimLongitude float64

	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
	DeviceID        string
}

// Load reads configuration from the environment, after loading .env when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:   getEnvAsInt("PORT", 8080),
		APIKey: getEnv("API_KEY", ""),

		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "sensors.db")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		PhotoDirectory: getEnv("PHOTO_DIR", filepath.Join(".", "photos")),

		SensorSource:     strings.ToLower(getEnv("SENSOR_SOURCE", SourceSimulated)),
		LocationInterval: time.Duration(getEnvAsInt("LOCATION_INTERVAL_MS", 5000)) * time.Millisecond,
		HasAccelerometer: getEnvAsBool("HAS_ACCELEROMETER", true),
		CameraDevice:     getEnvAsInt("CAMERA_DEVICE", -1),

		SimLatitude:  getEnvAsFloat("SIM_LATITUDE", 52.2297),
		SimLongitude: getEnvAsFloat("SIM_LONGITUDE", 21.0122),

		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "sensorlog"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "sensorlog"),
		DeviceID:        getEnv("DEVICE_ID", "phone"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

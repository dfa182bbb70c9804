package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is the JSON config file looked up in the config directory.
const ConfigFileName = "geopot.cfg.json"

// DetectorConfig holds detection service settings
type DetectorConfig struct {
	URL     string        `json:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// LocationConfig holds location tracker settings.
// Mode is one of "static", "route" or "none".
type LocationConfig struct {
	Interval  time.Duration `json:"interval" mapstructure:"interval"`
	Mode      string        `json:"mode" mapstructure:"mode"`
	Latitude  float64       `json:"latitude" mapstructure:"latitude"`
	Longitude float64       `json:"longitude" mapstructure:"longitude"`
	Route     string        `json:"route" mapstructure:"route"` // "lat,lng;lat,lng;..."
}

// CameraConfig holds capture device settings.
// Device is one of "dir", "image" or "gocv".
type CameraConfig struct {
	Device      string `json:"device" mapstructure:"device"`
	FramesDir   string `json:"framesDir" mapstructure:"framesDir"`
	ImagePath   string `json:"imagePath" mapstructure:"imagePath"`
	DeviceID    int    `json:"deviceId" mapstructure:"deviceId"`
	RecordFPS   int    `json:"recordFps" mapstructure:"recordFps"`
	JPEGQuality int    `json:"jpegQuality" mapstructure:"jpegQuality"`
}

// SamplingConfig holds live sampling and marker placement settings
type SamplingConfig struct {
	Interval     time.Duration `json:"interval" mapstructure:"interval"`
	OffsetStep   float64       `json:"offsetStep" mapstructure:"offsetStep"`
	SearchPinTTL time.Duration `json:"searchPinTtl" mapstructure:"searchPinTtl"`
}

// SinkConfig holds display sink settings
type SinkConfig struct {
	Type   string `json:"type" mapstructure:"type"`
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// GeocoderConfig holds geocoding lookup settings
type GeocoderConfig struct {
	URL       string  `json:"url" mapstructure:"url"`
	UserAgent string  `json:"userAgent" mapstructure:"userAgent"`
	RPS       float64 `json:"rps" mapstructure:"rps"`
}

// VideoConfig holds settings for saved live recordings
type VideoConfig struct {
	OutputDir string `json:"outputDir" mapstructure:"outputDir"`
}

// MonitorConfig holds status monitor settings.
// An empty StatusFile disables the status file.
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// Load reads configuration from the JSON file and sets default values.
// configDir is the directory containing the config file and an optional .env.
// Environment variables prefixed with GEOPOT_ override file values
// (GEOPOT_DETECTOR_URL overrides detector.url).
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./geopotlogs")

	viper.SetDefault("detector.url", "http://localhost:5000/detect")
	viper.SetDefault("detector.timeout", "30s")

	viper.SetDefault("location.interval", "10s")
	viper.SetDefault("location.mode", "static")
	viper.SetDefault("location.latitude", 19.125)
	viper.SetDefault("location.longitude", 72.9)
	viper.SetDefault("location.route", "")

	viper.SetDefault("camera.device", "dir")
	viper.SetDefault("camera.framesDir", "./frames")
	viper.SetDefault("camera.imagePath", "")
	viper.SetDefault("camera.deviceId", 0)
	viper.SetDefault("camera.recordFps", 10)
	viper.SetDefault("camera.jpegQuality", 90)

	viper.SetDefault("sampling.interval", "1s")
	viper.SetDefault("sampling.offsetStep", 0.0001)
	viper.SetDefault("sampling.searchPinTtl", "5s")

	viper.SetDefault("sink.type", "memory")
	viper.SetDefault("sink.url", "ws://localhost:8080/ws")
	viper.SetDefault("sink.secret", "")

	viper.SetDefault("geocoder.url", "https://nominatim.openstreetmap.org")
	viper.SetDefault("geocoder.userAgent", "geo-pot/1.0")
	viper.SetDefault("geocoder.rps", 1.0)

	viper.SetDefault("video.outputDir", "./videos")

	viper.SetDefault("monitor.interval", "30s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "geopot")
	viper.SetDefault("influx.bucket", "road_survey")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "geo-pot")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	// .env is optional; values already present in the environment win.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	viper.SetEnvPrefix("GEOPOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetDetectorConfig returns the detection client configuration.
func GetDetectorConfig() DetectorConfig {
	return DetectorConfig{
		URL:     viper.GetString("detector.url"),
		Timeout: viper.GetDuration("detector.timeout"),
	}
}

// GetLocationConfig returns the location tracker configuration.
func GetLocationConfig() LocationConfig {
	return LocationConfig{
		Interval:  viper.GetDuration("location.interval"),
		Mode:      viper.GetString("location.mode"),
		Latitude:  viper.GetFloat64("location.latitude"),
		Longitude: viper.GetFloat64("location.longitude"),
		Route:     viper.GetString("location.route"),
	}
}

// GetCameraConfig returns the capture device configuration.
func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Device:      viper.GetString("camera.device"),
		FramesDir:   viper.GetString("camera.framesDir"),
		ImagePath:   viper.GetString("camera.imagePath"),
		DeviceID:    viper.GetInt("camera.deviceId"),
		RecordFPS:   viper.GetInt("camera.recordFps"),
		JPEGQuality: viper.GetInt("camera.jpegQuality"),
	}
}

// GetSamplingConfig returns the live sampling configuration.
func GetSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Interval:     viper.GetDuration("sampling.interval"),
		OffsetStep:   viper.GetFloat64("sampling.offsetStep"),
		SearchPinTTL: viper.GetDuration("sampling.searchPinTtl"),
	}
}

// GetSinkConfig returns the display sink configuration.
func GetSinkConfig() SinkConfig {
	return SinkConfig{
		Type:   viper.GetString("sink.type"),
		URL:    viper.GetString("sink.url"),
		Secret: viper.GetString("sink.secret"),
	}
}

// GetGeocoderConfig returns the geocoder configuration.
func GetGeocoderConfig() GeocoderConfig {
	return GeocoderConfig{
		URL:       viper.GetString("geocoder.url"),
		UserAgent: viper.GetString("geocoder.userAgent"),
		RPS:       viper.GetFloat64("geocoder.rps"),
	}
}

// GetVideoConfig returns the video output configuration.
func GetVideoConfig() VideoConfig {
	return VideoConfig{
		OutputDir: viper.GetString("video.outputDir"),
	}
}

// GetMonitorConfig returns the status monitor configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

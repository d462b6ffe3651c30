package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// SinkRemote posts accepted payloads to the configured endpoint.
	SinkRemote = "remote"
	// SinkLocal writes accepted payloads into the display label.
	SinkLocal = "local"

	// SourceDevice captures from a local camera device.
	SourceDevice = "device"
	// SourceUDP reassembles JPEG frames sent by network cameras.
	SourceUDP = "udp"
)

// defaultCooldown applies when SCAN_COOLDOWN_MS is not a positive value.
const defaultCooldown = 5 * time.Second

type Config struct {
	Port     int
	Password string

	Sink        string // remote | local
	ServerURL   string // endpoint used by the remote sink
	Placeholder string // label text when a code carried no readable text

	Source        string            // device | udp
	CameraFacing  string            // front | rear, empty picks the variant default
	FrontDevice   int               // device index of the front camera
	RearDevice    int               // device index of the rear camera
	CamerasPort   int               // UDP port for network cameras
	CameraNames   map[string]string // ip -> camera name
	CameraConsent bool              // operator consent given up front

	Decoder         string        // zxing | gocv
	ScanCooldown    time.Duration // window after an accepted detection
	RequestTimeout  time.Duration // 0 disables the timeout
	MaxInFlight     int           // frames allowed outstanding before capture stalls
	PreviewInterval int           // render every Nth frame to viewers

	DBPath       string // empty disables scan history
	LogDirectory string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8080),
		Password:        getEnv("PASSWORD", "escaner"),
		Sink:            strings.ToLower(getEnv("SINK", SinkRemote)),
		ServerURL:       getEnv("SERVER_URL", "http://192.168.100.66:5000/procesar_palabra"),
		Placeholder:     getEnv("PLACEHOLDER", "Could not read"),
		Source:          strings.ToLower(getEnv("SOURCE", SourceDevice)),
		CameraFacing:    strings.ToLower(getEnv("CAMERA_FACING", "")),
		FrontDevice:     getEnvAsInt("FRONT_CAMERA_DEVICE", 0),
		RearDevice:      getEnvAsInt("REAR_CAMERA_DEVICE", 1),
		CamerasPort:     getEnvAsInt("CAMERAS_PORT", 8081),
		CameraNames:     getEnvAsMap("CAMERA_NAMES"),
		CameraConsent:   getEnvAsBool("CAMERA_CONSENT", false),
		Decoder:         strings.ToLower(getEnv("DECODER", "zxing")),
		ScanCooldown:    time.Duration(getEnvAsInt("SCAN_COOLDOWN_MS", 5000)) * time.Millisecond,
		RequestTimeout:  time.Duration(getEnvAsInt("REQUEST_TIMEOUT_MS", 0)) * time.Millisecond,
		MaxInFlight:     getEnvAsInt("MAX_IN_FLIGHT", 3),
		PreviewInterval: getEnvAsInt("PREVIEW_INTERVAL", 3), // Co którą klatkę wysyłać do podglądu
		DBPath:          getEnv("DB_PATH", filepath.Join(".", "data", "scans.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
	if cfg.ScanCooldown <= 0 {
		cfg.ScanCooldown = defaultCooldown
	}
	if !getEnvAsBool("SCAN_HISTORY", true) {
		cfg.DBPath = ""
	}
	return cfg
}

// Facing returns the camera facing to bind. The remote variant defaults to the
// front camera, the local one to the rear camera.
func (c *Config) Facing() string {
	switch c.CameraFacing {
	case "front", "rear":
		return c.CameraFacing
	}
	if c.Sink == SinkLocal {
		return "rear"
	}
	return "front"
}

// DeviceFor maps a facing to its device index.
func (c *Config) DeviceFor(facing string) int {
	if facing == "rear" {
		return c.RearDevice
	}
	return c.FrontDevice
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

// getEnvAsMap parses "ip=name,ip=name" pairs.
func getEnvAsMap(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}

package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Host        string
	Port        int
	Model       string // size tier: tiny, base, small, medium, large-v3, ...
	Device      string // "cpu" or "cuda"
	ComputeType string // int8, float16, ...
	ModelDir    string
	ModelPath   string // full override; empty means ModelDir/ggml-<Model>.bin
	FFmpegBin   string
	Threads     int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func Load() Config {
	device := getenv("WHISPER_DEVICE", "cpu")
	if device != "cpu" && device != "cuda" {
		log.Warn().Str("device", device).Msg("config: unknown device, falling back to cpu")
		device = "cpu"
	}
	computeDefault := "int8"
	if device == "cuda" {
		computeDefault = "float16"
	}
	return Config{
		Host:        getenv("WHISPER_HOST", ""),
		Port:        getenvInt("WHISPER_PORT", 8001),
		Model:       getenv("WHISPER_MODEL", "small"),
		Device:      device,
		ComputeType: getenv("WHISPER_COMPUTE_TYPE", computeDefault),
		ModelDir:    getenv("WHISPER_MODEL_DIR", "./models"),
		ModelPath:   getenv("WHISPER_MODEL_PATH", ""),
		FFmpegBin:   getenv("WHISPER_FFMPEG", "ffmpeg"),
		Threads:     getenvInt("WHISPER_THREADS", 0),
	}
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ResolveModelPath returns the ggml model file for the configured size tier,
// unless WHISPER_MODEL_PATH overrides it outright.
func (c Config) ResolveModelPath() string {
	if c.ModelPath != "" {
		return c.ModelPath
	}
	return filepath.Join(c.ModelDir, "ggml-"+c.Model+".bin")
}

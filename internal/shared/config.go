package shared

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	FXBase string
	FXKey  string
	FXRPS  int

	Workers        int
	LeaseBatch     int
	PerHotelFanout int
	IdleSleep      time.Duration
	LeaseWindow    time.Duration

	SubmitPerSec float64
	SubmitBurst  int

	RetentionDays int
	RetryScanSec  int
}

func Load() Config {
	// .env is a developer convenience; production sets real env vars.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/chsync?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),

		FXBase: env("FX_BASE_URL", "https://api.frankfurter.dev/v1"),
		FXKey:  env("FX_API_KEY", ""),
		FXRPS:  atoi("FX_RPS", 10),

		Workers:        atoi("SYNC_WORKERS", runtime.NumCPU()*2),
		LeaseBatch:     atoi("LEASE_BATCH", 10),
		PerHotelFanout: atoi("PER_HOTEL_FANOUT", 4),
		IdleSleep:      time.Duration(atoi("IDLE_SLEEP_MS", 2000)) * time.Millisecond,
		LeaseWindow:    time.Duration(atoi("LEASE_WINDOW_SECONDS", 360)) * time.Second,

		SubmitPerSec: atof("SUBMIT_PER_HOTEL_PER_SEC", 10),
		SubmitBurst:  atoi("SUBMIT_BURST", 20),

		RetentionDays: atoi("EVENT_TTL_DAYS", 30),
		RetryScanSec:  atoi("RETRY_SCAN_SECONDS", 30),
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.FXKey == "" {
		log.Debug().Msg("FX_API_KEY is empty, fx provider will call unauthenticated")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

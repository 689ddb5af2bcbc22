package config

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	Env           string // "dev" | "prod"
	DBPath        string // ledger, e.g. "./data/cafeteria.db"
	OfflineDBPath string // terminal-local mirror, e.g. "./data/offline_cards.db"

	// Reader
	ScanTimeoutSeconds int    // bound for waiting on a presented card
	PollIntervalMs     int    // card presence polling interval
	CardKeyHex         string // 6-byte block auth key, hex encoded
}

// FromEnv loads a .env file when present, then reads configuration from the
// environment with dev-friendly defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	env := strings.ToLower(getenvDefault("LUNCHCARD_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: getenvDefault("LUNCHCARD_HTTP_ADDR", ":8080"),

		Env:           env,
		DBPath:        getenvDefault("LUNCHCARD_DB_PATH", "./data/cafeteria.db"),
		OfflineDBPath: getenvDefault("LUNCHCARD_OFFLINE_DB_PATH", "./data/offline_cards.db"),

		ScanTimeoutSeconds: getenvInt("LUNCHCARD_SCAN_TIMEOUT_S", 10),
		PollIntervalMs:     getenvInt("LUNCHCARD_POLL_INTERVAL_MS", 500),
		CardKeyHex:         getenvDefault("LUNCHCARD_CARD_KEY", "FFFFFFFFFFFF"),
	}
}

// CardKey decodes the configured block auth key, falling back to the
// factory transport key on bad input.
func (c Config) CardKey() []byte {
	key, err := hex.DecodeString(c.CardKeyHex)
	if err != nil || len(key) != 6 {
		return []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	}
	return key
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Interval fields use timex.Duration, which accepts both strings such as
// "15m" and integer nanoseconds. Absent fields keep their current value.
type JsonConfig struct {
	HTTPAddr       string   `json:"http_addr"`
	DatabaseDSN    string   `json:"database_dsn"`
	Environment    string   `json:"environment"`
	LogLevel       string   `json:"log_level"`
	TrustedProxies []string `json:"trusted_proxies"`

	SigningKeyPath string `json:"signing_key_path"`
	SigningKeyID   string `json:"signing_key_id"`
	Issuer         string `json:"issuer"`
	Audience       string `json:"audience"`

	AccessTokenTTL  timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl"`

	CacheCapacity        int            `json:"cache_capacity"`
	CacheTTLBuffer       timex.Duration `json:"cache_ttl_buffer"`
	CacheCleanupInterval timex.Duration `json:"cache_cleanup_interval"`

	BruteForceMaxAttempts int            `json:"brute_force_max_attempts"`
	BruteForceWindow      timex.Duration `json:"brute_force_window"`
	BruteForceBackend     string         `json:"brute_force_backend"`
	RedisAddr             string         `json:"redis_addr"`

	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`

	PasswordVerifyConcurrency int `json:"password_verify_concurrency"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without the flag nothing is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Environment, c.Environment)
	setString(&config.LogLevel, c.LogLevel)
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}

	setString(&config.SigningKeyPath, c.SigningKeyPath)
	setString(&config.SigningKeyID, c.SigningKeyID)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)

	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL.Duration)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL.Duration)

	setInt(&config.CacheCapacity, c.CacheCapacity)
	setDuration(&config.CacheTTLBuffer, c.CacheTTLBuffer.Duration)
	setDuration(&config.CacheCleanupInterval, c.CacheCleanupInterval.Duration)

	setInt(&config.BruteForceMaxAttempts, c.BruteForceMaxAttempts)
	setDuration(&config.BruteForceWindow, c.BruteForceWindow.Duration)
	setString(&config.BruteForceBackend, c.BruteForceBackend)
	setString(&config.RedisAddr, c.RedisAddr)

	if c.KafkaBrokers != nil {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)

	setInt(&config.PasswordVerifyConcurrency, c.PasswordVerifyConcurrency)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

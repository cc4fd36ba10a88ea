package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
)

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "SESSIONKEEPER_"

// parseEnv overlays values from a dotenv file and the process environment.
// The file is named by -env-file and defaults to ".env"; a missing default
// file is ignored. Process variables win over file values.
func parseEnv(config *Config) {
	path := flagx.EnvFileFlag()
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	fileVals, err := godotenv.Read(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
		fileVals = map[string]string{}
	}

	if err := applyEnv(config, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}); err != nil {
		panic(err)
	}
}

// applyEnv copies every SESSIONKEEPER_* value returned by lookup into config.
func applyEnv(config *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = splitList(v)
		}
	}

	var errs []error
	num := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, errors.New(EnvPrefix+name+": "+err.Error()))
			return
		}
		*dst = n
	}
	dur := func(name string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, errors.New(EnvPrefix+name+": "+err.Error()))
			return
		}
		*dst = d
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("ENV", &config.Environment)
	str("LOG_LEVEL", &config.LogLevel)
	list("TRUSTED_PROXIES", &config.TrustedProxies)

	str("SIGNING_KEY_PATH", &config.SigningKeyPath)
	str("SIGNING_KEY_ID", &config.SigningKeyID)
	str("ISSUER", &config.Issuer)
	str("AUDIENCE", &config.Audience)

	dur("ACCESS_TOKEN_TTL", &config.AccessTokenTTL)
	dur("REFRESH_TOKEN_TTL", &config.RefreshTokenTTL)

	num("CACHE_CAPACITY", &config.CacheCapacity)
	dur("CACHE_TTL_BUFFER", &config.CacheTTLBuffer)
	dur("CACHE_CLEANUP_INTERVAL", &config.CacheCleanupInterval)

	num("BRUTE_FORCE_MAX_ATTEMPTS", &config.BruteForceMaxAttempts)
	dur("BRUTE_FORCE_WINDOW", &config.BruteForceWindow)
	str("BRUTE_FORCE_BACKEND", &config.BruteForceBackend)
	str("REDIS_ADDR", &config.RedisAddr)

	list("KAFKA_BROKERS", &config.KafkaBrokers)
	str("KAFKA_TOPIC", &config.KafkaTopic)

	num("PASSWORD_VERIFY_CONCURRENCY", &config.PasswordVerifyConcurrency)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

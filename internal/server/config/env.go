package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// dotenvLoad is a seam for tests.
var dotenvLoad = func() error { return godotenv.Load() }

// parseEnv overlays values from the environment. A .env file in the working
// directory is loaded first when present; variables already set in the
// process environment win over the file.
//
//	HTTP_ADDR, STREAM_ADDR, DATABASE_DSN, SESSION_SECRET, SESSION_TTL,
//	SESSION_COOKIE_NAME, SESSION_COOKIE_SECURE, USERS_DIR,
//	STREAM_BUFFER_CHUNKS, STREAM_MAX_MESSAGE_BYTES, STRICT_STREAM_AUTH,
//	PASSWORD_HASH_COST, LOG_LEVEL, S3_BUCKET, S3_REGION, S3_ENDPOINT,
//	S3_ROOT_USER, S3_ROOT_PASSWORD
func parseEnv(config *Config) error {
	// missing .env is fine
	_ = dotenvLoad()

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("STREAM_ADDR", &config.EndpointAddrStream)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SESSION_SECRET", &config.SessionSecret)
	envString("SESSION_COOKIE_NAME", &config.SessionCookieName)
	envString("USERS_DIR", &config.UsersDir)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_ENDPOINT", &config.S3BaseEndpoint)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)

	if err := envDuration("SESSION_TTL", &config.SessionValidityDuration); err != nil {
		return err
	}
	if err := envBool("SESSION_COOKIE_SECURE", &config.SessionCookieSecure); err != nil {
		return err
	}
	if err := envBool("STRICT_STREAM_AUTH", &config.StrictStreamAuth); err != nil {
		return err
	}
	if err := envInt("STREAM_BUFFER_CHUNKS", &config.StreamBufferChunks); err != nil {
		return err
	}
	if err := envInt("PASSWORD_HASH_COST", &config.PasswordHashCost); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("STREAM_MAX_MESSAGE_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STREAM_MAX_MESSAGE_BYTES: %w", err)
		}
		config.StreamMaxMessageBytes = n
	}

	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

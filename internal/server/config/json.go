package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/voicedrop/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Pointer
// fields distinguish "absent" from zero values so that only keys present in
// the file override defaults.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	EndpointAddrStream      *string         `json:"endpoint_addr_stream"`
	DatabaseDSN             *string         `json:"database_dsn"`
	SessionSecret           *string         `json:"session_secret"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration"`
	SessionCookieName       *string         `json:"session_cookie_name"`
	SessionCookieSecure     *bool           `json:"session_cookie_secure"`
	UsersDir                *string         `json:"users_dir"`
	StreamBufferChunks      *int            `json:"stream_buffer_chunks"`
	StreamMaxMessageBytes   *int64          `json:"stream_max_message_bytes"`
	StrictStreamAuth        *bool           `json:"strict_stream_auth"`
	PasswordHashCost        *int            `json:"password_hash_cost"`
	LogLevel                *string         `json:"log_level"`
	S3RootUser              *string         `json:"s3_root_user"`
	S3RootPassword          *string         `json:"s3_root_password"`
	S3Bucket                *string         `json:"s3_bucket"`
	S3Region                *string         `json:"s3_region"`
	S3BaseEndpoint          *string         `json:"s3_base_endpoint"`
}

func parseJson(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.EndpointAddrStream, c.EndpointAddrStream)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SessionSecret, c.SessionSecret)
	if c.SessionValidityDuration != nil {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	setIf(&config.SessionCookieName, c.SessionCookieName)
	setIf(&config.SessionCookieSecure, c.SessionCookieSecure)
	setIf(&config.UsersDir, c.UsersDir)
	setIf(&config.StreamBufferChunks, c.StreamBufferChunks)
	setIf(&config.StreamMaxMessageBytes, c.StreamMaxMessageBytes)
	setIf(&config.StrictStreamAuth, c.StrictStreamAuth)
	setIf(&config.PasswordHashCost, c.PasswordHashCost)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.S3RootUser, c.S3RootUser)
	setIf(&config.S3RootPassword, c.S3RootPassword)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

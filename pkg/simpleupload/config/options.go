package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogLevel sets the log level (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	}
}

// WithStorage selects the storage provider and bucket
func WithStorage(provider, bucket string) Option {
	return func(c *ServerConfig) error {
		if provider == "" {
			return fmt.Errorf("storage provider cannot be empty")
		}
		if bucket == "" {
			return fmt.Errorf("storage bucket cannot be empty")
		}
		c.Storage.Provider = provider
		c.Storage.Bucket = bucket
		return nil
	}
}

// WithStorageEndpoint sets the storage endpoint and region. The endpoint may
// carry an http:// or https:// scheme.
func WithStorageEndpoint(endpoint, region string, pathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.Storage.Endpoint = endpoint
		c.Storage.Region = region
		c.Storage.PathStyle = pathStyle
		return nil
	}
}

// WithStorageCredentials sets static storage credentials
func WithStorageCredentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if accessKeyID == "" || secretAccessKey == "" {
			return fmt.Errorf("access key id and secret access key are both required")
		}
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithMultipartBackend selects the multipart session backend ("s3", "minio" or "none")
func WithMultipartBackend(name string) Option {
	return func(c *ServerConfig) error {
		c.MultipartBackend = name
		return nil
	}
}

// WithSessions configures the multipart session ledger and its sweeper
func WithSessions(databaseURL string, maxAge, sweepInterval time.Duration) Option {
	return func(c *ServerConfig) error {
		if databaseURL != "" {
			c.SessionsDatabaseURL = databaseURL
		}
		if maxAge > 0 {
			c.SessionsMaxAge = maxAge
		}
		if sweepInterval > 0 {
			c.SessionsSweepInterval = sweepInterval
		}
		return nil
	}
}

// WithCORSOrigins sets the browser origins allowed to call the upload endpoint
func WithCORSOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.CORSOrigins = origins
		return nil
	}
}

package clickhouse

import "time"

type ClientOption func(*ClientConfig)

// ClientConfig is turned into a DSN by buildDSN. Zero durations leave the
// driver defaults in place.
type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	MaxExecTime     time.Duration
	UseHTTP         bool
	AsyncInsert     bool
	WaitForAsync    bool
	CreateDatabase  bool
}

// WithAddr sets host and, when positive, port.
func WithAddr(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
	}
}

func WithDatabase(name string) ClientOption {
	return func(c *ClientConfig) {
		if name != "" {
			c.Database = name
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		if user != "" {
			c.User = user
		}
		c.Password = password
	}
}

// WithPool sizes the database/sql pool. Non-positive values are ignored.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if maxOpen > 0 {
			c.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			c.MaxIdleConns = maxIdle
		}
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

// WithTimeouts sets dial, read and server-side query limits.
func WithTimeouts(dial, read, maxExec time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
		c.MaxExecTime = maxExec
	}
}

// WithHTTP switches from the native protocol (9000) to HTTP (8123).
func WithHTTP(on bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = on }
}

// WithAsyncInsert lets the server buffer inserts; wait makes the insert
// return only after the buffer is flushed.
func WithAsyncInsert(on, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = on
		c.WaitForAsync = wait
	}
}

// WithCreateDatabase runs CREATE DATABASE IF NOT EXISTS before opening the pool.
func WithCreateDatabase(on bool) ClientOption {
	return func(c *ClientConfig) { c.CreateDatabase = on }
}

// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, keepalive cadence and cron secret, ping timeout,
// registry storage driver and the optional Redis cycle publisher.
//
// Every key can be overridden from the environment with dots replaced by
// underscores, e.g. KEEPALIVE_INTERVAL_HOURS. The cron secret is also read
// from CRON_SECRET and the storage DSN from DATABASE_URL.
package config

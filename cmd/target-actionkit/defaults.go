package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// ActionKit API
	viper.SetDefault("actionkit.username", "")
	viper.SetDefault("actionkit.password", "")
	viper.SetDefault("actionkit.hostname", "")
	viper.SetDefault("actionkit.full_url", "")
	viper.SetDefault("actionkit.signup_page_short_name", "")
	viper.SetDefault("actionkit.unsubscribe_page_short_name", "")
	viper.SetDefault("actionkit.request_timeout", 60*time.Second)

	// Retry policy for retriable API errors
	viper.SetDefault("retry.max_attempts", 3)

	// DB (sqlite only)
	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.pool.max_open_conns", 1)
	viper.SetDefault("db.pool.max_idle_conns", 1)
	viper.SetDefault("db.pool.conn_max_lifetime", 0*time.Second)
	viper.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("db.sqlite.wal", true)
	viper.SetDefault("db.sqlite.foreign_keys", true)
	viper.SetDefault("db.automigrate", true)

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}

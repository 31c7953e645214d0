package config

import "time"

// ServerConfig controls the process's listening surfaces.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig selects and configures the persistence backend the C10
// SQL-backed stores (Config/Declaration/Association/Memory) open
// through, following teacher's DSN-plus-pool-tuning shape.
type DatabaseConfig struct {
	// Driver is the registered database/sql driver name: "postgres"
	// (github.com/lib/pq, used for both postgres and mysql connections
	// per spec.md's conn-<name>-Driver convention), "sqlite" (modernc.org/
	// sqlite, the pure-Go default), or "sqlite3" (mattn/go-sqlite3, the
	// cgo-enabled opt-in).
	Driver string `yaml:"driver"`

	// DSN is the driver-specific data source name. Empty with Driver
	// "sqlite"/"sqlite3" defaults to the file botcore.db, relative to the
	// process's working directory.
	DSN string `yaml:"dsn"`

	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

package config

import (
	"errors"
	"flag"
	"os"
)

type Config struct {
	Address  string
	DBDsn    string
	LogLevel string
}

var ErrAddressEmpty = errors.New("address is an empty string")

func (cfg *Config) check() error {
	var errs []error

	if len(cfg.Address) == 0 {
		errs = append(errs, ErrAddressEmpty)
	}
	return errors.Join(errs...)
}

// ParseFlags fills the config from flags with environment overrides.
// defaultAddr differs per service (:3001 smart-bin, :3002 wallet). An empty
// DSN selects the in-memory store; state is then lost on restart.
func (cfg *Config) ParseFlags(defaultAddr string) error {
	flag.StringVar(&cfg.Address, "a", defaultAddr, "Service address and port")
	flag.StringVar(&cfg.DBDsn, "d", "", "Postgres DSN; empty runs the in-memory store")
	flag.StringVar(&cfg.LogLevel, "l", "info", "Log level")

	flag.Parse()

	if envVarAddr := os.Getenv("RUN_ADDRESS"); envVarAddr != "" {
		cfg.Address = envVarAddr
	}

	// PORT carries just the port number and wins over RUN_ADDRESS.
	if envVarPort := os.Getenv("PORT"); envVarPort != "" {
		cfg.Address = ":" + envVarPort
	}

	if envVarDB := os.Getenv("DATABASE_URI"); envVarDB != "" {
		cfg.DBDsn = envVarDB
	}

	if envVarLvl := os.Getenv("LOG_LEVEL"); envVarLvl != "" {
		cfg.LogLevel = envVarLvl
	}
	return cfg.check()
}

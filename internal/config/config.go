package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath          string        `env:"DB_PATH"          envDefault:"db.sqlite"`
	AccountID       int64         `env:"ACCOUNT_ID"       envDefault:"1"`
	SyncConcurrency int           `env:"SYNC_CONCURRENCY" envDefault:"6"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT"    envDefault:"30s"`
	SyncCronSpec    string        `env:"SYNC_CRON_SPEC"   envDefault:"*/30 * * * *"`
	KeepReadDays    int           `env:"KEEP_READ_DAYS"   envDefault:"0"`
}

func LoadConfig() Config {
	var cfg Config
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}

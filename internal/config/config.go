package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	IdPConfig
	StoreConfig
	CacheConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	IdP
	Store
	CacheSettings
}

func New() Config {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()
	return mainConfig{}
}

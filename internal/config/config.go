package config

type Config interface {
	EnvConfig
	OAuthConfig
	LoginConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFile() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Login
	Storage
}

func New() Config {
	return mainConfig{}
}

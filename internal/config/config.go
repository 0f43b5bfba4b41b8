package config

type Config interface {
	EnvConfig
	TimeoutConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetRealtimeURL() string
	GetPushTestEndpoint() string
	GetCredentialsFile() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Timeouts
}

func New() Config {
	return mainConfig{}
}

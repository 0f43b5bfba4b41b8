package config

import (
	"os"
	"path/filepath"
)

const (
	appNameVar      = "APP_NAME"
	apiBaseURLVar   = "API_BASE_URL"
	realtimeURLVar  = "REALTIME_URL"
	pushEndpointVar = "PUSH_TEST_ENDPOINT"
	credsFileVar    = "CREDENTIALS_FILE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Matchday")
}

func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:3000/api")
}

func (EnvVars) GetRealtimeURL() string {
	return GetEnv(realtimeURLVar, "ws://localhost:3000/realtime")
}

func (EnvVars) GetPushTestEndpoint() string {
	return GetEnv(pushEndpointVar, "https://exp.host/--/api/v2/push/send")
}

func (EnvVars) GetCredentialsFile() string {
	if v := os.Getenv(credsFileVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, ".matchday", "credentials.json")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

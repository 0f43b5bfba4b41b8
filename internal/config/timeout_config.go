package config

import "time"

type TimeoutConfig interface {
	GetRequestTimeout() time.Duration
	GetRealtimeWriteTimeout() time.Duration
}

type Timeouts struct{}

var _ TimeoutConfig = Timeouts{}

func (Timeouts) GetRequestTimeout() time.Duration {
	return 30 * time.Second
}

func (Timeouts) GetRealtimeWriteTimeout() time.Duration {
	return 5 * time.Second
}

package config

import "time"

type ClientConfig interface {
	GetRequestTimeout() time.Duration
	GetSuggestionQuietPeriod() time.Duration
	GetMinSuggestionLength() int
	GetDetailFetchConcurrency() int
}

type Client struct{}

var _ ClientConfig = Client{}

// GetRequestTimeout is applied to every backend call. The backend documents no timeout of its own.
func (Client) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
}

func (Client) GetSuggestionQuietPeriod() time.Duration {
	return GetEnvDuration("SUGGESTION_QUIET_PERIOD", 500*time.Millisecond)
}

func (Client) GetMinSuggestionLength() int {
	return GetEnvInt("MIN_SUGGESTION_LENGTH", 2)
}

func (Client) GetDetailFetchConcurrency() int {
	return GetEnvInt("DETAIL_FETCH_CONCURRENCY", 4)
}

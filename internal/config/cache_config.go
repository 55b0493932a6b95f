package config

import "time"

type CacheConfig interface {
	GetSessionCacheTTL() time.Duration
	GetSessionCacheMaxEntries() int
}

type CacheSettings struct{}

var _ CacheConfig = CacheSettings{}

func (CacheSettings) GetSessionCacheTTL() time.Duration {
	return GetDurationEnv("SESSION_CACHE_TTL", 30*time.Minute)
}

func (CacheSettings) GetSessionCacheMaxEntries() int {
	return GetIntEnv("SESSION_CACHE_MAX_ENTRIES", 10000)
}

package config

import "time"

const (
	DefaultConcurrency   = 2
	DefaultEntryTTL      = 900 * time.Second
	DefaultMaxInput      = 100000
	DefaultStorageDriver = Redis
	DefaultRedisAddress  = "localhost:6379"
	DefaultArtifactDir   = "./results"
	DefaultHTTPPort      = 3000
	DefaultEntryEncoding = "json"
)

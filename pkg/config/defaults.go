package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "rinkside"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultKafkaBrokers       = ""
	DefaultKafkaDecisionTopic = "schedule.decisions"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBookingLockTTL = 10 * time.Second

	// Upper bound on a single expansion query, in days. Keeps unterminated
	// rules finite even when the caller asks for an enormous range.
	DefaultExpansionHorizonDays = 731

	DefaultPaginationLimit = 100
)

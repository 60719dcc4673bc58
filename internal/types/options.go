package types

// Option is a functional option for configuring cache operations.
type Option func(*CacheOptions)

// ApplyOptions applies functional options to create CacheOptions.
func ApplyOptions(opts ...Option) *CacheOptions {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// FetcherOptions holds construction-time configuration for the fetcher.
type FetcherOptions struct {
	// Logger is the structured logger to use.
	Logger Logger

	// Metrics is the metrics recorder.
	Metrics MetricsRecorder

	// Serializer is the value serializer.
	Serializer Serializer

	// CacheDir overrides the durable tier directory from config.
	CacheDir string

	// RedisAddress switches the durable tier to Redis at this address.
	RedisAddress string

	// RedisPassword is the Redis password when RedisAddress is set.
	// Uses SecretString to prevent accidental logging of sensitive values.
	RedisPassword SecretString

	// DisableDurable disables the durable tier entirely.
	DisableDurable bool

	// DisableResilience disables circuit breaker and retry patterns.
	DisableResilience bool
}

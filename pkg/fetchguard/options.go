package fetchguard

import (
	"time"

	"github.com/fetchguard/fetchguard/internal/types"
)

type (
	Option         = types.Option
	FetcherOptions = types.FetcherOptions
)

func ApplyOptions(opts ...Option) *CacheOptions {
	return types.ApplyOptions(opts...)
}

func WithTTL(ttl time.Duration) Option {
	return func(o *CacheOptions) {
		o.TTL = ttl
	}
}

func WithLevel(level CacheLevel) Option {
	return func(o *CacheOptions) {
		o.Level = level
	}
}

func WithFireAndForget() Option {
	return func(o *CacheOptions) {
		o.FireAndForget = true
	}
}

func WithSkipPromotion() Option {
	return func(o *CacheOptions) {
		o.SkipPromotion = true
	}
}

func WithMemoryOnly() Option {
	return func(o *CacheOptions) {
		o.Level = LevelMemoryOnly
	}
}

func WithDurableOnly() Option {
	return func(o *CacheOptions) {
		o.Level = LevelDurableOnly
	}
}

type FetcherOption func(*FetcherOptions)

func WithLogger(logger Logger) FetcherOption {
	return func(o *FetcherOptions) {
		o.Logger = logger
	}
}

func WithMetrics(metrics MetricsRecorder) FetcherOption {
	return func(o *FetcherOptions) {
		o.Metrics = metrics
	}
}

func WithSerializer(serializer Serializer) FetcherOption {
	return func(o *FetcherOptions) {
		o.Serializer = serializer
	}
}

func WithCacheDir(dir string) FetcherOption {
	return func(o *FetcherOptions) {
		o.CacheDir = dir
	}
}

func WithRedisAddress(addr string) FetcherOption {
	return func(o *FetcherOptions) {
		o.RedisAddress = addr
	}
}

func WithRedisPassword(password string) FetcherOption {
	return func(o *FetcherOptions) {
		o.RedisPassword = types.NewSecretString(password)
	}
}

func WithoutDurable() FetcherOption {
	return func(o *FetcherOptions) {
		o.DisableDurable = true
	}
}

func WithoutResilience() FetcherOption {
	return func(o *FetcherOptions) {
		o.DisableResilience = true
	}
}

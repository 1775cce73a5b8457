package prompt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"autogensocial/internal/util"
	"autogensocial/pkg/domain"
)

// Defaults are the centrally managed completion settings for one content type.
// Nil or empty fields mean "not configured".
type Defaults struct {
	SystemPrompt string
	Model        string
	Temperature  *float64
	MaxTokens    *int
}

// merge fills unset fields of d from other.
func (d Defaults) merge(other Defaults) Defaults {
	if strings.TrimSpace(d.SystemPrompt) == "" {
		d.SystemPrompt = other.SystemPrompt
	}
	if strings.TrimSpace(d.Model) == "" {
		d.Model = other.Model
	}
	if d.Temperature == nil {
		d.Temperature = other.Temperature
	}
	if d.MaxTokens == nil {
		d.MaxTokens = other.MaxTokens
	}
	return d
}

// DefaultsResolver looks up completion defaults by content type.
type DefaultsResolver interface {
	Resolve(ctx context.Context, contentType domain.ContentType) (Defaults, error)
}

// StaticResolver serves defaults from configuration.
type StaticResolver map[domain.ContentType]Defaults

func (s StaticResolver) Resolve(_ context.Context, contentType domain.ContentType) (Defaults, error) {
	return s[contentType], nil
}

const defaultKeyPrefix = "PromptDefaults"

var defaultFields = []string{"SystemPrompt", "MaxTokens", "Model", "Temperature"}

// RedisResolver reads defaults from keys "<prefix>:<Field>:<contentType>".
// Results are cached per content type for ttl and concurrent misses are collapsed.
// Fields that are missing or unreadable fall back to the wrapped resolver.
type RedisResolver struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	fallback DefaultsResolver
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache map[domain.ContentType]cachedDefaults
}

type cachedDefaults struct {
	defaults Defaults
	expires  time.Time
}

// NewRedisResolver builds a resolver. ttl <= 0 disables caching.
func NewRedisResolver(client redis.Cmdable, prefix string, ttl time.Duration, fallback DefaultsResolver) *RedisResolver {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisResolver{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		fallback: fallback,
		now:      time.Now,
		cache:    make(map[domain.ContentType]cachedDefaults),
	}
}

func (r *RedisResolver) Resolve(ctx context.Context, contentType domain.ContentType) (Defaults, error) {
	if d, ok := r.cached(contentType); ok {
		return d, nil
	}
	v, err, _ := r.group.Do(string(contentType), func() (any, error) {
		d, err := r.load(ctx, contentType)
		if err != nil {
			return Defaults{}, err
		}
		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[contentType] = cachedDefaults{defaults: d, expires: r.now().Add(r.ttl)}
			r.mu.Unlock()
		}
		return d, nil
	})
	if err != nil {
		return Defaults{}, err
	}
	return v.(Defaults), nil
}

func (r *RedisResolver) cached(contentType domain.ContentType) (Defaults, bool) {
	if r.ttl <= 0 {
		return Defaults{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[contentType]
	if !ok || r.now().After(entry.expires) {
		return Defaults{}, false
	}
	return entry.defaults, true
}

func (r *RedisResolver) load(ctx context.Context, contentType domain.ContentType) (Defaults, error) {
	logger := util.LoggerFromContext(ctx)
	var fallback Defaults
	if r.fallback != nil {
		d, err := r.fallback.Resolve(ctx, contentType)
		if err != nil {
			return Defaults{}, err
		}
		fallback = d
	}

	keys := make([]string, len(defaultFields))
	for i, f := range defaultFields {
		keys[i] = r.key(f, contentType)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		if r.fallback == nil {
			return Defaults{}, fmt.Errorf("read prompt defaults: %w", err)
		}
		logger.Warn("prompt defaults: redis read failed, using configured defaults", "content_type", contentType, "err", err)
		return fallback, nil
	}

	var d Defaults
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			logger.Info("prompt defaults: key not found", "key", keys[i])
			continue
		}
		s = strings.TrimSpace(s)
		switch defaultFields[i] {
		case "SystemPrompt":
			d.SystemPrompt = s
		case "Model":
			d.Model = s
		case "MaxTokens":
			n, err := strconv.Atoi(s)
			if err != nil {
				logger.Warn("prompt defaults: invalid value", "key", keys[i], "err", err)
				continue
			}
			d.MaxTokens = &n
		case "Temperature":
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				logger.Warn("prompt defaults: invalid value", "key", keys[i], "err", err)
				continue
			}
			d.Temperature = &f
		}
	}
	return d.merge(fallback), nil
}

func (r *RedisResolver) key(field string, contentType domain.ContentType) string {
	return r.prefix + ":" + field + ":" + string(contentType)
}

// Invalidate drops cached defaults so the next Resolve reads Redis again.
func (r *RedisResolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[domain.ContentType]cachedDefaults)
	r.mu.Unlock()
}

package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/logger"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
	"bookflow/pkg/tracing"
)

var DefaultKeyFields = []string{"booking_id", "workflow_id", "action_id", "trigger", "start_time"}

// Guard claims each dispatch key once within its TTL.
type Guard struct {
	repo     Repository
	logger   logger.Logger
	mu       sync.RWMutex
	settings models.DispatchSettings
	hasher   *Hasher
	now      func() time.Time
}

// NewGuard rejects settings that would hash keys from values no dispatch carries.
func NewGuard(repo Repository, cfg config.DispatchConfig, log logger.Logger) (*Guard, error) {
	settings := withDefaults(models.DispatchSettings{
		KeyFields:     cfg.KeyFields,
		TTLSeconds:    cfg.TTLSeconds,
		HashAlgorithm: cfg.HashAlgorithm,
		OnRedisError:  cfg.OnRedisError,
	})
	if err := checkSettings(settings); err != nil {
		return nil, err
	}
	settings.HashAlgorithm = strings.ToLower(settings.HashAlgorithm)
	settings.OnRedisError = strings.ToLower(settings.OnRedisError)
	if len(cfg.KeyFields) == 0 {
		log.Infow("No dispatch key fields configured, using defaults", "fields", settings.KeyFields)
	}

	return &Guard{
		repo:     repo,
		logger:   log,
		settings: settings,
		hasher:   NewHasher(settings.HashAlgorithm),
		now:      time.Now,
	}, nil
}

func withDefaults(s models.DispatchSettings) models.DispatchSettings {
	if len(s.KeyFields) == 0 {
		s.KeyFields = append([]string(nil), DefaultKeyFields...)
	} else {
		s.KeyFields = append([]string(nil), s.KeyFields...)
	}
	if s.TTLSeconds <= 0 {
		s.TTLSeconds = constants.DefaultDispatchTTLSeconds
	}
	if s.HashAlgorithm == "" {
		s.HashAlgorithm = constants.HashAlgorithmMD5
	}
	if s.OnRedisError == "" {
		s.OnRedisError = constants.FallbackDeny
	}
	return s
}

// Claim reports whether the caller owns the dispatch identified by fields.
func (g *Guard) Claim(ctx context.Context, fields map[string]string) (string, bool, error) {
	ctx, span := tracing.GetTracer("workflow-service").Start(ctx, "dispatch.claim")
	defer span.End()

	settings, hasher := g.snapshot()
	hash, err := hasher.ComputeKey(fields, settings.KeyFields)
	if err != nil {
		return "", false, fmt.Errorf("failed to compute dispatch key: %w", err)
	}
	key := constants.CacheKeyPrefixDispatch + hash

	start := time.Now()
	claimed, err := g.repo.SetNX(ctx, key, g.now().Unix(), time.Duration(settings.TTLSeconds)*time.Second)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveDispatchClaim(duration, "error")
		return g.handleRedisError(ctx, settings, key, err)
	}

	status := "claimed"
	if !claimed {
		status = "duplicate"
	}
	metrics.ObserveDispatchClaim(duration, status)
	return key, claimed, nil
}

func (g *Guard) handleRedisError(ctx context.Context, settings models.DispatchSettings, key string, err error) (string, bool, error) {
	if strings.EqualFold(settings.OnRedisError, constants.FallbackAllow) {
		metrics.FallbackUsageTotal.WithLabelValues("dispatch", "allow_on_error", "redis_error").Inc()
		g.logger.WarnwCtx(ctx, "Redis error during dispatch claim, dispatching anyway (fallback: allow)",
			"key", key,
			"error", err,
		)
		return key, true, nil
	}

	metrics.FallbackUsageTotal.WithLabelValues("dispatch", "deny_on_error", "redis_error").Inc()
	return "", false, fmt.Errorf("redis error during dispatch claim: %w", err)
}

func (g *Guard) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return g.repo.Del(ctx, key)
}

// UpdateSettings applies runtime changes. Zero values keep the current setting.
func (g *Guard) UpdateSettings(update models.DispatchSettings) error {
	if err := checkSettings(update); err != nil {
		return err
	}

	g.mu.Lock()
	current := g.settings
	if len(update.KeyFields) > 0 {
		current.KeyFields = append([]string(nil), update.KeyFields...)
	}
	if update.TTLSeconds > 0 {
		current.TTLSeconds = update.TTLSeconds
	}
	if update.HashAlgorithm != "" {
		current.HashAlgorithm = strings.ToLower(update.HashAlgorithm)
		g.hasher = NewHasher(current.HashAlgorithm)
	}
	if update.OnRedisError != "" {
		current.OnRedisError = strings.ToLower(update.OnRedisError)
	}
	g.settings = current
	g.mu.Unlock()

	g.logger.Infow("Updated dispatch settings",
		"key_fields", current.KeyFields,
		"ttl_seconds", current.TTLSeconds,
		"hash_algorithm", current.HashAlgorithm,
	)
	return nil
}

func (g *Guard) Settings() models.DispatchSettings {
	s, _ := g.snapshot()
	return s
}

func (g *Guard) snapshot() (models.DispatchSettings, *Hasher) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.settings
	s.KeyFields = append([]string(nil), g.settings.KeyFields...)
	return s, g.hasher
}

// checkSettings validates the non-zero fields of s.
func checkSettings(s models.DispatchSettings) error {
	for _, f := range s.KeyFields {
		if !models.IsDispatchKeyField(f) {
			return fmt.Errorf("unknown dispatch key field %q, allowed: %s", f, strings.Join(models.DispatchKeyFields, ", "))
		}
	}
	if s.HashAlgorithm != "" && !isKnownAlgorithm(s.HashAlgorithm) {
		return fmt.Errorf("unsupported hash algorithm: %s", s.HashAlgorithm)
	}
	if s.OnRedisError != "" && !isKnownFallback(s.OnRedisError) {
		return fmt.Errorf("unsupported on_redis_error: %s", s.OnRedisError)
	}
	return nil
}

func isKnownAlgorithm(a string) bool {
	switch strings.ToLower(a) {
	case constants.HashAlgorithmMD5, constants.HashAlgorithmSHA256:
		return true
	}
	return false
}

func isKnownFallback(f string) bool {
	switch strings.ToLower(f) {
	case constants.FallbackAllow, constants.FallbackDeny:
		return true
	}
	return false
}

package kpi

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultConcurrency = 8
	defaultCacheTTL    = 5 * time.Minute
)

type Service struct {
	store       StoreAPI
	resolver    Resolver
	cache       ConfigCache
	Concurrency int
	CacheTTL    time.Duration
	Now         func() time.Time
	// Committed runs after a commit transaction succeeds, typically to
	// schedule an outbox drain.
	Committed func(ctx context.Context, result CommitResult)
}

func NewService(store StoreAPI, resolver Resolver, cache ConfigCache) *Service {
	if cache == nil {
		cache = NewNoopConfigCache()
	}
	return &Service{
		store:       store,
		resolver:    resolver,
		cache:       cache,
		Concurrency: defaultConcurrency,
		CacheTTL:    defaultCacheTTL,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetConfig returns the active configuration, served from the cache when
// possible.
func (s *Service) GetConfig(ctx context.Context) (Configuration, error) {
	if payload, ok, err := s.cache.Get(ctx); err != nil {
		slog.Warn("kpi config cache read failed", "err", err)
	} else if ok {
		if cfg, err := decodeConfiguration(payload); err == nil {
			return cfg, nil
		}
	}
	cfg, err := s.store.LoadConfiguration(ctx)
	if err != nil {
		return Configuration{}, err
	}
	if payload, err := encodeConfiguration(cfg); err == nil {
		if err := s.cache.Set(ctx, payload, s.CacheTTL); err != nil {
			slog.Warn("kpi config cache write failed", "err", err)
		}
	}
	return cfg, nil
}

func (s *Service) Validate(ctx context.Context) ([]ConfigWarning, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilWarnings(cfg.Validate()), nil
}

// UpdateMetrics replaces the metric definitions. Non-blocking warnings such
// as a weight sum other than 100 are returned alongside the saved config.
func (s *Service) UpdateMetrics(ctx context.Context, defs []MetricDefinition, actor string) (Configuration, []ConfigWarning, error) {
	warnings := ValidateMetrics(defs)
	if blocking := Blocking(warnings); len(blocking) > 0 {
		return Configuration{}, blocking, &ValidationError{Warnings: blocking}
	}
	if _, err := s.store.SaveMetrics(ctx, cloneMetrics(defs), actor); err != nil {
		return Configuration{}, nil, err
	}
	return s.afterUpdate(ctx)
}

// UpdateTriggers compiles free-text conditions into trees before saving so
// evaluation never has to parse them.
func (s *Service) UpdateTriggers(ctx context.Context, rules []TriggerRule, actor string) (Configuration, []ConfigWarning, error) {
	warnings := ValidateTriggers(rules)
	if blocking := Blocking(warnings); len(blocking) > 0 {
		return Configuration{}, blocking, &ValidationError{Warnings: blocking}
	}
	if _, err := s.store.SaveTriggers(ctx, CompileTriggers(rules), actor); err != nil {
		return Configuration{}, nil, err
	}
	return s.afterUpdate(ctx)
}

func (s *Service) UpdateRatings(ctx context.Context, scale RatingScale, actor string) (Configuration, []ConfigWarning, error) {
	warnings := scale.Validate()
	if blocking := Blocking(warnings); len(blocking) > 0 {
		return Configuration{}, blocking, &ValidationError{Warnings: blocking}
	}
	if _, err := s.store.SaveRatings(ctx, append(RatingScale(nil), scale...), actor); err != nil {
		return Configuration{}, nil, err
	}
	return s.afterUpdate(ctx)
}

func (s *Service) afterUpdate(ctx context.Context) (Configuration, []ConfigWarning, error) {
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Warn("kpi config cache invalidate failed", "err", err)
	}
	cfg, err := s.store.LoadConfiguration(ctx)
	if err != nil {
		return Configuration{}, nil, err
	}
	return cfg, nonNilWarnings(cfg.Validate()), nil
}

func (s *Service) ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, int, error) {
	return s.store.ListResults(ctx, filter)
}

func (s *Service) GetResult(ctx context.Context, employeeIdentifier, period string) (StoredResult, error) {
	return s.store.GetResult(ctx, employeeIdentifier, period)
}

func (s *Service) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, int, error) {
	return s.store.ListAssignments(ctx, filter)
}

func nonNilWarnings(warnings []ConfigWarning) []ConfigWarning {
	if warnings == nil {
		return []ConfigWarning{}
	}
	return warnings
}

package catalog

import (
	"context"
	"fmt"

	"fieldledger/internal/core/apperror"
	"fieldledger/pkg/logger"
)

// Fallback reasons reported to the fallback hook.
const (
	FallbackNotFound = "not_found"
	FallbackError    = "error"
)

// Service resolves the catalog for a team: cache, then store, then the
// configured default. A failing store never blocks invoicing while a default
// exists.
type Service struct {
	repo       Repository
	cache      Cache
	fallback   *Catalog
	onFallback func(reason string)
}

// Option configures Service.
type Option func(*Service)

// WithCache puts c in front of the repository.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithFallbackHook registers fn, called each time the default catalog is served.
func WithFallbackHook(fn func(reason string)) Option {
	return func(s *Service) { s.onFallback = fn }
}

// NewService creates a catalog service. repo may be nil, in which case every
// team gets the fallback catalog. fallback may be nil, in which case an
// unreadable catalog is a hard error.
func NewService(repo Repository, fallback *Catalog, opts ...Option) *Service {
	s := &Service{repo: repo, fallback: fallback}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the catalog for teamID. The result is a private copy.
func (s *Service) Get(ctx context.Context, teamID string) (*Catalog, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, teamID)
		if err != nil {
			logger.Warn(ctx, "catalog cache read failed", "team_id", teamID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if s.repo == nil {
		return s.useFallback(ctx, teamID, FallbackNotFound, nil)
	}

	c, err := s.repo.GetByTeam(ctx, teamID)
	if err != nil {
		reason := FallbackError
		if apperror.IsNotFound(err) {
			reason = FallbackNotFound
		}
		return s.useFallback(ctx, teamID, reason, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, c); err != nil {
			logger.Warn(ctx, "catalog cache write failed", "team_id", teamID, "error", err)
		}
	}
	return c.Clone(), nil
}

// Save stores a team catalog and drops its cached copy.
func (s *Service) Save(ctx context.Context, c *Catalog) error {
	if c.TeamID == "" {
		return apperror.NewValidation("team id is required")
	}
	if err := Validate(c); err != nil {
		return apperror.NewValidation(err.Error())
	}
	if s.repo == nil {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "catalog storage is not configured")
	}
	c.Default = false
	if err := s.repo.Save(ctx, c); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, c.TeamID); err != nil {
			logger.Warn(ctx, "catalog cache invalidate failed", "team_id", c.TeamID, "error", err)
		}
	}
	logger.Info(ctx, "catalog saved", "team_id", c.TeamID, "entries", len(c.Entries))
	return nil
}

func (s *Service) useFallback(ctx context.Context, teamID, reason string, cause error) (*Catalog, error) {
	if s.fallback == nil {
		if cause == nil {
			cause = fmt.Errorf("no catalog for team %q", teamID)
		}
		return nil, apperror.NewCatalogUnavailable(teamID, cause)
	}

	if reason == FallbackError {
		logger.Warn(ctx, "catalog unavailable, using default", "team_id", teamID, "error", cause)
	} else {
		logger.Debug(ctx, "no stored catalog, using default", "team_id", teamID)
	}
	if s.onFallback != nil {
		s.onFallback(reason)
	}

	c := s.fallback.Clone()
	c.TeamID = teamID
	c.Default = true
	return c, nil
}

// Package numerator issues human-readable sequential numbers such as
// INV-2026-00042.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict reserves one number per call. No gaps unless the caller
	// discards a number.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges in memory. Restarts leave gaps.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Allocator reserves n consecutive values of a named sequence and returns
// the last one.
type Allocator interface {
	Reserve(ctx context.Context, key string, n int64) (int64, error)
	Set(ctx context.Context, key string, value int64) error
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides numbering on top of an Allocator.
type Service struct {
	alloc Allocator

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a numerator service.
func New(alloc Allocator) *Service {
	return &Service{alloc: alloc, ranges: make(map[string]*cachedRange)}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "INV")
	Prefix string
	// IncludeYear adds year to the number
	IncludeYear bool
	// PadWidth is the minimum number width (default 5)
	PadWidth int
	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// GetNextNumber generates the next number for period.
// Pattern: PREFIX-YEAR-XXXXX (e.g., INV-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if s == nil || s.alloc == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	key := s.buildKey(cfg, period)
	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	default:
		num, err = s.alloc.Reserve(ctx, key, 1)
		if err != nil {
			err = fmt.Errorf("strict next: %w", err)
		}
	}
	if err != nil {
		return "", err
	}
	return s.formatNumber(cfg, period, num), nil
}

func (s *Service) getNextCached(ctx context.Context, key string, opts *Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}
		newMax, err := s.alloc.Reserve(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		// reserved range is (newMax-size, newMax]
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber moves a sequence so the next issued number follows value.
func (s *Service) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	key := s.buildKey(cfg, period)
	err := s.alloc.Set(ctx, key, value)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	return err
}

func (s *Service) buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

func (s *Service) formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts numeric part from formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}

// Generator binds a Config and Options to a Service so callers only pass
// the period.
type Generator struct {
	svc  *Service
	cfg  Config
	opts *Options
}

// NewGenerator creates a Generator.
func NewGenerator(svc *Service, cfg Config, opts *Options) *Generator {
	return &Generator{svc: svc, cfg: cfg, opts: opts}
}

// Next returns the next number for period.
func (g *Generator) Next(ctx context.Context, period time.Time) (string, error) {
	return g.svc.GetNextNumber(ctx, g.cfg, g.opts, period)
}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresAllocator keeps sequences in sys_sequences. It runs on the pool,
// outside business transactions, so a reserved number is never rolled back.
type PostgresAllocator struct {
	q Querier
}

// NewPostgresAllocator creates an allocator on q.
func NewPostgresAllocator(q Querier) *PostgresAllocator {
	return &PostgresAllocator{q: q}
}

func (a *PostgresAllocator) Reserve(ctx context.Context, key string, n int64) (int64, error) {
	var last int64
	err := a.q.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&last)
	return last, err
}

func (a *PostgresAllocator) Set(ctx context.Context, key string, value int64) error {
	var result int64
	return a.q.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)
}

// MemoryAllocator keeps sequences in process memory.
type MemoryAllocator struct {
	mu   sync.Mutex
	vals map[string]int64
}

// NewMemoryAllocator creates an empty in-memory allocator.
func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{vals: make(map[string]int64)}
}

func (a *MemoryAllocator) Reserve(_ context.Context, key string, n int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vals[key] += n
	return a.vals[key], nil
}

func (a *MemoryAllocator) Set(_ context.Context, key string, value int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vals[key] = value
	return nil
}

// Package cache provides the Redis-backed catalog cache, the per-technician
// stock lock and catalog invalidation via PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

const catalogKeyPrefix = "fieldledger:catalog:"

// CatalogCache implements catalog.Cache on Redis. Values are msgpack encoded.
// A nil client turns every call into a miss or a no-op.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ catalog.Cache = (*CatalogCache)(nil)

// NewCatalogCache creates a catalog cache. client may be nil.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{client: client, ttl: ttl}
}

func catalogKey(teamID string) string { return catalogKeyPrefix + teamID }

// Get implements catalog.Cache.
func (c *CatalogCache) Get(ctx context.Context, teamID string) (*catalog.Catalog, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, catalogKey(teamID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get catalog: %w", err)
	}
	return decodeCatalog(raw)
}

// Set implements catalog.Cache.
func (c *CatalogCache) Set(ctx context.Context, cat *catalog.Catalog) error {
	if c.client == nil {
		return nil
	}
	raw, err := encodeCatalog(cat)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, catalogKey(cat.TeamID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set catalog: %w", err)
	}
	return nil
}

// Invalidate implements catalog.Cache.
func (c *CatalogCache) Invalidate(ctx context.Context, teamID string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, catalogKey(teamID)).Err(); err != nil {
		return fmt.Errorf("redis del catalog: %w", err)
	}
	return nil
}

// Money values travel as decimal strings so no precision is lost.

type lotDTO struct {
	BatchID       string    `msgpack:"b"`
	DateAdded     time.Time `msgpack:"d"`
	Quantity      int64     `msgpack:"q"`
	PurchasePrice string    `msgpack:"pp"`
	SellingPrice  string    `msgpack:"sp"`
	Notes         string    `msgpack:"n,omitempty"`
}

type entryDTO struct {
	ItemType      string   `msgpack:"t"`
	ItemID        string   `msgpack:"id"`
	Name          string   `msgpack:"nm"`
	IsActive      bool     `msgpack:"a"`
	Batches       []lotDTO `msgpack:"l,omitempty"`
	PurchasePrice string   `msgpack:"pp"`
	Price         string   `msgpack:"p"`
	SellingPrice  string   `msgpack:"sp"`
}

type catalogDTO struct {
	TeamID    string     `msgpack:"team"`
	Entries   []entryDTO `msgpack:"e"`
	UpdatedAt time.Time  `msgpack:"u"`
}

func encodeCatalog(c *catalog.Catalog) ([]byte, error) {
	dto := catalogDTO{TeamID: c.TeamID, UpdatedAt: c.UpdatedAt, Entries: make([]entryDTO, 0, len(c.Entries))}
	for _, e := range c.Entries {
		ed := entryDTO{
			ItemType:      string(e.ItemType),
			ItemID:        e.ItemID,
			Name:          e.Name,
			IsActive:      e.IsActive,
			PurchasePrice: e.PurchasePrice.String(),
			Price:         e.Price.String(),
			SellingPrice:  e.SellingPrice.String(),
		}
		for _, l := range e.Batches {
			ed.Batches = append(ed.Batches, lotDTO{
				BatchID:       l.BatchID,
				DateAdded:     l.DateAdded,
				Quantity:      l.Quantity,
				PurchasePrice: l.PurchasePrice.String(),
				SellingPrice:  l.SellingPrice.String(),
				Notes:         l.Notes,
			})
		}
		dto.Entries = append(dto.Entries, ed)
	}
	raw, err := msgpack.Marshal(&dto)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return raw, nil
}

func decodeCatalog(raw []byte) (*catalog.Catalog, error) {
	var dto catalogDTO
	if err := msgpack.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &catalog.Catalog{TeamID: dto.TeamID, UpdatedAt: dto.UpdatedAt, Entries: make([]catalog.Entry, 0, len(dto.Entries))}
	for _, ed := range dto.Entries {
		e := catalog.Entry{
			ItemType: stock.ItemType(ed.ItemType),
			ItemID:   ed.ItemID,
			Name:     ed.Name,
			IsActive: ed.IsActive,
		}
		var err error
		if e.PurchasePrice, err = money(ed.PurchasePrice); err != nil {
			return nil, err
		}
		if e.Price, err = money(ed.Price); err != nil {
			return nil, err
		}
		if e.SellingPrice, err = money(ed.SellingPrice); err != nil {
			return nil, err
		}
		for _, ld := range ed.Batches {
			l := stock.Lot{BatchID: ld.BatchID, DateAdded: ld.DateAdded, Quantity: ld.Quantity, Notes: ld.Notes}
			if l.PurchasePrice, err = money(ld.PurchasePrice); err != nil {
				return nil, err
			}
			if l.SellingPrice, err = money(ld.SellingPrice); err != nil {
				return nil, err
			}
			e.Batches = append(e.Batches, l)
		}
		c.Entries = append(c.Entries, e)
	}
	return c, nil
}

func money(s string) (types.Money, error) {
	if s == "" {
		return types.Zero(), nil
	}
	m, err := types.NewMoneyFromString(s)
	if err != nil {
		return types.Zero(), fmt.Errorf("decode price %q: %w", s, err)
	}
	return m, nil
}

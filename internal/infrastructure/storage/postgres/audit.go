package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const AuditActionConsume AuditAction = "consume"

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                 id.ID           `db:"id"`
	EntityType         string          `db:"entity_type"`
	EntityID           string          `db:"entity_id"`
	Action             AuditAction     `db:"action"`
	TechnicianID       string          `db:"technician_id"`
	SourceID           id.ID           `db:"source_id"`
	Changes            json.RawMessage `db:"changes"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

// AuditService writes stock change history. Changes hold per-item quantity
// deltas; the full before/after documents go to Snapshot, zstd-compressed
// above compressThreshold.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	compressThreshold int
}

var _ invoice.StockAuditor = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager, compressThreshold int) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	if compressThreshold <= 0 {
		compressThreshold = 10 * 1024
	}
	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		compressThreshold: compressThreshold,
	}, nil
}

// RecordStockChange implements invoice.StockAuditor.
func (s *AuditService) RecordStockChange(ctx context.Context, invoiceID id.ID, before, after *stock.TechnicianStock) error {
	changes, err := json.Marshal(Diff(quantities(before), quantities(after)))
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	snapshot, err := json.Marshal(map[string]any{"before": before, "after": after})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: "technician_stock",
		EntityID:   after.TechnicianID,
		Action:     AuditActionConsume,
		SourceID:   invoiceID,
		Changes:    changes,
		Snapshot:   snapshot,
	})
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.TechnicianID == "" {
		entry.TechnicianID = appctx.GetTechnicianID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.compress(&entry)

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, technician_id, source_id,
			changes, snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.TechnicianID, entry.SourceID,
		entry.Changes, entry.Snapshot, entry.SnapshotCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// compress moves a snapshot above the threshold into SnapshotCompressed.
func (s *AuditService) compress(e *AuditEntry) {
	e.CompressionAlgo = CompressionNone
	if len(e.Snapshot) <= s.compressThreshold {
		return
	}
	e.SnapshotCompressed = s.encoder.EncodeAll(e.Snapshot, nil)
	e.Snapshot = nil
	e.CompressionAlgo = CompressionZstd
}

// quantities keys each item's on-hand quantity by "type/id".
func quantities(s *stock.TechnicianStock) map[string]any {
	out := make(map[string]any)
	if s == nil {
		return out
	}
	for _, it := range s.Items {
		out[string(it.ItemType)+"/"+it.ItemID] = it.Quantity
	}
	return out
}

// Diff calculates the difference between old and new states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}

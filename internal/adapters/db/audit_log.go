package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// AuditLog writes append-only audit records. The core only ever writes
// here; nothing reads back through this adapter.
type AuditLog struct {
	conn *Connection
}

// NewAuditLog creates a new audit log sink
func NewAuditLog(conn *Connection) *AuditLog {
	return &AuditLog{conn: conn}
}

// Record appends one audit entry with before/after state as JSON
func (l *AuditLog) Record(ctx context.Context, entry outbound.AuditEntry) error {
	before, err := json.Marshal(entry.Before)
	if err != nil {
		return fmt.Errorf("failed to marshal audit before state: %w", err)
	}
	after, err := json.Marshal(entry.After)
	if err != nil {
		return fmt.Errorf("failed to marshal audit after state: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor, action, entity, entity_id, before_state, after_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = l.conn.GetDB().ExecContext(ctx, query,
		uuid.New(),
		entry.Actor,
		entry.Action,
		entry.Entity,
		entry.EntityID,
		before,
		after,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const paymentColumns = `id, auction_id, vendor_id, amount, method, reference, status,
	deadline, verified_by, verified_at, created_at, updated_at`

// PaymentRepository implements the payment repository interface. The
// reminded/forfeited flags exist only to keep the deadline sweep
// idempotent; the deadline state itself is always derived from time.
type PaymentRepository struct {
	conn *Connection
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(conn *Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

// Create creates a new payment
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		p.ID,
		p.AuctionID,
		p.VendorID,
		p.Amount,
		p.Method,
		p.Reference,
		p.Status,
		p.Deadline,
		p.VerifiedBy,
		p.VerifiedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByAuctionID retrieves the payment created at an auction's closure
func (r *PaymentRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE auction_id = $1`, auctionID)
}

// GetByReference retrieves a payment by its provider reference
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg interface{}) (*payment.Payment, error) {
	p, err := scanPayment(r.conn.GetDB().QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListPending returns payments not yet decided by a finance officer
func (r *PaymentRepository) ListPending(ctx context.Context, limit int) ([]*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending'
		ORDER BY deadline ASC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

// Update persists verification state changes
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, verified_by = $3, verified_at = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		p.ID, p.Status, p.VerifiedBy, p.VerifiedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrPaymentNotFound
	}
	return nil
}

// MarkReminded records that the deadline reminder has gone out
func (r *PaymentRepository) MarkReminded(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, id, "reminded_at")
}

// MarkForfeited records that forfeiture side effects have run
func (r *PaymentRepository) MarkForfeited(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, id, "forfeited_at")
}

func (r *PaymentRepository) setFlag(ctx context.Context, id uuid.UUID, column string) error {
	query := fmt.Sprintf(
		`UPDATE payments SET %s = NOW(), updated_at = NOW() WHERE id = $1 AND %s IS NULL`,
		column, column,
	)

	result, err := r.conn.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment %s: %w", column, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrPaymentAlreadyFinal
	}
	return nil
}

// ListUnreminded returns pending payments inside the reminder window that
// have not been reminded yet
func (r *PaymentRepository) ListUnreminded(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending'
		  AND reminded_at IS NULL
		  AND forfeited_at IS NULL
		  AND deadline <= $1 + INTERVAL '12 hours'
		ORDER BY deadline ASC
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

// ListUnforfeited returns pending payments past the forfeit threshold whose
// forfeiture has not been processed
func (r *PaymentRepository) ListUnforfeited(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending'
		  AND forfeited_at IS NULL
		  AND deadline <= $1 - INTERVAL '48 hours'
		ORDER BY deadline ASC
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*payment.Payment, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID,
		&p.AuctionID,
		&p.VendorID,
		&p.Amount,
		&p.Method,
		&p.Reference,
		&p.Status,
		&p.Deadline,
		&p.VerifiedBy,
		&p.VerifiedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

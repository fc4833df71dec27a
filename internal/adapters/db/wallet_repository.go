package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/wallet"

	"github.com/google/uuid"
)

const walletColumns = `id, vendor_id, balance, available_balance, frozen_amount, created_at, updated_at`

// WalletRepository implements the escrow wallet repository interface
type WalletRepository struct {
	conn *Connection
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(conn *Connection) *WalletRepository {
	return &WalletRepository{conn: conn}
}

// GetByID retrieves a wallet by ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM escrow_wallets WHERE id = $1`

	w, err := scanWallet(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// GetByVendorID retrieves a vendor's wallet
func (r *WalletRepository) GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM escrow_wallets WHERE vendor_id = $1`

	w, err := scanWallet(r.conn.GetDB().QueryRowContext(ctx, query, vendorID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet by vendor: %w", err)
	}
	return w, nil
}

// CreateForVendor lazily provisions an empty wallet
func (r *WalletRepository) CreateForVendor(ctx context.Context, vendorID uuid.UUID) (*wallet.Wallet, error) {
	now := time.Now()
	w := &wallet.Wallet{
		ID:        uuid.New(),
		VendorID:  vendorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO escrow_wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.GetDB().ExecContext(ctx, query,
		w.ID, w.VendorID, w.Balance, w.Available, w.Frozen, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// Apply runs a ledger mutation against a row-locked wallet. The wallet row
// is read FOR UPDATE, mutated in memory (which enforces the ledger
// invariant), then written back together with the immutable transaction
// record. Everything commits or rolls back as one unit.
func (r *WalletRepository) Apply(ctx context.Context, walletID uuid.UUID, mutate func(w *wallet.Wallet) (*wallet.Transaction, error)) (*wallet.Transaction, error) {
	var record *wallet.Transaction

	err := r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+walletColumns+` FROM escrow_wallets WHERE id = $1 FOR UPDATE`,
			walletID,
		)
		w, err := scanWallet(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return shared.ErrWalletNotFound
			}
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		record, err = mutate(w)
		if err != nil {
			return err
		}
		w.UpdatedAt = time.Now()

		_, err = tx.ExecContext(ctx, `
			UPDATE escrow_wallets
			SET balance = $2, available_balance = $3, frozen_amount = $4, updated_at = $5
			WHERE id = $1
		`, w.ID, w.Balance, w.Available, w.Frozen, w.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update wallet: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO wallet_transactions (id, wallet_id, type, amount, balance_after, reference, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			record.ID,
			record.WalletID,
			record.Type,
			record.Amount,
			record.BalanceAfter,
			record.Reference,
			record.Description,
			record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert wallet transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListTransactions returns the wallet's ledger history, newest first
func (r *WalletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]*wallet.Transaction, error) {
	query := `
		SELECT id, wallet_id, type, amount, balance_after, reference, description, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []*wallet.Transaction
	for rows.Next() {
		var t wallet.Transaction
		err := rows.Scan(
			&t.ID,
			&t.WalletID,
			&t.Type,
			&t.Amount,
			&t.BalanceAfter,
			&t.Reference,
			&t.Description,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet transactions: %w", err)
	}
	return txs, nil
}

func scanWallet(row rowScanner) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(
		&w.ID,
		&w.VendorID,
		&w.Balance,
		&w.Available,
		&w.Frozen,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

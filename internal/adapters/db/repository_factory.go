package db

import (
	"salvage-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAuctionRepository returns the auction repository
func (f *RepositoryFactory) GetAuctionRepository() outbound.AuctionRepository {
	return NewAuctionRepository(f.conn)
}

// GetBidRepository returns the bid repository
func (f *RepositoryFactory) GetBidRepository() outbound.BidRepository {
	return NewBidRepository(f.conn)
}

// GetVendorRepository returns the vendor repository
func (f *RepositoryFactory) GetVendorRepository() outbound.VendorRepository {
	return NewVendorRepository(f.conn)
}

// GetCaseRepository returns the case repository
func (f *RepositoryFactory) GetCaseRepository() outbound.CaseRepository {
	return NewCaseRepository(f.conn)
}

// GetWalletRepository returns the escrow wallet repository
func (f *RepositoryFactory) GetWalletRepository() outbound.WalletRepository {
	return NewWalletRepository(f.conn)
}

// GetFundingRepository returns the funding request repository
func (f *RepositoryFactory) GetFundingRepository() outbound.FundingRepository {
	return NewFundingRepository(f.conn)
}

// GetPaymentRepository returns the payment repository
func (f *RepositoryFactory) GetPaymentRepository() outbound.PaymentRepository {
	return NewPaymentRepository(f.conn)
}

// GetAuditLog returns the audit log sink
func (f *RepositoryFactory) GetAuditLog() outbound.AuditLog {
	return NewAuditLog(f.conn)
}

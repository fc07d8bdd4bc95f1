package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletKind distinguishes merchant wallets from the platform singleton.
type WalletKind string

const (
	WalletKindMerchant WalletKind = "MERCHANT"
	WalletKindPlatform WalletKind = "PLATFORM"
)

// Owner references the holder of a wallet. The platform owner uses the nil UUID.
type Owner struct {
	Kind WalletKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// MerchantOwner returns the owner reference of a merchant wallet.
func MerchantOwner(merchantID uuid.UUID) Owner {
	return Owner{Kind: WalletKindMerchant, ID: merchantID}
}

// PlatformOwner returns the owner reference of the platform wallet.
func PlatformOwner() Owner {
	return Owner{Kind: WalletKindPlatform, ID: uuid.Nil}
}

func (o Owner) String() string {
	if o.Kind == WalletKindPlatform {
		return "platform"
	}
	return "merchant:" + o.ID.String()
}

// Wallet holds the cached fold of a wallet's ledger entries.
type Wallet struct {
	ID              uuid.UUID       `json:"id"`
	Kind            WalletKind      `json:"kind"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	Currency        string          `json:"currency"`
	Balance         decimal.Decimal `json:"balance"`
	ReservedBalance decimal.Decimal `json:"reserved_balance"`
	TotalWithdrawn  decimal.Decimal `json:"total_withdrawn"`
	IsFrozen        bool            `json:"is_frozen"`
	FrozenAt        *time.Time      `json:"frozen_at,omitempty"`
	FrozenBy        *uuid.UUID      `json:"frozen_by,omitempty"`
	Version         int64           `json:"version"`
	LastSequence    int64           `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewWallet returns a zero-balance wallet for owner.
func NewWallet(owner Owner, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:              uuid.New(),
		Kind:            owner.Kind,
		OwnerID:         owner.ID,
		Currency:        currency,
		Balance:         decimal.Zero,
		ReservedBalance: decimal.Zero,
		TotalWithdrawn:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Owner returns the owner reference of the wallet.
func (w *Wallet) Owner() Owner {
	return Owner{Kind: w.Kind, ID: w.OwnerID}
}

// Available returns balance minus reserved funds.
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.ReservedBalance)
}

// CheckInvariants verifies 0 <= reserved <= balance and totalWithdrawn >= 0.
func (w *Wallet) CheckInvariants() error {
	if w.Balance.IsNegative() {
		return fmt.Errorf("wallet %s: balance %s is negative", w.ID, w.Balance)
	}
	if w.ReservedBalance.IsNegative() {
		return fmt.Errorf("wallet %s: reserved balance %s is negative", w.ID, w.ReservedBalance)
	}
	if w.ReservedBalance.GreaterThan(w.Balance) {
		return fmt.Errorf("wallet %s: reserved %s exceeds balance %s", w.ID, w.ReservedBalance, w.Balance)
	}
	if w.TotalWithdrawn.IsNegative() {
		return fmt.Errorf("wallet %s: total withdrawn %s is negative", w.ID, w.TotalWithdrawn)
	}
	return nil
}

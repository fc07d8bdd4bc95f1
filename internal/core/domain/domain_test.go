package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestActor_CanActFor(t *testing.T) {
	merchant := uuid.New()
	other := uuid.New()

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"own merchant", Actor{ID: uuid.New(), Role: ActorRoleMerchant, MerchantID: &merchant}, true},
		{"other merchant", Actor{ID: uuid.New(), Role: ActorRoleMerchant, MerchantID: &other}, false},
		{"merchant without id", Actor{ID: uuid.New(), Role: ActorRoleMerchant}, false},
		{"admin", Actor{ID: uuid.New(), Role: ActorRoleAdmin}, true},
		{"system", SystemActor(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.CanActFor(merchant))
		})
	}
}

func TestActor_Ref(t *testing.T) {
	assert.Nil(t, SystemActor().Ref())

	id := uuid.New()
	ref := Actor{ID: id, Role: ActorRoleAdmin}.Ref()
	require.NotNil(t, ref)
	assert.Equal(t, id, *ref)
}

func TestOwner_String(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "merchant:550e8400-e29b-41d4-a716-446655440000", MerchantOwner(id).String())
	assert.Equal(t, "platform", PlatformOwner().String())
}

func TestWallet_Available(t *testing.T) {
	w := &Wallet{Balance: d("1450"), ReservedBalance: d("300")}
	assert.True(t, w.Available().Equal(d("1150")))
}

func TestWallet_CheckInvariants(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		reserved string
		wantErr  bool
	}{
		{"zero", "0", "0", false},
		{"reserved equals balance", "10", "10", false},
		{"negative balance", "-1", "0", true},
		{"negative reserved", "10", "-1", true},
		{"reserved above balance", "10", "10.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Wallet{Balance: d(tt.balance), ReservedBalance: d(tt.reserved), TotalWithdrawn: decimal.Zero}
			err := w.CheckInvariants()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewWallet_ZeroBalances(t *testing.T) {
	w := NewWallet(PlatformOwner(), "USD")
	assert.Equal(t, WalletKindPlatform, w.Kind)
	assert.Equal(t, uuid.Nil, w.OwnerID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.ReservedBalance.IsZero())
	assert.Equal(t, PlatformOwner(), w.Owner())
}

func TestTransactionKind_Classes(t *testing.T) {
	assert.True(t, TransactionKindOrderRevenue.IsCreditKind())
	assert.False(t, TransactionKindOrderRevenue.IsDebitKind())
	assert.True(t, TransactionKindPayout.IsDebitKind())
	assert.True(t, TransactionKindAdjustment.IsCreditKind())
	assert.True(t, TransactionKindAdjustment.IsDebitKind())
	assert.False(t, TransactionKindReserve.IsCreditKind())
	assert.True(t, TransactionKindRelease.IsHold())
	assert.False(t, TransactionKind("BOGUS").IsValid())
}

func TestFold(t *testing.T) {
	entries := []LedgerTransaction{
		{Kind: TransactionKindCredit, Amount: d("1000")},
		{Kind: TransactionKindOrderRevenue, Amount: d("450")},
		{Kind: TransactionKindReserve, Amount: d("300")},
		{Kind: TransactionKindRelease, Amount: d("-300")},
		{Kind: TransactionKindPayout, Amount: d("-300")},
		{Kind: TransactionKindReserve, Amount: d("25.50")},
	}

	got := Fold(entries)
	assert.True(t, got.Balance.Equal(d("1150")), got.Balance.String())
	assert.True(t, got.ReservedBalance.Equal(d("25.50")))
	assert.True(t, got.TotalWithdrawn.Equal(d("300")))
	assert.Equal(t, 6, got.Entries)
}

func TestFold_Empty(t *testing.T) {
	got := Fold(nil)
	assert.True(t, got.Balance.IsZero())
	assert.Zero(t, got.Entries)
}

func TestWithdrawalStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to WithdrawalStatus
		want     bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusApproved, true},
		{WithdrawalStatusPending, WithdrawalStatusRejected, true},
		{WithdrawalStatusPending, WithdrawalStatusCompleted, false},
		{WithdrawalStatusApproved, WithdrawalStatusCompleted, true},
		{WithdrawalStatusApproved, WithdrawalStatusRejected, true},
		{WithdrawalStatusApproved, WithdrawalStatusApproved, false},
		{WithdrawalStatusRejected, WithdrawalStatusApproved, false},
		{WithdrawalStatusCompleted, WithdrawalStatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestWithdrawalStatus_IsTerminal(t *testing.T) {
	assert.False(t, WithdrawalStatusPending.IsTerminal())
	assert.False(t, WithdrawalStatusApproved.IsTerminal())
	assert.True(t, WithdrawalStatusRejected.IsTerminal())
	assert.True(t, WithdrawalStatusCompleted.IsTerminal())
}

func TestSplitCommission(t *testing.T) {
	tests := []struct {
		name           string
		total, rate    string
		wantCommission string
		wantNet        string
	}{
		{"ten percent", "500", "0.10", "50", "450"},
		{"rounds half away from zero", "0.05", "0.5", "0.03", "0.02"},
		{"zero rate", "99.99", "0", "0", "99.99"},
		{"full rate", "12.34", "1", "12.34", "0"},
		{"odd cents", "33.33", "0.15", "5", "28.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commission, net := SplitCommission(d(tt.total), d(tt.rate), 2)
			assert.True(t, commission.Equal(d(tt.wantCommission)), "commission %s", commission)
			assert.True(t, net.Equal(d(tt.wantNet)), "net %s", net)
			assert.True(t, commission.Add(net).Equal(d(tt.total)))
		})
	}
}

func TestIsValidAmount(t *testing.T) {
	assert.True(t, IsValidAmount(d("0.01"), 2))
	assert.False(t, IsValidAmount(d("0.001"), 2))
	assert.False(t, IsValidAmount(decimal.Zero, 2))
	assert.False(t, IsValidAmount(d("-5"), 2))
	assert.True(t, IsValidAmount(d("100"), 0))
	assert.True(t, IsValidAmount(MaxAmount, 2))
	assert.False(t, IsValidAmount(MaxAmount.Add(d("0.01")), 2))
	assert.False(t, IsValidAmount(d("10000000000000000"), 2))
}

func TestIsValidRate(t *testing.T) {
	assert.True(t, IsValidRate(decimal.Zero))
	assert.True(t, IsValidRate(d("1")))
	assert.True(t, IsValidRate(d("0.125")))
	assert.True(t, IsValidRate(d("0.000001")))
	assert.False(t, IsValidRate(d("0.0000001")))
	assert.False(t, IsValidRate(d("1.000001")))
	assert.False(t, IsValidRate(d("-0.1")))
}

func TestOrderSettlement_Matches(t *testing.T) {
	merchant := uuid.New()
	s := &OrderSettlement{MerchantID: merchant, TotalAmount: d("500.00")}
	assert.True(t, s.Matches(merchant, d("500")))
	assert.False(t, s.Matches(merchant, d("501")))
	assert.False(t, s.Matches(uuid.New(), d("500")))
}

package domain

import "github.com/google/uuid"

// ActorRole identifies who is performing a ledger operation.
type ActorRole string

const (
	ActorRoleMerchant ActorRole = "MERCHANT"
	ActorRoleAdmin    ActorRole = "ADMIN"
	ActorRoleSystem   ActorRole = "SYSTEM"
)

// Actor is the authenticated identity passed explicitly into every mutating call.
type Actor struct {
	ID         uuid.UUID  `json:"id"`
	Role       ActorRole  `json:"role"`
	MerchantID *uuid.UUID `json:"merchant_id,omitempty"` // set for merchant users
}

// SystemActor is used for internally triggered operations such as order settlement.
func SystemActor() Actor {
	return Actor{Role: ActorRoleSystem}
}

// IsAdmin returns true for admin and system actors.
func (a Actor) IsAdmin() bool {
	return a.Role == ActorRoleAdmin || a.Role == ActorRoleSystem
}

// CanActFor reports whether the actor may operate on the given merchant's wallet.
func (a Actor) CanActFor(merchantID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == ActorRoleMerchant && a.MerchantID != nil && *a.MerchantID == merchantID
}

// Ref returns the actor id for attribution, or nil for anonymous system calls.
func (a Actor) Ref() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

package models

import "time"

// CodeKind distinguishes what a redeem code pays out.
type CodeKind string

const (
	CodeKindCurrency  CodeKind = "currency"
	CodeKindCharacter CodeKind = "character"
)

// RedeemCode is a limited-use claim token. The used-by membership and the
// active flag are maintained atomically by the code repository; this struct
// is the read-side view.
type RedeemCode struct {
	Code        string    `json:"code"`
	Kind        CodeKind  `json:"kind"`
	Amount      int64     `json:"amount,omitempty"`      // currency codes
	CharacterID string    `json:"characterId,omitempty"` // character codes
	MaxUses     int       `json:"maxUses"`
	Uses        int       `json:"uses"`
	Active      bool      `json:"active"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

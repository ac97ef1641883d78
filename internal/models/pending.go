package models

import "time"

// Pending-operation lifetimes. Expired entries are inert: any attempt to act
// on one is rejected, and the periodic sweeper purges leftovers.
const (
	TradeTTL   = 5 * time.Minute
	GiftTTL    = 30 * time.Second
	PaymentTTL = 5 * time.Minute

	TradeCooldown = 60 * time.Second
	GiftCooldown  = 30 * time.Second
)

// PendingTrade is a proposed two-way character exchange, keyed by the
// unordered (proposer, counterparty) pair. Only one trade per pair may be
// pending at a time.
type PendingTrade struct {
	Proposer          int64     `json:"proposer"`
	Counterparty      int64     `json:"counterparty"`
	OfferedInstance   string    `json:"offeredInstance"`   // proposer's entry
	RequestedInstance string    `json:"requestedInstance"` // counterparty's entry
	CreatedAt         time.Time `json:"createdAt"`
}

// Expired reports whether the trade is past its lifetime at the given time.
func (t *PendingTrade) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > TradeTTL
}

// PendingGift is a one-way character offer awaiting the sender's own
// confirmation, keyed by the ordered (sender, receiver) pair.
type PendingGift struct {
	Sender          int64     `json:"sender"`
	Receiver        int64     `json:"receiver"`
	OfferedInstance string    `json:"offeredInstance"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Expired reports whether the gift confirmation window has closed.
func (g *PendingGift) Expired(now time.Time) bool {
	return now.Sub(g.CreatedAt) > GiftTTL
}

// PendingPayment is a proposed currency transfer awaiting confirmation via
// its single-use token.
type PendingPayment struct {
	Token     string    `json:"token"`
	Sender    int64     `json:"sender"`
	Receiver  int64     `json:"receiver"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the payment token is past its lifetime.
func (p *PendingPayment) Expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) > PaymentTTL
}

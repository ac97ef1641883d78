package models

import "time"

// CollectionEntry is a character copy owned by a user. The embedded fields
// are frozen at acquisition time; duplicates of the same character id are
// allowed, each with its own instance id.
type CollectionEntry struct {
	InstanceID  string    `json:"instanceId"`
	CharacterID string    `json:"characterId"`
	Name        string    `json:"name"`
	Series      string    `json:"series"`
	Rarity      Rarity    `json:"rarity"`
	ImageRef    string    `json:"imageRef"`
	AcquiredVia Acquisition `json:"acquiredVia"`
	AcquiredAt  time.Time `json:"acquiredAt"`
}

// Acquisition records how a collection entry was obtained.
type Acquisition string

const (
	AcquiredByGuess  Acquisition = "guess"
	AcquiredByTrade  Acquisition = "trade"
	AcquiredByGift   Acquisition = "gift"
	AcquiredByRedeem Acquisition = "redeem"
)

// NewCollectionEntry freezes a catalog character into a collection copy.
func NewCollectionEntry(instanceID string, c *Character, via Acquisition, at time.Time) *CollectionEntry {
	return &CollectionEntry{
		InstanceID:  instanceID,
		CharacterID: c.ID,
		Name:        c.Name,
		Series:      c.Series,
		Rarity:      c.Rarity,
		ImageRef:    c.ImageRef,
		AcquiredVia: via,
		AcquiredAt:  at,
	}
}

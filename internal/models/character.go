// Package models defines the core entities of the character hunt game.
package models

import "time"

// Rarity is an ordinal tier attached to a character. Lower values are more
// common; exact display mapping is left to the presentation layer.
type Rarity int

const (
	RarityCommon    Rarity = 1
	RarityUncommon  Rarity = 2
	RarityRare      Rarity = 3
	RarityEpic      Rarity = 4
	RarityLegendary Rarity = 5
)

// Character is a canonical catalog entry. Catalog rows are reference data:
// user collections hold denormalized copies taken at acquisition time, so
// later catalog edits never propagate into collections.
type Character struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Series    string    `json:"series"`
	Rarity    Rarity    `json:"rarity"`
	ImageRef  string    `json:"imageRef"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatSettings holds per-chat game configuration.
type ChatSettings struct {
	ChatID           int64    `json:"chatId"`
	SpawnThreshold   int      `json:"spawnThreshold"`
	DisabledRarities []Rarity `json:"disabledRarities"`
}

// DefaultSpawnThreshold is the message count that triggers a spawn when a
// chat has no override configured.
const DefaultSpawnThreshold = 100

// RarityDisabled reports whether the given rarity is excluded from spawns
// in this chat.
func (s *ChatSettings) RarityDisabled(r Rarity) bool {
	for _, d := range s.DisabledRarities {
		if d == r {
			return true
		}
	}
	return false
}

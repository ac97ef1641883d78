package game

import (
	"sort"
	"strings"

	apperrors "github.com/character-hunt/internal/errors"
)

// Characters that would read as regex or boolean operators are rejected
// before matching rather than escaped, so a guess is always plain text.
const rejectedGuessChars = `()[]{}|&!$^*+?\`

// ValidateGuess normalizes a raw guess to lowercase trimmed text. Empty
// guesses and guesses carrying matcher metacharacters are rejected.
func ValidateGuess(raw string) (string, error) {
	guess := strings.ToLower(strings.TrimSpace(raw))
	if guess == "" {
		return "", apperrors.NewEmptyGuessError()
	}
	if strings.ContainsAny(guess, rejectedGuessChars) {
		return "", apperrors.NewInvalidGuessError()
	}
	return guess, nil
}

// MatchesName reports whether a normalized guess names the character. Two
// forms count: the guess carries exactly the name's words in any order, or
// the guess is any single word of the name ("rick" catches "Rick Sanchez").
func MatchesName(guess, name string) bool {
	name = strings.ToLower(name)
	guessTokens := strings.Fields(guess)
	nameTokens := strings.Fields(name)
	if len(guessTokens) == 0 || len(nameTokens) == 0 {
		return false
	}

	if len(guessTokens) == 1 {
		for _, tok := range nameTokens {
			if guessTokens[0] == tok {
				return true
			}
		}
	}

	return sameTokenMultiset(guessTokens, nameTokens)
}

func sameTokenMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

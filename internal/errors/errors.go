// Package errors defines the categorized error taxonomy shared by the game
// core, the storage layer, and the bot transport. Every failure surfaced to a
// user maps to exactly one category; handlers decide presentation from the
// category, never from string matching.
package errors

import (
	"errors"
	"fmt"
)

// Category represents the category of an error
type Category string

const (
	// CategoryUserInput represents malformed or rejected user input
	CategoryUserInput Category = "user_input"
	// CategoryAuthorization represents a caller acting on state they do not own
	CategoryAuthorization Category = "authorization"
	// CategoryNotFound represents missing entities
	CategoryNotFound Category = "not_found"
	// CategoryConflict represents losing a concurrent race or acting on a
	// consumed/expired entity: an expected outcome, not a fault
	CategoryConflict Category = "conflict"
	// CategoryInvariant represents a rejected state mutation (insufficient
	// balance, character no longer owned, code exhausted)
	CategoryInvariant Category = "invariant"
	// CategoryStorage represents transient storage/platform failures
	CategoryStorage Category = "storage"
)

// GameError is an error with a category and a stable machine-readable code.
type GameError struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *GameError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *GameError) Unwrap() error {
	return e.Cause
}

// Is matches on code so sentinel comparisons work through wrapping.
func (e *GameError) Is(target error) bool {
	var ge *GameError
	if errors.As(target, &ge) {
		return e.Code == ge.Code
	}
	return false
}

// User input

// NewEmptyGuessError rejects an empty guess with a usage hint.
func NewEmptyGuessError() *GameError {
	return &GameError{
		Category: CategoryUserInput,
		Code:     "EMPTY_GUESS",
		Message:  "guess text is empty; use /catch <character name>",
	}
}

// NewInvalidGuessError rejects guesses carrying matcher metacharacters.
func NewInvalidGuessError() *GameError {
	return &GameError{
		Category: CategoryUserInput,
		Code:     "INVALID_GUESS",
		Message:  "guess contains characters that are not allowed",
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *GameError {
	return &GameError{
		Category: CategoryUserInput,
		Code:     "INVALID_PARAMETER",
		Message:  fmt.Sprintf("invalid parameter '%s': %s", param, reason),
	}
}

// Authorization

// NewNotAdminError rejects admin-only commands from regular users.
func NewNotAdminError() *GameError {
	return &GameError{
		Category: CategoryAuthorization,
		Code:     "NOT_ADMIN",
		Message:  "this command is restricted to administrators",
	}
}

// NewNotPartyError rejects actions on a pending operation from a user who is
// not the party allowed to act on it.
func NewNotPartyError(operation string) *GameError {
	return &GameError{
		Category: CategoryAuthorization,
		Code:     "NOT_PARTY",
		Message:  fmt.Sprintf("only the designated party may act on this %s", operation),
	}
}

// Not found

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *GameError {
	return &GameError{
		Category: CategoryNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewNoCharactersError signals an empty eligible spawn pool for a chat.
func NewNoCharactersError(chatID int64) *GameError {
	return &GameError{
		Category: CategoryNotFound,
		Code:     "NO_CHARACTERS",
		Message:  fmt.Sprintf("no characters available to spawn in chat %d", chatID),
	}
}

// Conflict (expected outcomes of concurrent arbitration)

// NewAlreadyGuessedError tells a guesser they lost the race.
func NewAlreadyGuessedError() *GameError {
	return &GameError{
		Category: CategoryConflict,
		Code:     "ALREADY_GUESSED",
		Message:  "this character was already caught",
	}
}

// NewNoActiveSpawnError rejects a guess when nothing is spawned.
func NewNoActiveSpawnError() *GameError {
	return &GameError{
		Category: CategoryConflict,
		Code:     "NO_ACTIVE_SPAWN",
		Message:  "there is no character to catch right now",
	}
}

// NewWrongGuessError rejects a non-matching guess.
func NewWrongGuessError() *GameError {
	return &GameError{
		Category: CategoryConflict,
		Code:     "WRONG_GUESS",
		Message:  "that is not the right name",
	}
}

// NewExpiredError rejects actions on an expired pending operation.
func NewExpiredError(operation string) *GameError {
	return &GameError{
		Category: CategoryConflict,
		Code:     "EXPIRED",
		Message:  fmt.Sprintf("this %s has expired", operation),
	}
}

// NewAlreadyPendingError rejects a second pending operation for the same key.
func NewAlreadyPendingError(operation string) *GameError {
	return &GameError{
		Category: CategoryConflict,
		Code:     "ALREADY_PENDING",
		Message:  fmt.Sprintf("a %s is already pending; confirm or cancel it first", operation),
	}
}

// NewCooldownError rejects an initiation inside the sender's cooldown window.
func NewCooldownError(operation string) *GameError {
	return &GameError{
		Category: CategoryConflict,
		Code:     "COOLDOWN",
		Message:  fmt.Sprintf("please wait before starting another %s", operation),
	}
}

// Invariant violations

// NewInsufficientBalanceError rejects a transfer the sender cannot cover.
func NewInsufficientBalanceError(amount int64) *GameError {
	return &GameError{
		Category: CategoryInvariant,
		Code:     "INSUFFICIENT_BALANCE",
		Message:  fmt.Sprintf("balance too low for a transfer of %d", amount),
	}
}

// NewNotOwnedError rejects acting on a collection entry the user no longer holds.
func NewNotOwnedError(instanceID string) *GameError {
	return &GameError{
		Category: CategoryInvariant,
		Code:     "NOT_OWNED",
		Message:  fmt.Sprintf("character %s is no longer in the collection", instanceID),
	}
}

// NewAlreadyRedeemedError rejects a repeat redemption by the same user.
func NewAlreadyRedeemedError(code string) *GameError {
	return &GameError{
		Category: CategoryInvariant,
		Code:     "ALREADY_REDEEMED",
		Message:  fmt.Sprintf("code %s was already redeemed by this user", code),
	}
}

// NewCodeExhaustedError rejects redemption of an inactive or spent code.
func NewCodeExhaustedError(code string) *GameError {
	return &GameError{
		Category: CategoryInvariant,
		Code:     "CODE_EXHAUSTED",
		Message:  fmt.Sprintf("code %s is no longer active", code),
	}
}

// Storage

// NewStorageError creates a storage error
func NewStorageError(operation string, cause error) *GameError {
	return &GameError{
		Category: CategoryStorage,
		Code:     "STORAGE_ERROR",
		Message:  fmt.Sprintf("storage error during %s", operation),
		Cause:    cause,
	}
}

// Categorize wraps an arbitrary error; already-categorized errors pass through.
func Categorize(err error) *GameError {
	if err == nil {
		return nil
	}

	var ge *GameError
	if errors.As(err, &ge) {
		return ge
	}

	return &GameError{
		Category: CategoryStorage,
		Code:     "INTERNAL_ERROR",
		Message:  "unexpected error",
		Cause:    err,
	}
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category Category) bool {
	ge := Categorize(err)
	return ge != nil && ge.Category == category
}

// IsConflict reports whether err is an expected concurrency-loss outcome.
func IsConflict(err error) bool {
	return IsCategory(err, CategoryConflict)
}

// IsUserFacing reports whether err carries a message safe to show the user.
// Storage failures get a generic notice instead.
func IsUserFacing(err error) bool {
	ge := Categorize(err)
	return ge != nil && ge.Category != CategoryStorage
}

// UserMessage returns the message to relay to the user.
func UserMessage(err error) string {
	ge := Categorize(err)
	if ge == nil {
		return ""
	}
	if ge.Category == CategoryStorage {
		return "something went wrong, please try again"
	}
	return ge.Message
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
	"github.com/jackc/pgx/v5"
)

const characterColumns = `id, name, series, rarity, image_ref, locked, created_at, updated_at`

// CharacterRepository handles catalog persistence. The catalog is reference
// data: rows change rarely and only through admin commands.
type CharacterRepository struct {
	db *PostgresDB
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(db *PostgresDB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// Create inserts a new catalog entry
func (r *CharacterRepository) Create(ctx context.Context, c *models.Character) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.NewInvalidParameterError("name", "must not be empty")
	}
	if c.Rarity < models.RarityCommon || c.Rarity > models.RarityLegendary {
		return apperrors.NewInvalidParameterError("rarity", "out of range")
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO characters (id, name, series, rarity, image_ref, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		c.ID, c.Name, c.Series, int(c.Rarity), c.ImageRef, c.Locked, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewStorageError("create character", err)
	}
	return nil
}

// Get retrieves a catalog entry by id
func (r *CharacterRepository) Get(ctx context.Context, id string) (*models.Character, error) {
	query := fmt.Sprintf(`SELECT %s FROM characters WHERE id = $1`, characterColumns)

	c, err := scanCharacter(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("character", id)
		}
		return nil, apperrors.NewStorageError("get character", err)
	}
	return c, nil
}

// GetByName retrieves a catalog entry by exact case-insensitive name
func (r *CharacterRepository) GetByName(ctx context.Context, name string) (*models.Character, error) {
	query := fmt.Sprintf(`SELECT %s FROM characters WHERE LOWER(name) = LOWER($1)`, characterColumns)

	c, err := scanCharacter(r.db.Pool().QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("character", name)
		}
		return nil, apperrors.NewStorageError("get character by name", err)
	}
	return c, nil
}

// Search returns catalog entries whose name or series contains the query,
// case-insensitively, ordered by name. Used by inline queries.
func (r *CharacterRepository) Search(ctx context.Context, q string, limit int) ([]*models.Character, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM characters
		WHERE name ILIKE '%%' || $1 || '%%' OR series ILIKE '%%' || $1 || '%%'
		ORDER BY name
		LIMIT $2
	`, characterColumns)

	rows, err := r.db.Pool().Query(ctx, query, q, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("search characters", err)
	}
	defer rows.Close()

	return collectCharacters(rows)
}

// ListEligible returns unlocked catalog entries outside the disabled rarity
// set and outside the exclusion list. The exclusion list holds recently shown
// character ids for the chat; callers pass it so repeated spawns stay varied.
func (r *CharacterRepository) ListEligible(ctx context.Context, disabled []models.Rarity, exclude []string) ([]*models.Character, error) {
	disabledInts := make([]int, 0, len(disabled))
	for _, d := range disabled {
		disabledInts = append(disabledInts, int(d))
	}
	if exclude == nil {
		exclude = []string{}
	}

	query := fmt.Sprintf(`
		SELECT %s FROM characters
		WHERE locked = FALSE
		  AND NOT (rarity = ANY($1::int[]))
		  AND NOT (id = ANY($2::text[]))
	`, characterColumns)

	rows, err := r.db.Pool().Query(ctx, query, disabledInts, exclude)
	if err != nil {
		return nil, apperrors.NewStorageError("list eligible characters", err)
	}
	defer rows.Close()

	return collectCharacters(rows)
}

// SetLocked flips the lock flag on a catalog entry
func (r *CharacterRepository) SetLocked(ctx context.Context, id string, locked bool) error {
	query := `UPDATE characters SET locked = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, id, locked, time.Now().UTC())
	if err != nil {
		return apperrors.NewStorageError("set character locked", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("character", id)
	}
	return nil
}

// SetRarity changes the rarity tier of a catalog entry
func (r *CharacterRepository) SetRarity(ctx context.Context, id string, rarity models.Rarity) error {
	if rarity < models.RarityCommon || rarity > models.RarityLegendary {
		return apperrors.NewInvalidParameterError("rarity", "out of range")
	}

	query := `UPDATE characters SET rarity = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, id, int(rarity), time.Now().UTC())
	if err != nil {
		return apperrors.NewStorageError("set character rarity", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("character", id)
	}
	return nil
}

// Count returns the catalog size
func (r *CharacterRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM characters`).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStorageError("count characters", err)
	}
	return count, nil
}

func scanCharacter(row pgx.Row) (*models.Character, error) {
	var c models.Character
	var rarity int
	err := row.Scan(&c.ID, &c.Name, &c.Series, &rarity, &c.ImageRef, &c.Locked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Rarity = models.Rarity(rarity)
	return &c, nil
}

func collectCharacters(rows pgx.Rows) ([]*models.Character, error) {
	var out []*models.Character
	for rows.Next() {
		var c models.Character
		var rarity int
		if err := rows.Scan(&c.ID, &c.Name, &c.Series, &rarity, &c.ImageRef, &c.Locked, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperrors.NewStorageError("scan character", err)
		}
		c.Rarity = models.Rarity(rarity)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate characters", err)
	}
	return out, nil
}

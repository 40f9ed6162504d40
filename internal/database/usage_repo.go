package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/calderadev/doc-convert/internal/models"
)

// Admit performs the quota check for one conversion as a single atomic
// statement: the row is created with free_count=1 on first use, and
// incremented only while it is still below the ceiling. Concurrent
// requests from the same user therefore cannot push the count past the
// ceiling; a plain read-then-write here would.
//
// Returns (true, newCount) when the request is admitted, (false, 0) when
// the user has exhausted the free limit.
func (db *DB) Admit(ctx context.Context, userID string, freeLimit int) (bool, int, error) {
	rec := models.UsageRecord{UserID: userID}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO ocr_usage (user_id, free_count)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET free_count = ocr_usage.free_count + 1,
		    updated_at = NOW()
		WHERE ocr_usage.free_count < $2
		RETURNING free_count, created_at, updated_at
	`, userID, freeLimit).Scan(&rec.FreeCount, &rec.CreatedAt, &rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict hit and the WHERE clause filtered the update: limit reached.
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	return true, rec.FreeCount, nil
}

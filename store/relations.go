package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/affinity/matching"
)

var outboundQueries = map[matching.Relation]string{
	matching.RelationPhotoReveal:  `SELECT requestee_id FROM photo_reveals WHERE requester_id = $1 ORDER BY id`,
	matching.RelationContactShare: `SELECT requestee_id FROM contact_shares WHERE requester_id = $1 ORDER BY id`,
	matching.RelationSaved:        `SELECT profile_id FROM saved_profiles WHERE user_id = $1 ORDER BY created_at, profile_id`,
}

// FetchOutbound returns the targets of one outbound relation of a user.
func (s *Store) FetchOutbound(ctx context.Context, profileID int, rel matching.Relation) ([]int, error) {
	query, ok := outboundQueries[rel]
	if !ok {
		return nil, fmt.Errorf("unknown relation %q", rel)
	}
	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rel, err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ToggleSaved flips whether userID has explicitly saved targetID and reports
// the new state. Photo-reveal and contact-share history is left alone.
// Toggles by the same user are serialized on that user's row, so two
// concurrent toggles always cancel out.
func (s *Store) ToggleSaved(ctx context.Context, userID, targetID int) (bool, error) {
	var saved bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockUserForUpdate(ctx, tx, userID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM saved_profiles WHERE user_id = $1 AND profile_id = $2`, userID, targetID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n > 0 {
			saved = false
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO saved_profiles (user_id, profile_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, targetID); err != nil {
			if pqCode(err) == codeForeignKeyViolation {
				return ErrNotFound
			}
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle saved %d->%d: %w", userID, targetID, err)
	}
	return saved, nil
}

// lockUserForUpdate holds the user row until the transaction ends.
func lockUserForUpdate(ctx context.Context, tx *sql.Tx, userID int) error {
	var id int
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

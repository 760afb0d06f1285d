package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"gitea.kood.tech/petrkubec/affinity/matching"
	"github.com/lib/pq"
)

// ReplaceSimilarityTable swaps the stored similarity table for table in one
// transaction. Readers see either the previous table or the new one, never a
// mix, and a failure leaves the previous table untouched.
func (s *Store) ReplaceSimilarityTable(ctx context.Context, table matching.SimilarityTable) error {
	pairs := make([]matching.Pair, 0, len(table))
	for p := range table {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_matches`); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("user_matches", "user1_id", "user2_id", "similarity"))
		if err != nil {
			return err
		}
		for _, p := range pairs {
			if _, err := stmt.ExecContext(ctx, p.From, p.To, table[p]); err != nil {
				_ = stmt.Close()
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return err
		}
		return stmt.Close()
	})
	if err != nil {
		return fmt.Errorf("replace similarity table: %w", err)
	}
	s.log.Debug("similarity table replaced")
	return nil
}

// SimilarityFrom loads the stored scores from one profile to every other.
func (s *Store) SimilarityFrom(ctx context.Context, from int) (matching.SimilarityTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user1_id, user2_id, similarity FROM user_matches WHERE user1_id = $1`, from)
	if err != nil {
		return nil, fmt.Errorf("query similarity: %w", err)
	}
	defer rows.Close()

	table := matching.SimilarityTable{}
	for rows.Next() {
		var p matching.Pair
		var v float64
		if err := rows.Scan(&p.From, &p.To, &v); err != nil {
			return nil, err
		}
		table[p] = v
	}
	return table, rows.Err()
}

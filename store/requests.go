package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Kind is a disclosure request type.
type Kind string

const (
	KindPhotoReveal  Kind = "photo_reveal"
	KindContactShare Kind = "contact_share"
)

// Kinds lists every disclosure request type.
var Kinds = []Kind{KindPhotoReveal, KindContactShare}

// ParseKind validates a kind coming from a URL.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPhotoReveal, KindContactShare:
		return Kind(s), true
	}
	return "", false
}

func (k Kind) table() string {
	if k == KindContactShare {
		return "contact_shares"
	}
	return "photo_reveals"
}

func (k Kind) label() string {
	if k == KindContactShare {
		return "contact share"
	}
	return "photo reveal"
}

// Request statuses. StatusNone is reported when no row exists.
const (
	StatusNone     = "none"
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

type Request struct {
	ID          int    `json:"request_id"`
	Kind        Kind   `json:"kind"`
	RequesterID int    `json:"requester_id"`
	RequesteeID int    `json:"requestee_id"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// IncomingRequest is a pending request addressed to the caller.
type IncomingRequest struct {
	RequestID         int    `json:"request_id"`
	Kind              Kind   `json:"kind"`
	RequesterID       int    `json:"requester_id"`
	RequesterUsername string `json:"username"`
	Status            string `json:"status"`
}

// Outcome tells a requester how one of their requests was answered.
type Outcome struct {
	RequestID int    `json:"request_id"`
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
}

func outcomeMessage(k Kind, answeredBy int, status string) string {
	return fmt.Sprintf("Your %s request to user %d has been %s.", k.label(), answeredBy, status)
}

func scanRequest(row rowScanner, k Kind) (Request, error) {
	r := Request{Kind: k}
	var msg sql.NullString
	err := row.Scan(&r.ID, &r.RequesterID, &r.RequesteeID, &r.Status, &msg)
	r.Message = msg.String
	return r, err
}

// SendRequest records a pending request from -> to. When one already exists
// it is returned unchanged and created is false.
func (s *Store) SendRequest(ctx context.Context, k Kind, from, to int) (req Request, created bool, err error) {
	table := k.table()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		req, err = scanRequest(tx.QueryRowContext(ctx, `
			INSERT INTO `+table+` (requester_id, requestee_id)
			VALUES ($1, $2)
			ON CONFLICT (requester_id, requestee_id) DO NOTHING
			RETURNING id, requester_id, requestee_id, status, message
		`, from, to), k)
		if err == nil {
			created = true
			return nil
		}
		if pqCode(err) == codeForeignKeyViolation {
			return ErrNotFound
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		created = false
		req, err = scanRequest(tx.QueryRowContext(ctx, `
			SELECT id, requester_id, requestee_id, status, message
			FROM `+table+`
			WHERE requester_id = $1 AND requestee_id = $2
		`, from, to), k)
		return err
	})
	if err != nil {
		return Request{}, false, fmt.Errorf("send %s request: %w", k, err)
	}
	return req, created, nil
}

// RespondToRequest accepts or declines a request addressed to me. Accepting
// also grants the same disclosure back to the requester. Answering again with
// the same decision is a no-op; reversing a decision is ErrInvalidState.
func (s *Store) RespondToRequest(ctx context.Context, k Kind, requestID, me int, accept bool) (Request, error) {
	table := k.table()
	target := StatusDeclined
	if accept {
		target = StatusAccepted
	}

	var req Request
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		req, err = scanRequest(tx.QueryRowContext(ctx, `
			SELECT id, requester_id, requestee_id, status, message
			FROM `+table+`
			WHERE id = $1
			FOR UPDATE
		`, requestID), k)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if req.RequesteeID != me {
			return ErrNotFound
		}

		switch req.Status {
		case target:
			return nil
		case StatusPending:
		default:
			return ErrInvalidState
		}

		req.Status = target
		req.Message = outcomeMessage(k, me, target)
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET status = $1, message = $2 WHERE id = $3`,
			req.Status, req.Message, req.ID); err != nil {
			return err
		}

		if accept {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO `+table+` (requester_id, requestee_id, status)
				VALUES ($1, $2, 'accepted')
				ON CONFLICT (requester_id, requestee_id) DO UPDATE SET status = 'accepted'
			`, me, req.RequesterID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Request{}, fmt.Errorf("respond to %s request %d: %w", k, requestID, err)
	}
	return req, nil
}

// RequestStatus reports the status of the from -> to request, or StatusNone.
func (s *Store) RequestStatus(ctx context.Context, k Kind, from, to int) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM `+k.table()+` WHERE requester_id = $1 AND requestee_id = $2`,
		from, to).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusNone, nil
	}
	if err != nil {
		return "", fmt.Errorf("query %s status: %w", k, err)
	}
	return status, nil
}

// PendingIncoming lists pending requests of every kind addressed to me,
// newest first.
func (s *Store) PendingIncoming(ctx context.Context, me int) ([]IncomingRequest, error) {
	out := []IncomingRequest{}
	for _, k := range Kinds {
		rows, err := s.db.QueryContext(ctx, `
			SELECT r.id, r.requester_id, u.username, r.status
			FROM `+k.table()+` r
			JOIN users u ON u.id = r.requester_id
			WHERE r.requestee_id = $1 AND r.status = 'pending'
		`, me)
		if err != nil {
			return nil, fmt.Errorf("query pending %s: %w", k, err)
		}
		for rows.Next() {
			in := IncomingRequest{Kind: k}
			if err := rows.Scan(&in.RequestID, &in.RequesterID, &in.RequesterUsername, &in.Status); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, in)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestID > out[j].RequestID })
	return out, nil
}

// Outcomes lists the answered requests I sent, newest first.
func (s *Store) Outcomes(ctx context.Context, me int) ([]Outcome, error) {
	out := []Outcome{}
	for _, k := range Kinds {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, message FROM `+k.table()+` WHERE requester_id = $1 AND message IS NOT NULL`, me)
		if err != nil {
			return nil, fmt.Errorf("query %s outcomes: %w", k, err)
		}
		for rows.Next() {
			o := Outcome{Kind: k}
			if err := rows.Scan(&o.RequestID, &o.Message); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, o)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestID > out[j].RequestID })
	return out, nil
}

// NotificationCount is the number of pending requests addressed to me plus
// the number of my requests that have been answered.
func (s *Store) NotificationCount(ctx context.Context, me int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM photo_reveals  WHERE requestee_id = $1 AND status = 'pending') +
			(SELECT COUNT(*) FROM contact_shares WHERE requestee_id = $1 AND status = 'pending') +
			(SELECT COUNT(*) FROM photo_reveals  WHERE requester_id = $1 AND message IS NOT NULL) +
			(SELECT COUNT(*) FROM contact_shares WHERE requester_id = $1 AND message IS NOT NULL)
	`, me).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

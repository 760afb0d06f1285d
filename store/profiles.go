package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/affinity/matching"
	"github.com/lib/pq"
)

// NewUser is a registration as persisted.
type NewUser struct {
	Username     string
	PasswordHash string
	Name         string
	Age          int
	Gender       string
	LookingFor   []string
	Location     string
}

// UserProfile is the full stored profile of a user.
type UserProfile struct {
	ID         int      `json:"id"`
	Username   string   `json:"username"`
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	LookingFor []string `json:"looking_for"`
	Location   string   `json:"location"`
	About      string   `json:"about"`
	Email      string   `json:"email"`
	Tel        string   `json:"tel"`
	Instagram  string   `json:"instagram"`
	Telegram   string   `json:"telegram"`
}

// Matchable projects the profile onto what the matcher consumes.
func (p UserProfile) Matchable() matching.Profile {
	return matching.Profile{ID: p.ID, Bio: p.About, Name: p.Name, Age: p.Age, Location: p.Location}
}

// ProfileUpdate replaces every editable profile field.
type ProfileUpdate struct {
	Name       string
	Age        int
	Gender     string
	LookingFor []string
	Location   string
	About      string
	Email      string
	Tel        string
	Instagram  string
	Telegram   string
}

const userColumns = `id, username, name, age, gender, looking_for, location, COALESCE(about, ''),
	email, tel, instagram, telegram`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserProfile(row rowScanner) (UserProfile, error) {
	var p UserProfile
	err := row.Scan(&p.ID, &p.Username, &p.Name, &p.Age, &p.Gender, pq.Array(&p.LookingFor),
		&p.Location, &p.About, &p.Email, &p.Tel, &p.Instagram, &p.Telegram)
	if p.LookingFor == nil {
		p.LookingFor = []string{}
	}
	return p, err
}

// CreateUser inserts a new account and returns its id.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (int, error) {
	if u.LookingFor == nil {
		u.LookingFor = []string{}
	}
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, name, age, gender, looking_for, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Username, u.PasswordHash, u.Name, u.Age, u.Gender, pq.Array(u.LookingFor), u.Location).Scan(&id)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// Credentials returns the id and password hash stored for username.
func (s *Store) Credentials(ctx context.Context, username string) (int, string, error) {
	var id int
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`, username,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("query credentials: %w", err)
	}
	return id, hash, nil
}

func (s *Store) FetchUser(ctx context.Context, id int) (UserProfile, error) {
	p, err := scanUserProfile(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("query user %d: %w", id, err)
	}
	return p, nil
}

// FetchUsers loads every user in ids. Unknown ids are absent from the map.
func (s *Store) FetchUsers(ctx context.Context, ids []int) (map[int]UserProfile, error) {
	out := make(map[int]UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, int64Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanUserProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *Store) UpdateProfile(ctx context.Context, id int, u ProfileUpdate) error {
	if u.LookingFor == nil {
		u.LookingFor = []string{}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, age = $2, gender = $3, looking_for = $4, location = $5, about = $6,
		    email = $7, tel = $8, instagram = $9, telegram = $10
		WHERE id = $11
	`, u.Name, u.Age, u.Gender, pq.Array(u.LookingFor), u.Location, u.About,
		u.Email, u.Tel, u.Instagram, u.Telegram, id)
	if err != nil {
		return fmt.Errorf("update profile %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchProfile returns the matchable view of one user.
func (s *Store) FetchProfile(ctx context.Context, id int) (matching.Profile, error) {
	u, err := s.FetchUser(ctx, id)
	if err != nil {
		return matching.Profile{}, err
	}
	return u.Matchable(), nil
}

// FetchAllProfiles returns the matchable view of every user ordered by id,
// which is the corpus order ranking ties fall back on.
func (s *Store) FetchAllProfiles(ctx context.Context) ([]matching.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(about, ''), name, age, location
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []matching.Profile{}
	for rows.Next() {
		var p matching.Profile
		if err := rows.Scan(&p.ID, &p.Bio, &p.Name, &p.Age, &p.Location); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Photos lists the photo file names of a user in upload order.
func (s *Store) Photos(ctx context.Context, userID int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename FROM photos WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	photos := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		photos = append(photos, name)
	}
	return photos, rows.Err()
}

// FirstPhotos returns the earliest photo of each user in ids that has one.
func (s *Store) FirstPhotos(ctx context.Context, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (user_id) user_id, filename
		FROM photos
		WHERE user_id = ANY($1)
		ORDER BY user_id, id
	`, int64Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query first photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func int64Array(ids []int) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// Command db-seeder fills the database with deterministic fake users, saved
// profiles and disclosure requests for local development.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gitea.kood.tech/petrkubec/affinity/config"
	"gitea.kood.tech/petrkubec/affinity/logger"
	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type options struct {
	Count       int
	Seed        int64
	Truncate    bool
	SaveRate    float64 // proportion of other users each user saves
	RequestRate float64 // proportion of other users each user sends a disclosure request to
	Password    string  // same password for everyone (easy login)
}

var (
	// Used for flags.
	cfgFile string
	debug   bool
	jsonLog bool
	opts    options

	rootCmd = &cobra.Command{
		Use:   "db-seeder",
		Short: "db-seeder creates fake users for local development",
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Insert fake users, saves and disclosure requests in one transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return seed(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (defaults and environment only when unset)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLog, "json", "j", false, "json format for logging")

	seedCmd.Flags().IntVar(&opts.Count, "count", 300, "Number of users to create")
	seedCmd.Flags().Int64Var(&opts.Seed, "seed", 42, "RNG seed (deterministic)")
	seedCmd.Flags().BoolVar(&opts.Truncate, "truncate", false, "TRUNCATE target tables before running")
	seedCmd.Flags().Float64Var(&opts.SaveRate, "save-rate", 0.05, "Proportion of other users each user saves (0..1)")
	seedCmd.Flags().Float64Var(&opts.RequestRate, "request-rate", 0.03, "Proportion of other users each user sends a request to (0..1)")
	seedCmd.Flags().StringVar(&opts.Password, "password", "test1234", "Password assigned to all users")

	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (o options) validate() error {
	if o.Count < 1 {
		return errors.New("--count must be at least 1")
	}
	if o.SaveRate < 0 || o.SaveRate > 1 || o.RequestRate < 0 || o.RequestRate > 1 {
		return errors.New("rate flags must be in range 0..1")
	}
	if len(o.Password) < 6 {
		return errors.New("--password must be at least 6 characters")
	}
	return nil
}

func seed(ctx context.Context) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Printf("loading config: %s", err)
		return err
	}
	logger, err := logger.New(jsonLog || cfg.Log.JSON, debug || cfg.Log.Debug)
	if err != nil {
		log.Printf("creating a logger: %s", err)
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(ctx, cfg.DatabaseURL, logger.Named("store"))
	if err != nil {
		logger.Error("opening the database", zap.Error(err))
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("applying the schema", zap.Error(err))
		return err
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt: %w", err)
	}

	p := buildPlan(rand.New(rand.NewSource(opts.Seed)), opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	// One big transaction: a constraint failure leaves nothing behind.
	tx, err := st.DB().BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := apply(ctx, tx, p, string(pwHash), opts.Truncate, logger); err != nil {
		_ = tx.Rollback()
		logger.Error("seeding failed, rolled back", zap.Error(err))
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.Info("seed complete",
		zap.Int("users", len(p.users)),
		zap.Int("saves", len(p.saves)),
		zap.Int("requests", len(p.requests)),
		zap.String("login_hint", fmt.Sprintf("%s / %s", p.users[0].username, opts.Password)),
	)
	return nil
}

func apply(ctx context.Context, tx *sql.Tx, p plan, pwHash string, truncate bool, logger *zap.Logger) error {
	if truncate {
		if err := truncateAll(ctx, tx); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		logger.Info("truncated users, photos, saves, requests and similarities")
	}

	ids, err := insertUsers(ctx, tx, p.users, pwHash)
	if err != nil {
		return fmt.Errorf("insert users: %w", err)
	}
	logger.Info("inserted users", zap.Int("count", len(ids)))

	if err := insertPhotos(ctx, tx, p.users, ids); err != nil {
		return fmt.Errorf("insert photos: %w", err)
	}
	if err := insertSaves(ctx, tx, p.saves, ids); err != nil {
		return fmt.Errorf("insert saves: %w", err)
	}
	if err := insertRequests(ctx, tx, p.requests, ids); err != nil {
		return fmt.Errorf("insert requests: %w", err)
	}
	logger.Info("inserted saves and requests", zap.Int("saves", len(p.saves)), zap.Int("requests", len(p.requests)))
	return nil
}

func truncateAll(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		TRUNCATE TABLE user_matches, contact_shares, photo_reveals, saved_profiles, photos, users
		RESTART IDENTITY CASCADE
	`)
	return err
}

// --- plan ---

// Users, saves and requests refer to each other by their index in
// plan.users; database ids are only known after insertion.

type seedUser struct {
	username   string
	name       string
	age        int
	gender     string
	lookingFor []string
	location   string
	about      string
	email      string
	telegram   string
	photos     []string
}

type seedEdge struct {
	from, to int
}

type seedRequest struct {
	kind     store.Kind
	from, to int
	status   string
}

type plan struct {
	users    []seedUser
	saves    []seedEdge
	requests []seedRequest
}

func buildPlan(r *rand.Rand, o options) plan {
	var p plan
	used := make(map[string]struct{}, o.Count)
	for i := 0; i < o.Count; i++ {
		p.users = append(p.users, fakeUser(r, i, used))
	}

	seenSave := map[seedEdge]struct{}{}
	seenReq := map[seedRequest]struct{}{}
	for from := range p.users {
		for to := range p.users {
			if from == to {
				continue
			}
			if r.Float64() < o.SaveRate {
				e := seedEdge{from, to}
				if _, ok := seenSave[e]; !ok {
					seenSave[e] = struct{}{}
					p.saves = append(p.saves, e)
				}
			}
			if r.Float64() < o.RequestRate {
				req := seedRequest{kind: store.Kinds[r.Intn(len(store.Kinds))], from: from, to: to}
				if _, ok := seenReq[req]; ok {
					continue
				}
				seenReq[req] = struct{}{}
				req.status = pickStatus(r)
				p.requests = append(p.requests, req)
			}
		}
	}
	return p
}

// The first two users are fixed test accounts with overlapping bios.
var testUsers = []seedUser{
	{
		username: "user1", name: "Test User One", age: 29, gender: "female",
		lookingFor: []string{"male", "female"}, location: "Tallinn",
		about: "Weekend hiker and weekday coder. Talk to me about music, travel and board games.",
		email: "user1@test.local", telegram: "@user1",
	},
	{
		username: "user2", name: "Test User Two", age: 31, gender: "male",
		lookingFor: []string{"female"}, location: "Tallinn",
		about: "Coder who loves hiking, live music and travel. Always up for board games.",
		email: "user2@test.local", telegram: "@user2",
	},
}

func fakeUser(r *rand.Rand, i int, used map[string]struct{}) seedUser {
	if i < len(testUsers) {
		u := testUsers[i]
		used[u.username] = struct{}{}
		u.photos = []string{fmt.Sprintf("%s_1.jpg", u.username)}
		return u
	}

	first := []string{"Alex", "Sam", "Mia", "Lauri", "Noah", "Olivia", "Leo", "Emil", "Sara", "Luca", "Milla", "Mikko", "Eeva", "Niklas", "Sofia"}[r.Intn(15)]
	last := []string{"Tamm", "Saar", "Sepp", "Mägi", "Kask", "Kukk", "Rebane", "Ilves", "Pärn", "Koppel"}[r.Intn(10)]
	username := uniqueUsername(r, strings.ToLower(first), used)

	genders := []string{"female", "male", "non-binary"}
	gender := genders[r.Intn(len(genders))]
	lookingFor := []string{genders[r.Intn(2)]}
	if r.Intn(4) == 0 {
		lookingFor = []string{"female", "male"}
	}

	u := seedUser{
		username:   username,
		name:       first + " " + last,
		age:        18 + r.Intn(40),
		gender:     gender,
		lookingFor: lookingFor,
		location:   []string{"Tallinn", "Tartu", "Pärnu", "Narva", "Viljandi", "Haapsalu"}[r.Intn(6)],
		about:      sampleAbout(r),
		email:      username + "@example.com",
	}
	if r.Intn(3) == 0 {
		u.telegram = "@" + username
	}
	for n := r.Intn(4); n > 0; n-- {
		u.photos = append(u.photos, fmt.Sprintf("%s_%d.jpg", username, len(u.photos)+1))
	}
	return u
}

func uniqueUsername(r *rand.Rand, base string, used map[string]struct{}) string {
	for {
		name := fmt.Sprintf("%s%d", base, r.Intn(100000))
		if _, ok := used[name]; !ok {
			used[name] = struct{}{}
			return name
		}
	}
}

// sampleAbout joins a few interest phrases. Some users get no bio at all so
// the zero-score paths show up in the UI.
func sampleAbout(r *rand.Rand) string {
	if r.Intn(10) == 0 {
		return ""
	}
	phrases := []string{
		"Curious mind, coffee lover.",
		"Weekend hiker and weekday coder.",
		"Always learning new things.",
		"Talk to me about music and tech.",
		"Into analog photography and ramen.",
		"Board games every Friday.",
		"Trail running and sauna.",
		"Travel whenever I can.",
		"Jazz, vinyl and long walks.",
		"Cooking for friends is my thing.",
	}
	n := 1 + r.Intn(3)
	picked := make([]string, 0, n)
	for _, i := range r.Perm(len(phrases))[:n] {
		picked = append(picked, phrases[i])
	}
	return strings.Join(picked, " ")
}

func pickStatus(r *rand.Rand) string {
	switch p := r.Float64(); {
	case p < 0.5:
		return store.StatusPending
	case p < 0.8:
		return store.StatusAccepted
	default:
		return store.StatusDeclined
	}
}

// --- inserts ---

func insertUsers(ctx context.Context, tx *sql.Tx, users []seedUser, pwHash string) ([]int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO users (username, password_hash, name, age, gender, looking_for, location, about, email, telegram)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			name = EXCLUDED.name,
			about = EXCLUDED.about
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int, 0, len(users))
	for i, u := range users {
		var about *string
		if u.about != "" {
			about = &u.about
		}
		var id int
		if err := stmt.QueryRowContext(ctx, u.username, pwHash, u.name, u.age, u.gender,
			pq.Array(u.lookingFor), u.location, about, u.email, u.telegram,
		).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert user %d (%s): %w", i, u.username, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func insertPhotos(ctx context.Context, tx *sql.Tx, users []seedUser, ids []int) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("photos", "user_id", "filename"))
	if err != nil {
		return err
	}
	for i, u := range users {
		for _, name := range u.photos {
			if _, err := stmt.ExecContext(ctx, ids[i], name); err != nil {
				_ = stmt.Close()
				return err
			}
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	return stmt.Close()
}

func insertSaves(ctx context.Context, tx *sql.Tx, saves []seedEdge, ids []int) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO saved_profiles (user_id, profile_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range saves {
		if _, err := stmt.ExecContext(ctx, ids[e.from], ids[e.to]); err != nil {
			return fmt.Errorf("save %d -> %d: %w", ids[e.from], ids[e.to], err)
		}
	}
	return nil
}

// insertRequests mirrors what answering through the API does: an answered
// request carries its outcome message and an accepted one is reciprocated.
func insertRequests(ctx context.Context, tx *sql.Tx, requests []seedRequest, ids []int) error {
	for _, req := range requests {
		from, to := ids[req.from], ids[req.to]
		table := "photo_reveals"
		label := "photo reveal"
		if req.kind == store.KindContactShare {
			table, label = "contact_shares", "contact share"
		}

		var message *string
		if req.status != store.StatusPending {
			m := fmt.Sprintf("Your %s request to user %d has been %s.", label, to, req.status)
			message = &m
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (requester_id, requestee_id, status, message)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (requester_id, requestee_id) DO NOTHING
		`, from, to, req.status, message); err != nil {
			return fmt.Errorf("%s %d -> %d: %w", req.kind, from, to, err)
		}

		if req.status == store.StatusAccepted {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO `+table+` (requester_id, requestee_id, status)
				VALUES ($1, $2, 'accepted')
				ON CONFLICT (requester_id, requestee_id) DO UPDATE SET status = 'accepted'
			`, to, from); err != nil {
				return fmt.Errorf("reciprocal %s %d -> %d: %w", req.kind, to, from, err)
			}
		}
	}
	return nil
}

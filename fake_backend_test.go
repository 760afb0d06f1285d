package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"gitea.kood.tech/petrkubec/affinity/matching"
	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
	// keep /browse and /saved in a predictable order
	shuffle = func(int, func(i, j int)) {}
}

// fakeBackend is an in-memory backend with the same semantics as the
// Postgres store.
type fakeBackend struct {
	mu sync.Mutex

	nextUserID    int
	nextRequestID int
	users         map[int]store.UserProfile
	hashes        map[int]string
	photos        map[int][]string
	saved         map[int][]int
	requests      map[store.Kind][]*store.Request
	similarity    matching.SimilarityTable

	failWith error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:      map[int]store.UserProfile{},
		hashes:     map[int]string{},
		photos:     map[int][]string{},
		saved:      map[int][]int{},
		requests:   map[store.Kind][]*store.Request{},
		similarity: matching.SimilarityTable{},
	}
}

func (f *fakeBackend) CreateUser(_ context.Context, u store.NewUser) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return 0, store.ErrUsernameTaken
		}
	}
	f.nextUserID++
	id := f.nextUserID
	lookingFor := u.LookingFor
	if lookingFor == nil {
		lookingFor = []string{}
	}
	f.users[id] = store.UserProfile{
		ID: id, Username: u.Username, Name: u.Name, Age: u.Age,
		Gender: u.Gender, LookingFor: lookingFor, Location: u.Location,
	}
	f.hashes[id] = u.PasswordHash
	return id, nil
}

func (f *fakeBackend) Credentials(_ context.Context, username string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.Username == username {
			return id, f.hashes[id], nil
		}
	}
	return 0, "", store.ErrNotFound
}

func (f *fakeBackend) FetchUser(_ context.Context, id int) (store.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return store.UserProfile{}, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return store.UserProfile{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeBackend) FetchUsers(_ context.Context, ids []int) (map[int]store.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int]store.UserProfile{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, id int, p store.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Name, u.Age, u.Gender, u.Location, u.About = p.Name, p.Age, p.Gender, p.Location, p.About
	u.LookingFor = p.LookingFor
	if u.LookingFor == nil {
		u.LookingFor = []string{}
	}
	u.Email, u.Tel, u.Instagram, u.Telegram = p.Email, p.Tel, p.Instagram, p.Telegram
	f.users[id] = u
	return nil
}

func (f *fakeBackend) FetchProfile(ctx context.Context, id int) (matching.Profile, error) {
	u, err := f.FetchUser(ctx, id)
	if err != nil {
		return matching.Profile{}, err
	}
	return u.Matchable(), nil
}

func (f *fakeBackend) FetchAllProfiles(_ context.Context) ([]matching.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []matching.Profile{}
	for _, u := range f.users {
		out = append(out, u.Matchable())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBackend) FetchOutbound(_ context.Context, id int, rel matching.Relation) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []int{}
	switch rel {
	case matching.RelationSaved:
		out = append(out, f.saved[id]...)
	case matching.RelationPhotoReveal, matching.RelationContactShare:
		for _, r := range f.requests[store.Kind(rel)] {
			if r.RequesterID == id {
				out = append(out, r.RequesteeID)
			}
		}
	default:
		return nil, fmt.Errorf("unknown relation %q", rel)
	}
	return out, nil
}

func (f *fakeBackend) Photos(_ context.Context, id int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.photos[id]...), nil
}

func (f *fakeBackend) FirstPhotos(_ context.Context, ids []int) (map[int]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int]string{}
	for _, id := range ids {
		if p := f.photos[id]; len(p) > 0 {
			out[id] = p[0]
		}
	}
	return out, nil
}

func (f *fakeBackend) ToggleSaved(_ context.Context, userID, targetID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[targetID]; !ok {
		return false, store.ErrNotFound
	}
	list := f.saved[userID]
	for i, id := range list {
		if id == targetID {
			f.saved[userID] = append(list[:i:i], list[i+1:]...)
			return false, nil
		}
	}
	f.saved[userID] = append(list, targetID)
	return true, nil
}

func (f *fakeBackend) find(k store.Kind, from, to int) *store.Request {
	for _, r := range f.requests[k] {
		if r.RequesterID == from && r.RequesteeID == to {
			return r
		}
	}
	return nil
}

func (f *fakeBackend) SendRequest(_ context.Context, k store.Kind, from, to int) (store.Request, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[to]; !ok {
		return store.Request{}, false, store.ErrNotFound
	}
	if r := f.find(k, from, to); r != nil {
		return *r, false, nil
	}
	f.nextRequestID++
	r := &store.Request{ID: f.nextRequestID, Kind: k, RequesterID: from, RequesteeID: to, Status: store.StatusPending}
	f.requests[k] = append(f.requests[k], r)
	return *r, true, nil
}

func (f *fakeBackend) RespondToRequest(_ context.Context, k store.Kind, requestID, me int, accept bool) (store.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := store.StatusDeclined
	if accept {
		target = store.StatusAccepted
	}
	var req *store.Request
	for _, r := range f.requests[k] {
		if r.ID == requestID {
			req = r
		}
	}
	if req == nil || req.RequesteeID != me {
		return store.Request{}, store.ErrNotFound
	}
	switch req.Status {
	case target:
		return *req, nil
	case store.StatusPending:
	default:
		return store.Request{}, store.ErrInvalidState
	}
	req.Status = target
	req.Message = fmt.Sprintf("Your %s request to user %d has been %s.",
		strings.ReplaceAll(string(k), "_", " "), me, target)
	if accept {
		if back := f.find(k, me, req.RequesterID); back != nil {
			back.Status = store.StatusAccepted
		} else {
			f.nextRequestID++
			f.requests[k] = append(f.requests[k], &store.Request{
				ID: f.nextRequestID, Kind: k, RequesterID: me, RequesteeID: req.RequesterID, Status: store.StatusAccepted,
			})
		}
	}
	return *req, nil
}

func (f *fakeBackend) RequestStatus(_ context.Context, k store.Kind, from, to int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.find(k, from, to); r != nil {
		return r.Status, nil
	}
	return store.StatusNone, nil
}

func (f *fakeBackend) PendingIncoming(_ context.Context, me int) ([]store.IncomingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.IncomingRequest{}
	for _, k := range store.Kinds {
		for _, r := range f.requests[k] {
			if r.RequesteeID == me && r.Status == store.StatusPending {
				out = append(out, store.IncomingRequest{
					RequestID: r.ID, Kind: k, RequesterID: r.RequesterID,
					RequesterUsername: f.users[r.RequesterID].Username, Status: r.Status,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestID > out[j].RequestID })
	return out, nil
}

func (f *fakeBackend) Outcomes(_ context.Context, me int) ([]store.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Outcome{}
	for _, k := range store.Kinds {
		for _, r := range f.requests[k] {
			if r.RequesterID == me && r.Message != "" {
				out = append(out, store.Outcome{RequestID: r.ID, Kind: k, Message: r.Message})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestID > out[j].RequestID })
	return out, nil
}

func (f *fakeBackend) NotificationCount(ctx context.Context, me int) (int, error) {
	in, _ := f.PendingIncoming(ctx, me)
	out, _ := f.Outcomes(ctx, me)
	return len(in) + len(out), nil
}

func (f *fakeBackend) SimilarityFrom(_ context.Context, from int) (matching.SimilarityTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := matching.SimilarityTable{}
	for p, v := range f.similarity {
		if p.From == from {
			out[p] = v
		}
	}
	return out, nil
}

// --- test helpers ---

type testUser struct {
	ID    int
	Token string
}

// addUser creates a user with the password "password123" and the given bio.
func (f *fakeBackend) addUser(t *testing.T, username, bio string) testUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	id, err := f.CreateUser(context.Background(), store.NewUser{
		Username: username, PasswordHash: string(hash), Name: strings.ToUpper(username[:1]) + username[1:],
		Age: 30, Gender: "female", Location: "Tallinn",
	})
	require.NoError(t, err)
	f.mu.Lock()
	u := f.users[id]
	u.About = bio
	f.users[id] = u
	f.mu.Unlock()

	token, err := issueToken(id)
	require.NoError(t, err)
	return testUser{ID: id, Token: token}
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

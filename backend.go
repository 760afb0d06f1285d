package main

import (
	"context"

	"gitea.kood.tech/petrkubec/affinity/matching"
	"gitea.kood.tech/petrkubec/affinity/store"
)

// backend is everything the HTTP handlers need from persistence.
// *store.Store implements it.
type backend interface {
	matching.RelationSource

	CreateUser(ctx context.Context, u store.NewUser) (int, error)
	Credentials(ctx context.Context, username string) (int, string, error)
	FetchUser(ctx context.Context, id int) (store.UserProfile, error)
	FetchUsers(ctx context.Context, ids []int) (map[int]store.UserProfile, error)
	UpdateProfile(ctx context.Context, id int, u store.ProfileUpdate) error

	FetchProfile(ctx context.Context, id int) (matching.Profile, error)
	FetchAllProfiles(ctx context.Context) ([]matching.Profile, error)
	Photos(ctx context.Context, userID int) ([]string, error)
	FirstPhotos(ctx context.Context, ids []int) (map[int]string, error)

	ToggleSaved(ctx context.Context, userID, targetID int) (bool, error)

	SendRequest(ctx context.Context, k store.Kind, from, to int) (store.Request, bool, error)
	RespondToRequest(ctx context.Context, k store.Kind, requestID, me int, accept bool) (store.Request, error)
	RequestStatus(ctx context.Context, k store.Kind, from, to int) (string, error)
	PendingIncoming(ctx context.Context, me int) ([]store.IncomingRequest, error)
	Outcomes(ctx context.Context, me int) ([]store.Outcome, error)
	NotificationCount(ctx context.Context, me int) (int, error)

	SimilarityFrom(ctx context.Context, from int) (matching.SimilarityTable, error)
}

var _ backend = (*store.Store)(nil)

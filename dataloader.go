package main

import (
	"context"
	"errors"
	"time"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

const loaderWait = 16 * time.Millisecond

// DataLoaders batches the per-user lookups of one request.
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[int, store.UserProfile]
	PhotoLoader   *dataloader.Loader[int, string]
}

func NewDataLoaders(b backend) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(profileBatchFn(b), dataloader.WithWait[int, store.UserProfile](loaderWait)),
		PhotoLoader:   dataloader.NewBatchedLoader(photoBatchFn(b), dataloader.WithWait[int, string](loaderWait)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn loads users in one query. Unknown ids resolve to
// store.ErrNotFound.
func profileBatchFn(b backend) dataloader.BatchFunc[int, store.UserProfile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[store.UserProfile] {
		results := make([]*dataloader.Result[store.UserProfile], len(keys))

		users, err := b.FetchUsers(ctx, keys)
		for i, key := range keys {
			switch u, ok := users[key]; {
			case err != nil:
				results[i] = &dataloader.Result[store.UserProfile]{Error: err}
			case !ok:
				results[i] = &dataloader.Result[store.UserProfile]{Error: store.ErrNotFound}
			default:
				results[i] = &dataloader.Result[store.UserProfile]{Data: u}
			}
		}
		return results
	}
}

// photoBatchFn loads the first photo of each user. Users without photos get
// an empty name.
func photoBatchFn(b backend) dataloader.BatchFunc[int, string] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[string] {
		results := make([]*dataloader.Result[string], len(keys))

		photos, err := b.FirstPhotos(ctx, keys)
		for i, key := range keys {
			results[i] = &dataloader.Result[string]{Data: photos[key], Error: err}
		}
		return results
	}
}

// loadProfiles resolves ids through the request loaders, dropping ids that
// no longer exist. Order follows ids.
func loadProfiles(ctx context.Context, ids []int) ([]store.UserProfile, map[int]string, error) {
	dl := GetDataLoadersFromContext(ctx)
	if dl == nil {
		return nil, nil, errors.New("dataloaders missing from context")
	}

	profileThunk := dl.ProfileLoader.LoadMany(ctx, ids)
	photoThunk := dl.PhotoLoader.LoadMany(ctx, ids)

	users, errs := profileThunk()
	for _, err := range errs {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, nil, err
		}
	}
	photoNames, errs := photoThunk()
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	out := make([]store.UserProfile, 0, len(users))
	photos := make(map[int]string, len(ids))
	for i, u := range users {
		if u.ID == 0 {
			continue
		}
		out = append(out, u)
		if i < len(photoNames) {
			photos[u.ID] = photoNames[i]
		}
	}
	return out, photos, nil
}

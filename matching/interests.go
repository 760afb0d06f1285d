package matching

import (
	"context"
	"fmt"
	"sort"
)

// InterestsOf returns the ids a profile has shown interest in: the union of
// its outbound photo-reveal requests, contact-share requests and explicit
// saves. The three relations are read every time, the union is never stored.
// The result is sorted ascending.
func InterestsOf(ctx context.Context, src RelationSource, profileID int) ([]int, error) {
	seen := make(map[int]struct{})
	for _, rel := range Relations {
		targets, err := src.FetchOutbound(ctx, profileID, rel)
		if err != nil {
			return nil, fmt.Errorf("fetch %s targets: %w", rel, err)
		}
		for _, id := range targets {
			seen[id] = struct{}{}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// IDSet builds a membership set from ids.
func IDSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

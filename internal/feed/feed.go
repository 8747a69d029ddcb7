// Package feed lists posted memes and toggles upvotes.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mikequentel/memeboard/internal/model"
	"github.com/mikequentel/memeboard/internal/store"
)

// Backend is the part of the store the feed needs.
type Backend interface {
	Snapshot(ctx context.Context) (store.Snapshot, error)
	Transact(ctx context.Context, ops ...store.Op) error
}

type Item struct {
	model.Meme
	HasVoted bool `json:"hasVoted"`
}

type Service struct {
	backend Backend
	log     *slog.Logger
	now     func() time.Time
}

func New(b Backend, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{backend: b, log: log, now: time.Now}
}

// List returns every meme, newest first, marked with whether viewerID has
// upvoted it. An empty viewerID marks nothing.
func (s *Service) List(ctx context.Context, viewerID string) ([]Item, error) {
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	voted := map[string]bool{}
	if viewerID != "" {
		for _, v := range snap.Votes {
			if v.UserID == viewerID {
				voted[v.MemeID] = true
			}
		}
	}
	items := make([]Item, 0, len(snap.Memes))
	for _, m := range snap.Memes {
		items = append(items, Item{Meme: m, HasVoted: voted[m.ID]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Toggle is the outcome of ToggleUpvote.
type Toggle struct {
	Voted       bool `json:"voted"`
	UpvoteCount int  `json:"upvoteCount"`
}

// ToggleUpvote removes userID's vote on memeID if there is one, otherwise
// adds one, then patches the counter from the count read beforehand. The
// two writes are separate transactions and the counter is not re-read, so
// concurrent voters can leave it off until the next toggle.
func (s *Service) ToggleUpvote(ctx context.Context, userID, memeID string) (Toggle, error) {
	if userID == "" {
		return Toggle{}, model.ErrNotSignedIn
	}
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return Toggle{}, fmt.Errorf("load votes: %w", err)
	}
	meme, found := snap.Meme(memeID)

	var res Toggle
	if v, ok := snap.VoteOf(memeID, userID); ok {
		if err := s.backend.Transact(ctx, store.DeleteVote{ID: v.ID}); err != nil {
			return Toggle{}, err
		}
		res = Toggle{Voted: false, UpvoteCount: max(0, meme.UpvoteCount-1)}
	} else {
		vote := model.Vote{
			ID:        uuid.NewString(),
			MemeID:    memeID,
			UserID:    userID,
			CreatedAt: s.now().UnixMilli(),
		}
		if err := s.backend.Transact(ctx, store.CreateVote{Vote: vote}); err != nil {
			return Toggle{}, err
		}
		res = Toggle{Voted: true, UpvoteCount: meme.UpvoteCount + 1}
	}

	if !found {
		s.log.Warn("vote on unknown meme", "meme", memeID, "user", userID)
		return Toggle{Voted: res.Voted}, nil
	}
	if err := s.backend.Transact(ctx, store.SetUpvoteCount{MemeID: memeID, Count: res.UpvoteCount}); err != nil {
		return Toggle{}, err
	}
	s.log.Debug("upvote toggled", "meme", memeID, "user", userID, "voted", res.Voted, "count", res.UpvoteCount)
	return res, nil
}

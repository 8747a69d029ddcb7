package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mikequentel/memeboard/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := New(context.Background(), db, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func meme(id string, created int64) model.Meme {
	return model.Meme{
		ID:         id,
		ImageURL:   "http://blobs/" + id + ".png",
		Text:       "top\nbottom",
		TextConfig: `[{"x":1,"y":2,"size":40,"color":"#ffffff"}]`,
		CreatedAt:  created,
		UserID:     "u1",
	}
}

// ===================== Transact / Snapshot =====================

func TestSnapshot_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		if err := s.Transact(ctx, CreateMeme{Meme: meme(id, int64(100+i))}); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, m := range snap.Memes {
		got = append(got, m.ID)
	}
	if strings.Join(got, ",") != "c,b,a" {
		t.Errorf("order = %v, want c,b,a", got)
	}
}

func TestTransact_RoundTripsMeme(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := meme("m1", 42)
	want.UpvoteCount = 3
	if err := s.Transact(ctx, CreateMeme{Meme: want}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Meme(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if _, err := s.Meme(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing meme err = %v", err)
	}
}

func TestTransact_DuplicateVoteRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Transact(ctx, CreateMeme{Meme: meme("m1", 1)}); err != nil {
		t.Fatal(err)
	}
	v := model.Vote{ID: "v1", MemeID: "m1", UserID: "u2", CreatedAt: 5}
	if err := s.Transact(ctx, CreateVote{Vote: v}); err != nil {
		t.Fatal(err)
	}

	dup := model.Vote{ID: "v2", MemeID: "m1", UserID: "u2", CreatedAt: 6}
	err := s.Transact(ctx, SetUpvoteCount{MemeID: "m1", Count: 7}, CreateVote{Vote: dup})
	var pe *model.PersistenceWriteError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceWriteError", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Votes) != 1 {
		t.Errorf("votes = %d, want 1", len(snap.Votes))
	}
	if snap.Memes[0].UpvoteCount != 0 {
		t.Errorf("upvote count = %d, want rollback to 0", snap.Memes[0].UpvoteCount)
	}
}

func TestTransact_DeleteVote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := model.Vote{ID: "v1", MemeID: "m1", UserID: "u2", CreatedAt: 5}
	if err := s.Transact(ctx, CreateVote{Vote: v}); err != nil {
		t.Fatal(err)
	}
	if err := s.Transact(ctx, DeleteVote{ID: "v1"}); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Snapshot(ctx)
	if _, ok := snap.VoteOf("m1", "u2"); ok {
		t.Error("vote still present")
	}
}

func TestTransact_SetUpvoteCountUnknownMeme(t *testing.T) {
	s := newTestStore(t)
	err := s.Transact(context.Background(), SetUpvoteCount{MemeID: "ghost", Count: 1})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ===================== Subscribe =====================

func TestSubscribe_NotifiedAfterCommit(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	if err := s.Transact(context.Background(), CreateMeme{Meme: meme("m1", 1)}, CreateVote{Vote: model.Vote{ID: "v", MemeID: "m1", UserID: "u"}}); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-ch:
		if strings.Join(c.Collections, ",") != "memes,votes" {
			t.Errorf("collections = %v", c.Collections)
		}
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}

	// failed transactions are silent.
	_ = s.Transact(context.Background(), CreateMeme{Meme: meme("m1", 1)})
	select {
	case c := <-ch:
		t.Errorf("unexpected change %+v", c)
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open")
	}
	// publishing with no subscribers must not panic.
	if err := s.Transact(context.Background(), CreateMeme{Meme: meme("m1", 1)}); err != nil {
		t.Fatal(err)
	}
}

// ===================== DirBlobs =====================

func TestDirBlobs_Upload(t *testing.T) {
	dir := t.TempDir()
	b := DirBlobs{Dir: dir, BaseURL: "http://localhost:8080/blobs/"}

	url, err := b.Upload(context.Background(), "memes/1-abc def.png", []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://localhost:8080/blobs/memes/1-abc%20def.png" {
		t.Errorf("url = %s", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "memes", "1-abc def.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png" {
		t.Errorf("data = %q", data)
	}
}

func TestDirBlobs_RejectsEscapes(t *testing.T) {
	b := DirBlobs{Dir: t.TempDir(), BaseURL: "http://x"}
	for _, name := range []string{"", "/etc/passwd", "../up.png", "a/../../up.png", `a\b.png`, "."} {
		_, err := b.Upload(context.Background(), name, []byte("x"))
		var pe *model.PersistenceWriteError
		if !errors.As(err, &pe) {
			t.Errorf("Upload(%q) err = %v, want PersistenceWriteError", name, err)
		}
	}
}

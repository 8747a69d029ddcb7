// Package store is the persistence boundary: memes and votes in sqlite,
// written through atomic transactions, with change notifications for live
// feeds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mikequentel/memeboard/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS memes (
	id           TEXT PRIMARY KEY,
	image_url    TEXT NOT NULL,
	text         TEXT NOT NULL,
	text_config  TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	user_id      TEXT NOT NULL,
	upvote_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS memes_created_at ON memes (created_at DESC);

CREATE TABLE IF NOT EXISTS votes (
	id         TEXT PRIMARY KEY,
	meme_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS votes_meme_user ON votes (meme_id, user_id);
`

// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	broker *broker
	log    *slog.Logger
}

// OpenDB opens a sqlite database. ":memory:" gets a single connection so
// every query sees the same database.
func OpenDB(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// New migrates db and returns a Store over it. The caller keeps ownership
// of db.
func New(ctx context.Context, db *sql.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, broker: newBroker(), log: log}, nil
}

// DB exposes the underlying handle for packages that keep their own tables.
func (s *Store) DB() *sql.DB { return s.db }

// Snapshot is the full feed state at one point in time.
type Snapshot struct {
	Memes []model.Meme
	Votes []model.Vote
}

// VoteOf returns the vote userID cast on memeID, if any.
func (s Snapshot) VoteOf(memeID, userID string) (model.Vote, bool) {
	for _, v := range s.Votes {
		if v.MemeID == memeID && v.UserID == userID {
			return v, true
		}
	}
	return model.Vote{}, false
}

// Meme returns the meme with id, if present.
func (s Snapshot) Meme(id string) (model.Meme, bool) {
	for _, m := range s.Memes {
		if m.ID == id {
			return m, true
		}
	}
	return model.Meme{}, false
}

// Snapshot reads every meme (newest first) and vote.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return snap, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
SELECT id, image_url, text, text_config, created_at, user_id, upvote_count
FROM memes
ORDER BY created_at DESC, id`)
	if err != nil {
		return snap, fmt.Errorf("query memes: %w", err)
	}
	for rows.Next() {
		var m model.Meme
		if err := rows.Scan(&m.ID, &m.ImageURL, &m.Text, &m.TextConfig, &m.CreatedAt, &m.UserID, &m.UpvoteCount); err != nil {
			rows.Close()
			return snap, err
		}
		snap.Memes = append(snap.Memes, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, meme_id, user_id, created_at FROM votes ORDER BY created_at, id`)
	if err != nil {
		return snap, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v model.Vote
		if err := rows.Scan(&v.ID, &v.MemeID, &v.UserID, &v.CreatedAt); err != nil {
			return snap, err
		}
		snap.Votes = append(snap.Votes, v)
	}
	return snap, rows.Err()
}

// Meme reads a single meme.
func (s *Store) Meme(ctx context.Context, id string) (model.Meme, error) {
	var m model.Meme
	err := s.db.QueryRowContext(ctx, `
SELECT id, image_url, text, text_config, created_at, user_id, upvote_count
FROM memes WHERE id = ?`, id).Scan(&m.ID, &m.ImageURL, &m.Text, &m.TextConfig, &m.CreatedAt, &m.UserID, &m.UpvoteCount)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("meme %s: %w", id, model.ErrNotFound)
	}
	return m, err
}

// Transact applies ops in one transaction. Nothing is written unless every
// op succeeds. Failures are *model.PersistenceWriteError.
func (s *Store) Transact(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.PersistenceWriteError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	names := make([]string, 0, len(ops))
	for _, op := range ops {
		if err := op.apply(ctx, tx); err != nil {
			return &model.PersistenceWriteError{Op: op.String(), Err: err}
		}
		names = append(names, op.String())
	}
	if err := tx.Commit(); err != nil {
		return &model.PersistenceWriteError{Op: "commit", Err: err}
	}
	s.log.Debug("transact", "ops", strings.Join(names, ","))
	s.broker.publish(collections(ops))
	return nil
}

// Subscribe returns a channel that receives a Change after every committed
// transaction, and a func that ends the subscription.
func (s *Store) Subscribe() (<-chan Change, func()) {
	return s.broker.subscribe()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/mikequentel/memeboard/internal/model"
)

const (
	Memes = "memes"
	Votes = "votes"
)

// Op is one write inside a Transact call.
type Op interface {
	fmt.Stringer
	Collection() string
	apply(ctx context.Context, tx *sql.Tx) error
}

type CreateMeme struct{ Meme model.Meme }

func (CreateMeme) Collection() string { return Memes }
func (o CreateMeme) String() string   { return "create meme " + o.Meme.ID }

func (o CreateMeme) apply(ctx context.Context, tx *sql.Tx) error {
	m := o.Meme
	_, err := tx.ExecContext(ctx, `
INSERT INTO memes (id, image_url, text, text_config, created_at, user_id, upvote_count)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ImageURL, m.Text, m.TextConfig, m.CreatedAt, m.UserID, m.UpvoteCount)
	return err
}

// SetUpvoteCount overwrites a meme's counter with a value the caller
// computed.
type SetUpvoteCount struct {
	MemeID string
	Count  int
}

func (SetUpvoteCount) Collection() string { return Memes }
func (o SetUpvoteCount) String() string {
	return fmt.Sprintf("set upvotes %s=%d", o.MemeID, o.Count)
}

func (o SetUpvoteCount) apply(ctx context.Context, tx *sql.Tx) error {
	res, err := tx.ExecContext(ctx, `UPDATE memes SET upvote_count = ? WHERE id = ?`, o.Count, o.MemeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("meme %s: %w", o.MemeID, model.ErrNotFound)
	}
	return nil
}

type CreateVote struct{ Vote model.Vote }

func (CreateVote) Collection() string { return Votes }
func (o CreateVote) String() string   { return "create vote " + o.Vote.ID }

func (o CreateVote) apply(ctx context.Context, tx *sql.Tx) error {
	v := o.Vote
	_, err := tx.ExecContext(ctx, `INSERT INTO votes (id, meme_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		v.ID, v.MemeID, v.UserID, v.CreatedAt)
	return err
}

type DeleteVote struct{ ID string }

func (DeleteVote) Collection() string { return Votes }
func (o DeleteVote) String() string   { return "delete vote " + o.ID }

func (o DeleteVote) apply(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE id = ?`, o.ID)
	return err
}

func collections(ops []Op) []string {
	seen := map[string]bool{}
	var out []string
	for _, op := range ops {
		c := op.Collection()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

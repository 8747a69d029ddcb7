// Package auth signs users in with one-time codes sent by email and keeps
// their sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikequentel/memeboard/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS magic_codes (
	email      TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
`

const (
	CodeLength        = 6
	DefaultCodeTTL    = 10 * time.Minute
	DefaultSessionTTL = 30 * 24 * time.Hour
	MaxAttempts       = 5

	tokenBytes = 32
)

var ErrSessionNotFound = errors.New("session not found")

var reCode = regexp.MustCompile(`^[0-9]{6}$`)

// Session is a signed-in user.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Options struct {
	CodeTTL    time.Duration
	SessionTTL time.Duration
	// Now replaces the clock in tests.
	Now func() time.Time
}

type Service struct {
	db     *sql.DB
	mailer Mailer
	log    *slog.Logger

	codeTTL    time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// New migrates the auth tables in db and returns a Service sending codes
// through mailer.
func New(ctx context.Context, db *sql.DB, mailer Mailer, log *slog.Logger, opts Options) (*Service, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate auth: %w", err)
	}
	s := &Service{
		db:         db,
		mailer:     mailer,
		log:        log,
		codeTTL:    opts.CodeTTL,
		sessionTTL: opts.SessionTTL,
		now:        opts.Now,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = DefaultCodeTTL
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// NormalizeEmail returns the bare lowercase address.
func NormalizeEmail(email string) (string, error) {
	a, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", err
	}
	return strings.ToLower(a.Address), nil
}

// SendCode issues a fresh code for email, replacing any earlier one, and
// mails it.
func (s *Service) SendCode(ctx context.Context, email string) error {
	addr, err := NormalizeEmail(email)
	if err != nil {
		return &model.AuthError{Msg: "Please enter a valid email address", Err: err}
	}
	code, err := generateCode()
	if err != nil {
		return &model.AuthError{Msg: "Failed to send magic code", Err: err}
	}
	expires := s.now().Add(s.codeTTL).UnixMilli()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO magic_codes (email, code, expires_at, attempts) VALUES (?, ?, ?, 0)
ON CONFLICT(email) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at, attempts = 0`,
		addr, code, expires)
	if err != nil {
		return &model.AuthError{Msg: "Failed to send magic code", Err: err}
	}
	if err := s.mailer.SendCode(ctx, addr, code); err != nil {
		return &model.AuthError{Msg: "Failed to send magic code", Err: err}
	}
	s.log.Info("magic code sent", "email", addr)
	return nil
}

// VerifyCode consumes a matching code and opens a session, creating the
// user on first sign-in. A wrong code can be retried until the code
// expires or runs out of attempts.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (Session, error) {
	addr, err := NormalizeEmail(email)
	if err != nil {
		return Session{}, &model.AuthError{Msg: "Please enter a valid email address", Err: err}
	}
	code = strings.TrimSpace(code)
	if !reCode.MatchString(code) {
		return Session{}, &model.AuthError{Msg: "Invalid code. Please try again."}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var want string
	var expires int64
	var attempts int
	err = tx.QueryRowContext(ctx, `SELECT code, expires_at, attempts FROM magic_codes WHERE email = ?`, addr).
		Scan(&want, &expires, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, &model.AuthError{Msg: "Invalid code. Please try again."}
	}
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	if now.UnixMilli() > expires || attempts >= MaxAttempts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM magic_codes WHERE email = ?`, addr); err != nil {
			return Session{}, err
		}
		if err := tx.Commit(); err != nil {
			return Session{}, err
		}
		return Session{}, &model.AuthError{Msg: "Code expired. Please request a new one."}
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(want)) != 1 {
		if _, err := tx.ExecContext(ctx, `UPDATE magic_codes SET attempts = attempts + 1 WHERE email = ?`, addr); err != nil {
			return Session{}, err
		}
		if err := tx.Commit(); err != nil {
			return Session{}, err
		}
		return Session{}, &model.AuthError{Msg: "Invalid code. Please try again."}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM magic_codes WHERE email = ?`, addr); err != nil {
		return Session{}, err
	}

	userID, err := ensureUser(ctx, tx, addr, now)
	if err != nil {
		return Session{}, fmt.Errorf("ensure user: %w", err)
	}
	token, err := generateToken()
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Token:     token,
		UserID:    userID,
		Email:     addr,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), userID, now.UnixMilli(), sess.ExpiresAt.UnixMilli())
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	s.log.Info("signed in", "user", userID)
	return sess, nil
}

func ensureUser(ctx context.Context, tx *sql.Tx, email string, now time.Time) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	_, err = tx.ExecContext(ctx, `INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`, id, email, now.UnixMilli())
	return id, err
}

// Session resolves a session token.
func (s *Service) Session(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	var sess Session
	var created, expires int64
	err := s.db.QueryRowContext(ctx, `
SELECT s.user_id, u.email, s.created_at, s.expires_at
FROM sessions s JOIN users u ON u.id = s.user_id
WHERE s.token_hash = ?`, hashToken(token)).Scan(&sess.UserID, &sess.Email, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if s.now().UnixMilli() > expires {
		if err := s.SignOut(ctx, token); err != nil {
			s.log.Warn("delete expired session", "user", sess.UserID, "err", err)
		}
		return Session{}, ErrSessionNotFound
	}
	sess.Token = token
	sess.CreatedAt = time.UnixMilli(created)
	sess.ExpiresAt = time.UnixMilli(expires)
	return sess, nil
}

// User looks up a user by id.
func (s *Service) User(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `SELECT id, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return u, err
}

// SignOut ends a session. Unknown tokens are not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, hashToken(token))
	return err
}

// PurgeExpired deletes expired codes and sessions.
func (s *Service) PurgeExpired(ctx context.Context) error {
	now := s.now().UnixMilli()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM magic_codes WHERE expires_at < ?`, now); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	return err
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

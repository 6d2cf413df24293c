package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store persists users, opaque API tokens, per-URI grants, and the audit
// trail. It speaks sqlite, mysql, or postgres through sqlx.
type Store struct {
	db     *sqlx.DB
	driver string
}

// driverName maps the config driver to the registered database/sql driver.
func driverName(driver string) (string, error) {
	switch driver {
	case "sqlite", "":
		return "sqlite", nil
	case "mysql":
		return "mysql", nil
	case "postgres":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects to the configured database, applies pool settings, and runs
// migrations. Pass an empty DSN with the sqlite driver for in-memory.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	name, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if name == "sqlite" {
		if dsn == "" {
			dsn = ":memory:"
		} else {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sqlx.Connect(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			db.SetConnMaxLifetime(d)
		}
	}

	s := &Store{db: db, driver: name}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HashPassword returns the SHA-256 hex digest stored for user passwords.
func HashPassword(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// NewOpaqueToken generates a fresh opaque API-token value: a random
// 128-bit UUID encoded as 32 hex characters.
func NewOpaqueToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a new user. The password must already be hashed.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.Created = now
	u.Updated = now

	q := s.db.Rebind(`INSERT INTO users
		(name, gender, age, birth, phone, email, password, address, avatar, is_active, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		u.Name, u.Gender, u.Age, u.Birth, u.Phone, u.Email, u.Password,
		u.Address, u.Avatar, u.IsActive, u.Created, u.Updated)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	q := s.db.Rebind(`SELECT * FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByName returns a user by unique name.
func (s *Store) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	q := s.db.Rebind(`SELECT * FROM users WHERE name = ?`)
	if err := s.db.GetContext(ctx, &u, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return &u, nil
}

// GetUserByPhone returns a user by phone number, used by login.
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	var u model.User
	q := s.db.Rebind(`SELECT * FROM users WHERE phone = ?`)
	if err := s.db.GetContext(ctx, &u, q, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser overwrites the mutable fields of a user row by id.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	u.Updated = time.Now().UTC()
	q := s.db.Rebind(`UPDATE users SET
		name = ?, gender = ?, age = ?, birth = ?, phone = ?, email = ?,
		address = ?, avatar = ?, is_active = ?, updated = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q,
		u.Name, u.Gender, u.Age, u.Birth, u.Phone, u.Email,
		u.Address, u.Avatar, u.IsActive, u.Updated, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRows(res)
}

// UpdatePhoneByName changes a user's phone number, addressed by name.
func (s *Store) UpdatePhoneByName(ctx context.Context, name, phone string) error {
	q := s.db.Rebind(`UPDATE users SET phone = ?, updated = ? WHERE name = ?`)
	res, err := s.db.ExecContext(ctx, q, phone, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("update user phone: %w", err)
	}
	return requireRows(res)
}

// DeleteUserByName removes a user row by name.
func (s *Store) DeleteUserByName(ctx context.Context, name string) error {
	q := s.db.Rebind(`DELETE FROM users WHERE name = ?`)
	res, err := s.db.ExecContext(ctx, q, name)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRows(res)
}

// ---------------------------------------------------------------------------
// Opaque API tokens
// ---------------------------------------------------------------------------

// ListUserTokens returns all opaque tokens, newest first.
func (s *Store) ListUserTokens(ctx context.Context) ([]model.UserToken, error) {
	var tokens []model.UserToken
	if err := s.db.SelectContext(ctx, &tokens, `SELECT * FROM user_tokens ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("list user tokens: %w", err)
	}
	return tokens, nil
}

// GetUserTokenByUserID returns the opaque token owned by a user.
func (s *Store) GetUserTokenByUserID(ctx context.Context, userID string) (*model.UserToken, error) {
	var t model.UserToken
	q := s.db.Rebind(`SELECT * FROM user_tokens WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &t, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user token: %w", err)
	}
	return &t, nil
}

// CreateUserToken generates and persists a new opaque token for a user.
func (s *Store) CreateUserToken(ctx context.Context, userID string) (*model.UserToken, error) {
	now := time.Now().UTC()
	t := &model.UserToken{
		UserID:   userID,
		Token:    NewOpaqueToken(),
		IsActive: true,
		Created:  now,
		Updated:  now,
	}
	q := s.db.Rebind(`INSERT INTO user_tokens (user_id, token, is_active, created, updated)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, t.UserID, t.Token, t.IsActive, t.Created, t.Updated); err != nil {
		return nil, fmt.Errorf("insert user token: %w", err)
	}
	return t, nil
}

// SetUserTokenActive enables or disables a user's opaque token.
func (s *Store) SetUserTokenActive(ctx context.Context, userID string, active bool) error {
	q := s.db.Rebind(`UPDATE user_tokens SET is_active = ?, updated = ? WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, q, active, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update user token: %w", err)
	}
	return requireRows(res)
}

// DeleteUserTokenByUserID removes a user's opaque token.
func (s *Store) DeleteUserTokenByUserID(ctx context.Context, userID string) error {
	q := s.db.Rebind(`DELETE FROM user_tokens WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("delete user token: %w", err)
	}
	return requireRows(res)
}

// ---------------------------------------------------------------------------
// Per-URI grants
// ---------------------------------------------------------------------------

// ListGrants returns all grants, newest first.
func (s *Store) ListGrants(ctx context.Context) ([]model.TokenGrant, error) {
	var grants []model.TokenGrant
	if err := s.db.SelectContext(ctx, &grants, `SELECT * FROM token_grants ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// ListGrantsByTokenID returns the grants attached to one opaque token.
func (s *Store) ListGrantsByTokenID(ctx context.Context, tokenID int64) ([]model.TokenGrant, error) {
	var grants []model.TokenGrant
	q := s.db.Rebind(`SELECT * FROM token_grants WHERE user_token_id = ?`)
	if err := s.db.SelectContext(ctx, &grants, q, tokenID); err != nil {
		return nil, fmt.Errorf("list grants by token: %w", err)
	}
	return grants, nil
}

// CreateGrant inserts a new per-URI grant.
func (s *Store) CreateGrant(ctx context.Context, g *model.TokenGrant) error {
	now := time.Now().UTC()
	g.Created = now
	g.Updated = now
	q := s.db.Rebind(`INSERT INTO token_grants (user_token_id, uri, expire, is_active, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, g.UserTokenID, g.URI, g.Expire, g.IsActive, g.Created, g.Updated); err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// SetGrantActive enables or disables a grant.
func (s *Store) SetGrantActive(ctx context.Context, id int64, active bool) error {
	q := s.db.Rebind(`UPDATE token_grants SET is_active = ?, updated = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update grant status: %w", err)
	}
	return requireRows(res)
}

// UpdateGrantExpire changes a grant's expiry.
func (s *Store) UpdateGrantExpire(ctx context.Context, id int64, expire time.Time) error {
	q := s.db.Rebind(`UPDATE token_grants SET expire = ?, updated = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, expire, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update grant expire: %w", err)
	}
	return requireRows(res)
}

// DeleteGrantByID removes a grant.
func (s *Store) DeleteGrantByID(ctx context.Context, id int64) error {
	q := s.db.Rebind(`DELETE FROM token_grants WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return requireRows(res)
}

// ResolveGrant looks up the grant authorizing an opaque token for one URI.
// Both the grant and the owning token must be active; expiry is checked by
// the caller. Returns ErrNotFound when no row matches.
func (s *Store) ResolveGrant(ctx context.Context, opaqueToken, uri string) (*model.GrantLookup, error) {
	var g model.GrantLookup
	q := s.db.Rebind(`SELECT ut.user_id, ut.token, tg.user_token_id, tg.uri, tg.expire
		FROM token_grants tg
		INNER JOIN user_tokens ut ON ut.id = tg.user_token_id
		WHERE tg.uri = ? AND tg.is_active = ? AND ut.token = ? AND ut.is_active = ?`)
	if err := s.db.GetContext(ctx, &g, q, uri, true, opaqueToken, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve grant: %w", err)
	}
	return &g, nil
}

// ---------------------------------------------------------------------------
// Audit trail
// ---------------------------------------------------------------------------

// InsertAuditLog appends one audit record. Rows are never updated or
// deleted afterwards.
func (s *Store) InsertAuditLog(ctx context.Context, e *model.AuditLog) error {
	if e.Created == "" {
		e.Created = time.Now().Format(model.AuditTimeFormat)
	}
	q := s.db.Rebind(`INSERT INTO http_logs
		(user_id, method, path, query, body, remote_addr, log_type, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q,
		e.UserID, e.Method, e.Path, e.Query, e.Body, e.RemoteAddr, e.Kind, e.Created); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit records, newest first, capped at limit.
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []model.AuditLog
	q := s.db.Rebind(`SELECT * FROM http_logs ORDER BY id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &logs, q, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ArrisFramework/authcore/internal/dbx"
)

// User is the row shape of the users table. The roles mask is kept as int64
// because both supported dialects store it in a signed BIGINT; callers
// convert to the typed mask at the boundary.
type User struct {
	ID           int64          `db:"id"`
	Email        string         `db:"email"`
	Username     sql.NullString `db:"username"`
	PasswordHash string         `db:"password"`
	Status       uint8          `db:"status"`
	Verified     bool           `db:"verified"`
	Resettable   bool           `db:"resettable"`
	RolesMask    int64          `db:"roles_mask"`
	Registered   int64          `db:"registered"`
	LastLogin    sql.NullInt64  `db:"last_login"`
	ForceLogout  int64          `db:"force_logout"`
}

// NewUser carries the insert values for a fresh account.
type NewUser struct {
	Email        string
	Username     sql.NullString
	PasswordHash string
	Status       uint8
	Verified     bool
	Registered   int64
}

const userColumns = "id, email, username, password, status, verified, resettable, roles_mask, registered, last_login, force_logout"

type Users struct {
	table string
}

func NewUsers(tables Tables) *Users {
	return &Users{table: tables.Users}
}

// Create inserts the user and returns the assigned id. Unique violations
// come back as ErrDuplicateEmail or ErrDuplicateUsername.
func (u *Users) Create(ctx context.Context, q dbx.DBTX, rec NewUser) (int64, error) {
	query := q.Rebind("INSERT INTO " + u.table +
		" (email, username, password, status, verified, resettable, roles_mask, registered, force_logout)" +
		" VALUES (?, ?, ?, ?, ?, ?, 0, ?, 0) RETURNING id")

	var id int64
	err := q.QueryRowxContext(ctx, query,
		rec.Email, rec.Username, rec.PasswordHash, rec.Status, rec.Verified, true, rec.Registered,
	).Scan(&id)
	if err != nil {
		return 0, classifyUserConflict(err)
	}

	return id, nil
}

func (u *Users) FindByID(ctx context.Context, q dbx.DBTX, id int64) (*User, error) {
	var user User
	query := q.Rebind("SELECT " + userColumns + " FROM " + u.table + " WHERE id = ?")
	if err := q.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

func (u *Users) FindByEmail(ctx context.Context, q dbx.DBTX, email string) (*User, error) {
	var user User
	query := q.Rebind("SELECT " + userColumns + " FROM " + u.table + " WHERE email = ?")
	if err := q.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

// FindByUsername resolves a username that is not necessarily unique. More
// than one match yields ErrAmbiguousUsername.
func (u *Users) FindByUsername(ctx context.Context, q dbx.DBTX, username string) (*User, error) {
	var users []User
	query := q.Rebind("SELECT " + userColumns + " FROM " + u.table + " WHERE username = ? LIMIT 2")
	if err := q.SelectContext(ctx, &users, query, username); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	switch len(users) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &users[0], nil
	default:
		return nil, ErrAmbiguousUsername
	}
}

func (u *Users) UsernameTaken(ctx context.Context, q dbx.DBTX, username string) (bool, error) {
	var n int
	query := q.Rebind("SELECT COUNT(*) FROM " + u.table + " WHERE username = ?")
	if err := q.GetContext(ctx, &n, query, username); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (u *Users) UpdatePasswordHash(ctx context.Context, q dbx.DBTX, id int64, hash string) error {
	query := q.Rebind("UPDATE " + u.table + " SET password = ? WHERE id = ?")
	return u.expectOne(ctx, q, query, hash, id)
}

// SetRolesMask overwrites the full bitmask.
func (u *Users) SetRolesMask(ctx context.Context, q dbx.DBTX, id int64, mask int64) error {
	query := q.Rebind("UPDATE " + u.table + " SET roles_mask = ? WHERE id = ?")
	return u.expectOne(ctx, q, query, mask, id)
}

// GrantRoles sets the given bits atomically in a single statement, so
// concurrent grant and revoke calls cannot lose each other's update.
func (u *Users) GrantRoles(ctx context.Context, q dbx.DBTX, id int64, bits int64) error {
	query := q.Rebind("UPDATE " + u.table + " SET roles_mask = roles_mask | ? WHERE id = ?")
	return u.expectOne(ctx, q, query, bits, id)
}

// RevokeRoles clears the given bits atomically. The complement is computed
// here rather than in SQL to sidestep dialect differences around bitwise NOT.
func (u *Users) RevokeRoles(ctx context.Context, q dbx.DBTX, id int64, bits int64) error {
	notBits := int64(^uint64(bits))
	query := q.Rebind("UPDATE " + u.table + " SET roles_mask = roles_mask & ? WHERE id = ?")
	return u.expectOne(ctx, q, query, notBits, id)
}

func (u *Users) SetStatus(ctx context.Context, q dbx.DBTX, id int64, status uint8) error {
	query := q.Rebind("UPDATE " + u.table + " SET status = ? WHERE id = ?")
	return u.expectOne(ctx, q, query, status, id)
}

func (u *Users) SetVerified(ctx context.Context, q dbx.DBTX, id int64) error {
	query := q.Rebind("UPDATE " + u.table + " SET verified = ? WHERE id = ?")
	return u.expectOne(ctx, q, query, true, id)
}

// SetVerifiedEmail marks the user verified and swaps in the address the
// confirmation was issued for. Used when a confirmation carries an email
// change; the unique constraint may fire if the address was taken meanwhile.
func (u *Users) SetVerifiedEmail(ctx context.Context, q dbx.DBTX, id int64, email string) error {
	query := q.Rebind("UPDATE " + u.table + " SET verified = ?, email = ? WHERE id = ?")
	res, err := q.ExecContext(ctx, query, true, email, id)
	if err != nil {
		return classifyUserConflict(err)
	}
	return oneRow(res)
}

func (u *Users) SetResettable(ctx context.Context, q dbx.DBTX, id int64, resettable bool) error {
	query := q.Rebind("UPDATE " + u.table + " SET resettable = ? WHERE id = ?")
	return u.expectOne(ctx, q, query, resettable, id)
}

func (u *Users) SetLastLogin(ctx context.Context, q dbx.DBTX, id int64, ts int64) error {
	query := q.Rebind("UPDATE " + u.table + " SET last_login = ? WHERE id = ?")
	return u.expectOne(ctx, q, query, ts, id)
}

// BumpForceLogout advances the session version, invalidating every
// outstanding assertion for the user on its next strict validation.
func (u *Users) BumpForceLogout(ctx context.Context, q dbx.DBTX, id int64) error {
	query := q.Rebind("UPDATE " + u.table + " SET force_logout = force_logout + 1 WHERE id = ?")
	return u.expectOne(ctx, q, query, id)
}

// Delete removes the user row only; the facade deletes dependent rows in the
// same transaction. Reports whether a row existed.
func (u *Users) Delete(ctx context.Context, q dbx.DBTX, id int64) (bool, error) {
	query := q.Rebind("DELETE FROM " + u.table + " WHERE id = ?")
	res, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (u *Users) expectOne(ctx context.Context, q dbx.DBTX, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

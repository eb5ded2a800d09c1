package authcore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
)

// Register creates an unverified account and issues its email confirmation
// challenge. The caller delivers the returned TokenPair to the address;
// nothing is sent from here.
//
// The user row and the confirmation row are written in one transaction, so a
// failure between them leaves no half-registered account. The username is
// optional and non-unique unless RequireUniqueUsername is set, in which case
// the claim is checked inside the same transaction.
func (a *Auth) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	if err := a.throttleAttempt(ctx, actionSignup, clientIPFromContext(ctx)); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		a.metricInc(MetricRegisterFailure)
		a.emitAudit(ctx, auditEventRegister, false, 0, ErrInvalidEmail, nil)
		return nil, ErrInvalidEmail
	}
	if err := a.validatePassword(req.Password); err != nil {
		a.metricInc(MetricRegisterFailure)
		a.emitAudit(ctx, auditEventRegister, false, 0, err, nil)
		return nil, err
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		a.metricInc(MetricRegisterFailure)
		a.emitBackendError(ctx, "register", err)
		return nil, ErrUnavailable
	}

	username := strings.TrimSpace(req.Username)

	var (
		userID int64
		pair   TokenPair
	)
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if req.RequireUniqueUsername && username != "" {
			taken, err := a.users.UsernameTaken(ctx, tx, username)
			if err != nil {
				return err
			}
			if taken {
				return store.ErrDuplicateUsername
			}
		}

		id, err := a.users.Create(ctx, tx, store.NewUser{
			Email:        email,
			Username:     sql.NullString{String: username, Valid: username != ""},
			PasswordHash: hash,
			Status:       uint8(StatusNormal),
			Verified:     false,
			Registered:   a.now().Unix(),
		})
		if err != nil {
			return err
		}
		userID = id

		pair, err = a.issueConfirmation(ctx, tx, id, email)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			a.metricInc(MetricRegisterDuplicate)
			a.emitAudit(ctx, auditEventRegister, false, 0, ErrUserAlreadyExists, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrUserAlreadyExists
		case errors.Is(err, store.ErrDuplicateUsername):
			a.metricInc(MetricRegisterDuplicate)
			a.emitAudit(ctx, auditEventRegister, false, 0, ErrDuplicateUsername, func() map[string]string {
				return map[string]string{"username": username}
			})
			return nil, ErrDuplicateUsername
		default:
			a.metricInc(MetricRegisterFailure)
			a.emitBackendError(ctx, "register", err)
			return nil, ErrUnavailable
		}
	}

	a.metricInc(MetricRegisterSuccess)
	a.emitAudit(ctx, auditEventRegister, true, userID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return &RegisterResult{UserID: userID, Confirmation: pair}, nil
}

package authcore

import (
	"context"
	"errors"

	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/roles"
)

// AddRoleForUserByID grants a role. Granting an already-held role is a
// no-op that still reports success.
//
// Sessions issued before the grant keep their old role set until they are
// revalidated with ModeCurrent or reissued.
func (a *Auth) AddRoleForUserByID(ctx context.Context, userID int64, role roles.Role) error {
	if err := a.ready(); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrUnknownRole
	}

	if err := a.users.GrantRoles(ctx, a.db, userID, roles.Mask(0).With(role).Int64()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "add_role", err)
		return ErrUnavailable
	}

	a.metricInc(MetricRoleGranted)
	a.emitAudit(ctx, auditEventRoleGranted, true, userID, nil, func() map[string]string {
		return map[string]string{"role": role.String()}
	})
	return nil
}

// RemoveRoleForUserByID revokes a role. Revoking a role the account does not
// hold is a no-op that still reports success.
func (a *Auth) RemoveRoleForUserByID(ctx context.Context, userID int64, role roles.Role) error {
	if err := a.ready(); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrUnknownRole
	}

	if err := a.users.RevokeRoles(ctx, a.db, userID, roles.Mask(0).With(role).Int64()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "remove_role", err)
		return ErrUnavailable
	}

	a.metricInc(MetricRoleRevoked)
	a.emitAudit(ctx, auditEventRoleRevoked, true, userID, nil, func() map[string]string {
		return map[string]string{"role": role.String()}
	})
	return nil
}

// DoesUserHaveRole reports whether the account currently holds the role,
// reading storage rather than any session token.
func (a *Auth) DoesUserHaveRole(ctx context.Context, userID int64, role roles.Role) (bool, error) {
	if !role.Valid() {
		return false, ErrUnknownRole
	}

	mask, err := a.GetRolesForUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return mask.Has(role), nil
}

// GetRolesForUserByID returns the account's current role set from storage.
func (a *Auth) GetRolesForUserByID(ctx context.Context, userID int64) (roles.Mask, error) {
	if err := a.ready(); err != nil {
		return 0, err
	}

	user, err := a.users.FindByID(ctx, a.db, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUnknownID
		}
		a.emitBackendError(ctx, "get_roles", err)
		return 0, ErrUnavailable
	}
	return roles.FromInt64(user.RolesMask), nil
}

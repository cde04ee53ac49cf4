package auth

import (
	"userAuthService/httputils"
	"userAuthService/users/state"
)

// Access rules, decided per operation before any existence check on the
// target: a caller without permission sees Forbidden even for ids that do
// not exist.

// CanCreateUser: any authenticated principal may register new accounts. The
// new account's role is fixed by the handler, never taken from input.
func CanCreateUser(p *Principal) error {
	return nil
}

// CanReadUser: any authenticated principal may read any user by id.
func CanReadUser(p *Principal, targetID int) error {
	return nil
}

// CanUpdatePassword permits the account owner and admins.
func CanUpdatePassword(p *Principal, targetID int) error {
	if p.ID == targetID || p.Role == state.RoleAdmin {
		return nil
	}
	return httputils.Forbidden("not allowed to update this user")
}

// CanDeleteUser permits admins only, and never against the account the
// admin is currently logged in as.
func CanDeleteUser(p *Principal, targetID int) error {
	if p.Role != state.RoleAdmin {
		return httputils.Forbidden("admin role required")
	}
	if p.ID == targetID {
		return httputils.Forbidden("cannot delete the account you are logged in as")
	}
	return nil
}

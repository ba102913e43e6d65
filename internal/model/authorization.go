package model

import "strconv"

// RoleUser is the only role this service ever asserts.
const RoleUser = "user"

const (
	// HeaderRole is the session variable carrying the role.
	HeaderRole = "X-Hasura-Role"
	// HeaderUserID is the session variable carrying the local user id.
	HeaderUserID = "X-Hasura-User-Id"
)

// AuthorizationContext is the per-request payload returned to the query gateway.
// The zero value is the empty context: no role asserted.
type AuthorizationContext struct {
	Role   string
	UserID string
}

// NewAuthorizationContext builds the context for a resolved user.
func NewAuthorizationContext(user User) AuthorizationContext {
	return AuthorizationContext{
		Role:   RoleUser,
		UserID: strconv.FormatInt(user.ID, 10),
	}
}

// IsEmpty reports whether no role is asserted.
func (c AuthorizationContext) IsEmpty() bool {
	return c.Role == ""
}

// Variables returns the wire representation. Empty context yields an empty map.
func (c AuthorizationContext) Variables() map[string]string {
	if c.IsEmpty() {
		return map[string]string{}
	}
	return map[string]string{
		HeaderRole:   c.Role,
		HeaderUserID: c.UserID,
	}
}

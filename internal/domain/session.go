package domain

import (
	"encoding/json"
	"fmt"
)

// Role is one of the two account kinds.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole validates a role path segment.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleSeller:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// TokenKey is the storage key holding the role's bearer token.
func (r Role) TokenKey() string { return string(r) + "_token" }

// UserKey is the storage key holding the role's cached profile JSON.
func (r Role) UserKey() string { return string(r) + "_user" }

// LoginPath is where a guard sends a visitor without a token.
func (r Role) LoginPath() string { return "/auth/" + string(r) }

// SessionUser is the profile payload returned by the auth backend. Fields
// beyond the common ones are kept verbatim in Raw so profile merges do not
// lose them.
type SessionUser struct {
	Raw map[string]json.RawMessage
}

// Field returns a top-level string field, or "".
func (u *SessionUser) Field(name string) string {
	if u == nil || u.Raw == nil {
		return ""
	}
	v, ok := u.Raw[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// Merge overlays the fields of other onto u.
func (u *SessionUser) Merge(other *SessionUser) {
	if other == nil {
		return
	}
	if u.Raw == nil {
		u.Raw = make(map[string]json.RawMessage, len(other.Raw))
	}
	for k, v := range other.Raw {
		u.Raw[k] = v
	}
}

func (u SessionUser) MarshalJSON() ([]byte, error) {
	if u.Raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.Raw)
}

func (u *SessionUser) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &u.Raw)
}

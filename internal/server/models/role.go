package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRole   = errors.New("unknown role")
	ErrUnknownStatus = errors.New("unknown status")
)

// Role is the account role. Numeric codes are persisted.
type Role int

const (
	RoleSystemAdmin Role = 0
	RoleRegularUser Role = 1
	RoleAdmin       Role = 2
)

var roleNames = map[Role]string{
	RoleSystemAdmin: "system_admin",
	RoleRegularUser: "user",
	RoleAdmin:       "admin",
}

// RoleFromCode maps a stored code to a Role. Unknown codes are an error and
// must never be treated as any particular role.
func RoleFromCode(code int) (Role, error) {
	r := Role(code)
	if _, ok := roleNames[r]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRole, code)
	}
	return r, nil
}

// RoleFromName is the case-insensitive inverse of Role.String.
func RoleFromName(name string) (Role, error) {
	for r, n := range roleNames {
		if strings.EqualFold(n, name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Status is the account status. Numeric codes are persisted.
type Status int

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
	StatusFrozen   Status = 2
	StatusBlocked  Status = 3
)

var statusNames = map[Status]string{
	StatusInactive: "inactive",
	StatusActive:   "active",
	StatusFrozen:   "frozen",
	StatusBlocked:  "blocked",
}

func StatusFromCode(code int) (Status, error) {
	s := Status(code)
	if _, ok := statusNames[s]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownStatus, code)
	}
	return s, nil
}

func StatusFromName(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxDisplayNameLen = 64
)

var ErrDisplayNameEmpty = errors.New("display name empty")

// ConnID identifies one live transport session. It is opaque and process-unique.
type ConnID string

// Privilege is the directory attribute the role is derived from.
type Privilege string

const (
	PrivilegeAdmin       Privilege = "ADMIN"
	PrivilegeParticipant Privilege = "PARTICIPANT"
)

// Identity is resolved once at admission and never re-fetched for the connection.
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	GroupID     *int64    `json:"groupId"`
	GroupName   string    `json:"groupName,omitempty"`
	Privilege   Privilege `json:"-"`
}

// NewIdentity trims the display name and falls back to the email when it is empty.
func NewIdentity(id, displayName, email string) (Identity, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = strings.TrimSpace(email)
	}
	if name == "" {
		return Identity{}, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		cut := MaxDisplayNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return Identity{ID: id, DisplayName: name, Email: email}, nil
}

// WithGroup returns a copy carrying the group attributes.
func (i Identity) WithGroup(id int64, name string) Identity {
	i.GroupID = &id
	i.GroupName = name
	return i
}

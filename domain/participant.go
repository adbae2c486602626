// Package domain contains core concepts of the chat system.
// This file defines the Identity of a participant.
// No runtime, network, or UI logic should be added here.
package domain

import "strings"

// Identity names a user. It is verified by the identity provider before it
// reaches the core and compared by exact string match.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// IsBlank reports whether the identity is empty once surrounding spaces are removed.
func (i Identity) IsBlank() bool {
	return strings.TrimSpace(string(i)) == ""
}

// DirectoryEntry is a registered user as seen by another user.
type DirectoryEntry struct {
	Username Identity
	Online   bool
}

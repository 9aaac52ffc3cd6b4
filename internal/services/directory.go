// Package services – user directory contract.
//
// The chat subsystem never owns user accounts; it only needs read-only
// profile lookups to decorate conversation listings. The directory is an
// external collaborator consumed through this interface.
package services

import "context"

// Profile is the minimal participant view the chat layer exposes.
type Profile struct {
	ID           string `json:"id"`
	Username     string `json:"username,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// UserDirectory resolves user identities to display profiles.
// Implementations must be safe for concurrent use. Lookup failures are
// non-fatal for chat: callers fall back to an ID-only profile.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// StaticDirectory is an in-memory UserDirectory keyed by user ID. Useful for
// tests and single-binary deployments; unknown IDs resolve to an ID-only
// profile rather than an error.
type StaticDirectory map[string]Profile

// Lookup implements UserDirectory.
func (d StaticDirectory) Lookup(_ context.Context, userID string) (Profile, error) {
	if p, ok := d[userID]; ok {
		return p, nil
	}
	return Profile{ID: userID}, nil
}

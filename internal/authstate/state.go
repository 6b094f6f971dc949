// File: internal/authstate/state.go

// Package authstate captures, persists, and re-injects browser authentication
// state (cookies, localStorage, and session-scoped storage) so that portal
// logins survive across runs.
package authstate

import (
	"fmt"
	"net/url"
)

// Entry is a single name/value storage pair.
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Cookie mirrors the standard browser-context-state cookie shape. Values pass
// through opaquely between the persisted document and the driver.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // unix seconds; -1 means session cookie
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// OriginState holds the storage captured for one browsing origin.
//
// SessionStorage is a custom extension to the standard schema: the underlying
// state-export mechanism only covers cookies and localStorage, so session
// storage entries are gathered separately by in-page script. An absent or
// empty slice means "not captured for this origin". The persisted copy is a
// snapshot, not a live mirror; restoring it is a best-effort seed.
type OriginState struct {
	Origin         string  `json:"origin"`
	LocalStorage   []Entry `json:"localStorage,omitempty"`
	SessionStorage []Entry `json:"sessionStorage,omitempty"`
}

// Session is the persisted session document. It stays structurally compatible
// with the standard cookie+localStorage state schema so that readers unaware
// of the sessionStorage extension still parse it.
type Session struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

// Origin returns the state for the given origin, or nil when absent.
func (s *Session) Origin(origin string) *OriginState {
	for i := range s.Origins {
		if s.Origins[i].Origin == origin {
			return &s.Origins[i]
		}
	}
	return nil
}

// UpsertOrigin returns the existing state for origin, creating it when needed.
// This is the only way origins are added, which keeps the at-most-one-state-
// per-origin invariant.
func (s *Session) UpsertOrigin(origin string) *OriginState {
	if existing := s.Origin(origin); existing != nil {
		return existing
	}
	s.Origins = append(s.Origins, OriginState{Origin: origin})
	return &s.Origins[len(s.Origins)-1]
}

// MissingOrigins reports the subset of required origins for which the document
// holds no state at all. Portals that stash auth tokens in storage yield a
// silently unauthenticated session when their origin was never captured, so
// callers fail fast on a non-empty result instead.
func (s *Session) MissingOrigins(required []string) []string {
	var missing []string
	for _, origin := range required {
		if s.Origin(origin) == nil {
			missing = append(missing, origin)
		}
	}
	return missing
}

// NormalizeOrigin reduces a page URL to its scheme+host+port origin string.
func NormalizeOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q has no scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// entriesFromMap converts a storage dump into the persisted entry list.
func entriesFromMap(items map[string]string) []Entry {
	if len(items) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(items))
	for k, v := range items {
		entries = append(entries, Entry{Name: k, Value: v})
	}
	return entries
}

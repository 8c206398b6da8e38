// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import "sync"

// Principal identifies an authenticated user.
type Principal struct {
	Username string
	Role     Role
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Session holds at most one authenticated principal. A Session is owned by a
// single UI or CLI context and passed to operations that need identity.
// It is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	principal *Principal
}

// NewSession returns an anonymous session.
func NewSession() *Session {
	return &Session{}
}

// Current returns the authenticated principal, if any.
func (s *Session) Current() (Principal, bool) {
	if s == nil {
		return Principal{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return Principal{}, false
	}
	return *s.principal, true
}

// IsAdmin reports whether the current principal holds the ADMIN role.
func (s *Session) IsAdmin() bool {
	p, ok := s.Current()
	return ok && p.IsAdmin()
}

func (s *Session) set(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = &p
}

// clear drops the principal and returns the one that was present.
func (s *Session) clear() (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return Principal{}, false
	}
	p := *s.principal
	s.principal = nil
	return p, true
}

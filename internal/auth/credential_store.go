// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/hpms/hpms/pkg/errutil"
)

// WriteResult describes the outcome of a best-effort user write.
type WriteResult struct {
	// Created is true when the write inserted a new record. A degraded
	// Upsert reports false because the relational state is unknown. A
	// degraded Create reports true and is confirmed or rejected by Reconcile.
	Created bool
	// Degraded is true when the in-memory write stands but the relational
	// write failed. The user is queued for Reconcile.
	Degraded bool
}

// StoreOption configures a CredentialStore.
type StoreOption func(*CredentialStore)

// WithStoreLogger sets the logger used for degraded reads and writes.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreMetrics sets the metrics used to count degraded writes.
func WithStoreMetrics(m *Metrics) StoreOption {
	return func(s *CredentialStore) {
		s.metrics = m
	}
}

// CredentialStore is the record of users. The in-memory table is always
// current; the relational table, when configured, is written through on a
// best-effort basis and consulted on cache misses.
type CredentialStore struct {
	repo    UserRepository
	logger  *slog.Logger
	metrics *Metrics

	// writeMu serializes writers so the memory and relational copies are
	// updated in the same order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	users   map[string]*User
	pending map[string]writeKind
}

// writeKind is how a pending write is replayed.
type writeKind int

const (
	writeNone writeKind = iota
	// writeUpdate overwrites a record first read from the relational table.
	writeUpdate
	// writeCreate inserts a record never seen in the relational table. It
	// must not overwrite a row created elsewhere.
	writeCreate
)

// NewCredentialStore creates a CredentialStore. A nil repo gives a
// memory-only store.
func NewCredentialStore(repo UserRepository, opts ...StoreOption) *CredentialStore {
	s := &CredentialStore{
		repo:    repo,
		logger:  slog.New(slog.DiscardHandler),
		users:   make(map[string]*User),
		pending: make(map[string]writeKind),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Relational reports whether a relational backend is configured.
func (s *CredentialStore) Relational() bool {
	return s.repo != nil
}

// Load copies every relational user into memory. Entries with writes still
// pending reconciliation keep their in-memory version.
func (s *CredentialStore) Load(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return 0, oops.Code(CodeDatabase).
			With("operation", "load users").
			Wrap(fmt.Errorf("%w: %w", ErrDatabase, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, u := range users {
		if _, dirty := s.pending[u.Username]; dirty {
			continue
		}
		s.users[u.Username] = u.clone()
		loaded++
	}
	return loaded, nil
}

// Find returns a copy of the user, reading through to the relational table
// on a memory miss. Relational failures are logged and treated as absent.
func (s *CredentialStore) Find(ctx context.Context, username string) (*User, bool) {
	if u, ok := s.fromMemory(username); ok {
		return u, true
	}
	if s.repo == nil {
		return nil, false
	}

	u, err := s.repo.Get(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(ctx, s.logger, "relational read failed, using in-memory users only", err,
				"operation", "find", "username", username)
		}
		return nil, false
	}

	s.mu.Lock()
	if _, ok := s.users[username]; !ok {
		s.users[username] = u.clone()
	}
	s.mu.Unlock()
	return u.clone(), true
}

// Exists checks the relational table when available, else memory.
func (s *CredentialStore) Exists(ctx context.Context, username string) bool {
	if s.repo != nil {
		ok, err := s.repo.Exists(ctx, username)
		if err == nil && ok {
			return true
		}
		if err != nil {
			errutil.LogWarn(ctx, s.logger, "relational read failed, using in-memory users only", err,
				"operation", "exists", "username", username)
		}
	}
	_, ok := s.fromMemory(username)
	return ok
}

// Create stores a new user. It fails with ErrUsernameExists when the
// username is taken in either table; any other relational failure leaves a
// degraded in-memory write that Reconcile replays as an insert.
func (s *CredentialStore) Create(ctx context.Context, u *User) (WriteResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, ok := s.fromMemory(u.Username); ok {
		return WriteResult{}, oops.Code(CodeUsernameExists).
			With("username", u.Username).
			Wrap(ErrUsernameExists)
	}

	result := WriteResult{Created: true}
	if s.repo != nil {
		if err := s.repo.Create(ctx, u); err != nil {
			if errors.Is(err, ErrUsernameExists) {
				return WriteResult{}, err
			}
			s.degraded(ctx, "create", u.Username, err)
			result.Degraded = true
		}
	}
	if result.Degraded {
		s.put(u, writeCreate)
	} else {
		s.put(u, writeNone)
	}
	return result, nil
}

// Upsert writes u to memory and to the relational table on a best-effort
// basis. A user whose insert is still pending is written insert-only; if the
// relational table already holds the username, the local entry is dropped
// and ErrUsernameExists is returned. A degraded write of a user not held in
// memory is queued as an insert.
func (s *CredentialStore) Upsert(ctx context.Context, u *User) (WriteResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, existed := s.fromMemory(u.Username)
	if s.repo == nil {
		s.put(u, writeNone)
		return WriteResult{Created: !existed}, nil
	}

	queued := s.pendingKind(u.Username)
	created, err := s.writeThrough(ctx, u, queued)
	switch {
	case err == nil:
		s.put(u, writeNone)
		return WriteResult{Created: created}, nil
	case queued == writeCreate && errors.Is(err, ErrUsernameExists):
		return WriteResult{}, s.dropConflict(ctx, "upsert", u.Username, err)
	}

	s.degraded(ctx, "upsert", u.Username, err)
	if !existed {
		queued = writeCreate
	} else if queued == writeNone {
		queued = writeUpdate
	}
	s.put(u, queued)
	return WriteResult{Degraded: true}, nil
}

// Persist writes u to the relational table only and reports failures. It
// joins any transaction carried by ctx. Call Remember after the
// transaction commits. A user whose insert is still pending is written
// insert-only, as in Upsert.
func (s *CredentialStore) Persist(ctx context.Context, u *User) error {
	if s.repo == nil {
		return nil
	}
	queued := s.pendingKind(u.Username)
	if _, err := s.writeThrough(ctx, u, queued); err != nil {
		if queued == writeCreate && errors.Is(err, ErrUsernameExists) {
			return s.dropConflict(ctx, "persist", u.Username, err)
		}
		return oops.Code(CodeDatabase).
			With("operation", "persist user").
			With("username", u.Username).
			Wrap(fmt.Errorf("%w: %w", ErrDatabase, err))
	}
	return nil
}

// Remember writes u to memory only, clearing any pending reconciliation.
func (s *CredentialStore) Remember(u *User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.put(u, writeNone)
}

// Users returns copies of the in-memory users ordered by username.
func (s *CredentialStore) Users() []*User {
	s.mu.RLock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// PendingWrites returns the usernames whose latest write has not reached the
// relational table.
func (s *CredentialStore) PendingWrites() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.pending))
	for name := range s.pending {
		out = append(out, name)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Reconcile replays pending writes to the relational table. It returns the
// number of users flushed; users that fail again stay pending.
//
// Pending inserts never overwrite a relational row. When the username was
// taken in the meantime the local entry is dropped and the returned error
// matches ErrUsernameExists.
func (s *CredentialStore) Reconcile(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	flushed := 0
	var failed, conflicts []error
	for _, name := range s.PendingWrites() {
		u, ok := s.fromMemory(name)
		if !ok {
			continue
		}
		queued := s.pendingKind(name)
		if _, err := s.writeThrough(ctx, u, queued); err != nil {
			if queued == writeCreate && errors.Is(err, ErrUsernameExists) {
				conflicts = append(conflicts, s.dropConflict(ctx, "reconcile", name, err))
				continue
			}
			failed = append(failed, err)
			continue
		}
		s.mu.Lock()
		delete(s.pending, name)
		s.mu.Unlock()
		flushed++
	}

	switch {
	case len(failed) > 0:
		return flushed, oops.Code(CodePersistenceDegraded).
			With("operation", "reconcile").
			With("failed", len(failed)).
			With("conflicts", len(conflicts)).
			Wrap(fmt.Errorf("%w: %w", ErrPersistenceDegraded, errors.Join(append(failed, conflicts...)...)))
	case len(conflicts) > 0:
		return flushed, oops.Code(CodeUsernameExists).
			With("operation", "reconcile").
			With("conflicts", len(conflicts)).
			Wrap(errors.Join(conflicts...))
	}
	return flushed, nil
}

func (s *CredentialStore) fromMemory(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, false
	}
	return u.clone(), true
}

func (s *CredentialStore) put(u *User, kind writeKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u.clone()
	if kind == writeNone {
		delete(s.pending, u.Username)
	} else {
		s.pending[u.Username] = kind
	}
}

func (s *CredentialStore) pendingKind(username string) writeKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[username]
}

// writeThrough sends u to the relational table, insert-only for a pending
// insert.
func (s *CredentialStore) writeThrough(ctx context.Context, u *User, kind writeKind) (bool, error) {
	if kind == writeCreate {
		if err := s.repo.Create(ctx, u); err != nil {
			return false, err
		}
		return true, nil
	}
	return s.repo.Upsert(ctx, u)
}

// dropConflict discards a local insert that lost to a relational row.
func (s *CredentialStore) dropConflict(ctx context.Context, op, username string, err error) error {
	s.mu.Lock()
	delete(s.users, username)
	delete(s.pending, username)
	s.mu.Unlock()
	errutil.LogWarn(ctx, s.logger, "local account discarded: username already taken in relational table", err,
		"operation", op, "username", username)
	return oops.Code(CodeUsernameExists).
		With("operation", op).
		With("username", username).
		Wrap(ErrUsernameExists)
}

func (s *CredentialStore) degraded(ctx context.Context, op, username string, err error) {
	s.metrics.degradedWrite()
	errutil.LogWarn(ctx, s.logger, "persistence degraded: relational write failed, in-memory copy kept", err,
		"operation", op, "username", username, "degraded_code", CodePersistenceDegraded)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

// Package mocks provides testify mocks for the auth collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hpms/hpms/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t TestingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockMailer mocks auth.Mailer.
type MockMailer struct{ mock.Mock }

var _ auth.Mailer = (*MockMailer)(nil)

// NewMockMailer creates a MockMailer whose expectations are asserted on cleanup.
func NewMockMailer(t TestingT) *MockMailer {
	m := &MockMailer{}
	register(t, &m.Mock)
	return m
}

// SendEmail records the call.
func (m *MockMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}

// MockEmailDirectory mocks auth.EmailDirectory.
type MockEmailDirectory struct{ mock.Mock }

var _ auth.EmailDirectory = (*MockEmailDirectory)(nil)

// NewMockEmailDirectory creates a MockEmailDirectory whose expectations are asserted on cleanup.
func NewMockEmailDirectory(t TestingT) *MockEmailDirectory {
	m := &MockEmailDirectory{}
	register(t, &m.Mock)
	return m
}

// LookupEmail records the call.
func (m *MockEmailDirectory) LookupEmail(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

// MockAuditRecorder mocks auth.AuditRecorder.
type MockAuditRecorder struct{ mock.Mock }

var _ auth.AuditRecorder = (*MockAuditRecorder)(nil)

// NewMockAuditRecorder creates a MockAuditRecorder whose expectations are asserted on cleanup.
func NewMockAuditRecorder(t TestingT) *MockAuditRecorder {
	m := &MockAuditRecorder{}
	register(t, &m.Mock)
	return m
}

// Record records the call.
func (m *MockAuditRecorder) Record(ctx context.Context, event auth.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct{ mock.Mock }

var _ auth.UserRepository = (*MockUserRepository)(nil)

// NewMockUserRepository creates a MockUserRepository whose expectations are asserted on cleanup.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	register(t, &m.Mock)
	return m
}

// Get records the call.
func (m *MockUserRepository) Get(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

// Exists records the call.
func (m *MockUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// Create records the call.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// Upsert records the call.
func (m *MockUserRepository) Upsert(ctx context.Context, user *auth.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

// List records the call.
func (m *MockUserRepository) List(ctx context.Context) ([]*auth.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

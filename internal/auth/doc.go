// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

// Package auth provides credential and access-control primitives for HPMS.
//
// # Domain Types
//
// Domain types (User, ResetRequest) should be created using their constructors:
//   - NewUser - creates a User with a validated username, role and digest
//   - NewResetRequest - creates a ResetRequest with a one hour expiry
//
// # Storage
//
// CredentialStore combines an in-memory table with an optional relational
// UserRepository. Reads and best-effort writes fall back to memory when the
// relational backend fails; such writes are reported as degraded and can be
// replayed with Reconcile. ResetCodeLedger has no fallback.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, logout, admin-gated registration, password changes
//   - PasswordResetService - the two-step, email-verified reset flow
//
// Identity is carried by an explicit *Session passed to operations that need
// it. Services are created with New*Service constructors that validate
// dependencies.
package auth

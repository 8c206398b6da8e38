// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpms/hpms/internal/auth"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// fastHasher keeps argon2 cheap in tests.
func fastHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1})
}

// memUserRepo is an in-memory relational stand-in whose calls can be failed.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User
	fail  error
	calls int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*auth.User)}
}

func (r *memUserRepo) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *memUserRepo) Get(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return nil, r.fail
	}
	u, ok := r.users[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) Exists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return false, r.fail
	}
	_, ok := r.users[username]
	return ok, nil
}

func (r *memUserRepo) Create(_ context.Context, u *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return r.fail
	}
	if _, ok := r.users[u.Username]; ok {
		return auth.ErrUsernameExists
	}
	c := *u
	r.users[u.Username] = &c
	return nil
}

func (r *memUserRepo) Upsert(_ context.Context, u *auth.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return false, r.fail
	}
	_, existed := r.users[u.Username]
	c := *u
	r.users[u.Username] = &c
	return !existed, nil
}

func (r *memUserRepo) List(_ context.Context) ([]*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return nil, r.fail
	}
	out := make([]*auth.User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memUserRepo) stored(username string) (*auth.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	return u, ok
}

// memLedger is an in-memory ResetCodeLedger. Writes made inside a memTx are
// discarded when the transaction function fails.
type memLedger struct {
	mu       sync.Mutex
	requests []*auth.ResetRequest
	nextID   int64
	failOn   string
}

func (l *memLedger) check(op string) error {
	if l.failOn == op {
		return errConnRefused
	}
	return nil
}

func (l *memLedger) InvalidateActive(_ context.Context, username string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check("invalidate"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range l.requests {
		if r.Username == username && !r.Used {
			r.Used = true
			n++
		}
	}
	return n, nil
}

func (l *memLedger) Create(_ context.Context, req *auth.ResetRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check("create"); err != nil {
		return err
	}
	l.nextID++
	req.ID = l.nextID
	c := *req
	l.requests = append(l.requests, &c)
	return nil
}

func (l *memLedger) FindActive(_ context.Context, username string) (*auth.ResetRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check("find"); err != nil {
		return nil, err
	}
	for i := len(l.requests) - 1; i >= 0; i-- {
		r := l.requests[i]
		if r.Username == username && !r.Used {
			c := *r
			return &c, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (l *memLedger) MarkUsed(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check("mark"); err != nil {
		return err
	}
	for _, r := range l.requests {
		if r.ID == id && !r.Used {
			r.Used = true
			return nil
		}
	}
	return auth.ErrNotFound
}

func (l *memLedger) active(username string) []*auth.ResetRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*auth.ResetRequest
	for _, r := range l.requests {
		if r.Username == username && !r.Used {
			c := *r
			out = append(out, &c)
		}
	}
	return out
}

func (l *memLedger) snapshot() []auth.ResetRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]auth.ResetRequest, len(l.requests))
	for i, r := range l.requests {
		out[i] = *r
	}
	return out
}

func (l *memLedger) restore(s []auth.ResetRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = l.requests[:0]
	for i := range s {
		r := s[i]
		l.requests = append(l.requests, &r)
	}
}

// memTx rolls the ledger back when fn fails.
type memTx struct {
	ledger   *memLedger
	beginErr error
	commits  int
}

func (t *memTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.beginErr != nil {
		return t.beginErr
	}
	snap := t.ledger.snapshot()
	if err := fn(ctx); err != nil {
		t.ledger.restore(snap)
		return err
	}
	t.commits++
	return nil
}

// mapDirectory resolves emails from a map.
type mapDirectory map[string]string

func (d mapDirectory) LookupEmail(_ context.Context, username string) (string, error) {
	email, ok := d[username]
	if !ok {
		return "", auth.ErrNotFound
	}
	return email, nil
}

type sentMail struct {
	to, subject, body string
}

// outbox records mail and can be made to fail.
type outbox struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (o *outbox) SendEmail(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (o *outbox) last(t *testing.T) sentMail {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no mail sent")
	return o.sent[len(o.sent)-1]
}

// codeFrom extracts the six digit code from a reset email body.
func codeFrom(t *testing.T, body string) string {
	t.Helper()
	for _, field := range strings.FieldsFunc(body, func(r rune) bool { return r < '0' || r > '9' }) {
		if len(field) == auth.ResetCodeDigits {
			return field
		}
	}
	t.Fatalf("no reset code in body: %s", body)
	return ""
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// logLines parses JSON log output into entries.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry), "log line: %s", line)
		out = append(out, entry)
	}
	return out
}

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

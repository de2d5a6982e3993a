package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/notify"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

// memLedger is an in-memory implementation of every ledger store.
type memLedger struct {
	mu         sync.Mutex
	accounts   map[string]domain.Account
	trades     []domain.Trade
	snapshots  []domain.EquitySnapshot
	violations []domain.RuleViolation
	payouts    []domain.PayoutRequest
	audit      []domain.AuditEntry
}

func newMemLedger() *memLedger {
	return &memLedger{accounts: map[string]domain.Account{}}
}

func (m *memLedger) ledger() Ledger {
	return Ledger{
		Accounts:   (*memAccounts)(m),
		Trades:     (*memTrades)(m),
		Snapshots:  (*memSnapshots)(m),
		Violations: (*memViolations)(m),
		Payouts:    (*memPayouts)(m),
		Audit:      (*memAudit)(m),
	}
}

func (m *memLedger) put(acct domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct.Clone()
}

func (m *memLedger) account(id string) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Clone()
}

func (m *memLedger) auditEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audit))
	for _, e := range m.audit {
		out = append(out, e.Event)
	}
	return out
}

type memAccounts memLedger

func (a *memAccounts) Create(_ context.Context, acct domain.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[acct.ID]; ok {
		return domain.ErrAlreadyExists
	}
	a.accounts[acct.ID] = acct.Clone()
	return nil
}

func (a *memAccounts) Get(_ context.Context, id string) (domain.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acct.Clone(), nil
}

func (a *memAccounts) update(acct domain.Account, expected int64) error {
	cur, ok := a.accounts[acct.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expected {
		return domain.ErrStaleAccount
	}
	a.accounts[acct.ID] = acct.Clone()
	return nil
}

func (a *memAccounts) Update(_ context.Context, acct domain.Account, expected int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.update(acct, expected)
}

func (a *memAccounts) CommitSettlement(_ context.Context, st domain.Settlement) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.update(st.Account, st.ExpectedVersion); err != nil {
		return err
	}
	a.trades = append(a.trades, st.Trade)
	snap := st.Snapshot
	snap.ID = int64(len(a.snapshots) + 1)
	a.snapshots = append(a.snapshots, snap)
	if st.Violation != nil {
		a.violations = append(a.violations, *st.Violation)
	}
	return nil
}

func (a *memAccounts) CommitPayout(_ context.Context, acct domain.Account, expected int64, req domain.PayoutRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.update(acct, expected); err != nil {
		return err
	}
	a.payouts = append(a.payouts, req)
	return nil
}

func (a *memAccounts) ListByStatus(_ context.Context, status domain.AccountStatus, _ domain.ListOpts) ([]domain.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.Account
	for _, acct := range a.accounts {
		if acct.Status == status {
			out = append(out, acct.Clone())
		}
	}
	return out, nil
}

type memTrades memLedger

func (t *memTrades) ListByAccount(_ context.Context, id string, _ domain.ListOpts) ([]domain.Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Trade
	for i := len(t.trades) - 1; i >= 0; i-- {
		if t.trades[i].AccountID == id {
			out = append(out, t.trades[i])
		}
	}
	return out, nil
}

func (t *memTrades) ListRange(_ context.Context, since, before time.Time) ([]domain.Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Trade
	for _, tr := range t.trades {
		if !tr.Timestamp.Before(since) && tr.Timestamp.Before(before) {
			out = append(out, tr)
		}
	}
	return out, nil
}

type memSnapshots memLedger

func (s *memSnapshots) ListByAccount(_ context.Context, id string, _ domain.ListOpts) ([]domain.EquitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EquitySnapshot
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].AccountID == id {
			out = append(out, s.snapshots[i])
		}
	}
	return out, nil
}

func (s *memSnapshots) ListRange(context.Context, time.Time, time.Time) ([]domain.EquitySnapshot, error) {
	return nil, nil
}

type memViolations memLedger

func (v *memViolations) ListByAccount(_ context.Context, id string) ([]domain.RuleViolation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []domain.RuleViolation
	for _, vi := range v.violations {
		if vi.AccountID == id {
			out = append(out, vi)
		}
	}
	return out, nil
}

type memPayouts memLedger

func (p *memPayouts) ListByAccount(_ context.Context, id string) ([]domain.PayoutRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.PayoutRequest
	for _, pr := range p.payouts {
		if pr.AccountID == id {
			out = append(out, pr)
		}
	}
	return out, nil
}

type memAudit memLedger

func (a *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.audit = append(a.audit, domain.AuditEntry{ID: int64(len(a.audit) + 1), Event: event, Detail: detail, CreatedAt: testNow})
	return nil
}

func (a *memAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEntry(nil), a.audit...), nil
}

func (a *memAudit) ListRange(context.Context, time.Time, time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

// memLocks is a process-local LockManager.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks { return &memLocks{held: map[string]bool{}} }

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// memBus records published payloads.
type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	stream    []domain.StreamMessage
}

func newMemBus() *memBus { return &memBus{published: map[string][][]byte{}} }

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream = append(b.stream, domain.StreamMessage{ID: time.Duration(len(b.stream) + 1).String(), Payload: payload})
	return nil
}

func (b *memBus) StreamRead(_ context.Context, _ string, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count > len(b.stream) || count <= 0 {
		count = len(b.stream)
	}
	return append([]domain.StreamMessage(nil), b.stream[:count]...), nil
}

func (b *memBus) eventTypes(accountID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, p := range b.published[domain.AccountChannel(accountID)] {
		i := bytes.Index(p, []byte(`"type":"`))
		rest := string(p[i+8:])
		out = append(out, rest[:strings.IndexByte(rest, '"')])
	}
	return out
}

// recNotifier records alert event types.
type recNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recNotifier) Notify(_ context.Context, a notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, a.Event)
	return nil
}

// seedAccount stores a fresh account with the given equity state.
func seedAccount(t *testing.T, m *memLedger, status domain.AccountStatus) domain.Account {
	t.Helper()
	acct, err := risk.OpenAccount("acct-1", "trader-1", domain.Tier10K, domain.Addons{}, risk.DefaultRules(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	acct.Status = status
	acct.Version = 1
	m.put(acct)
	return acct
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package ach is a stub ACH rail adapter: no live network I/O (out of
// scope per §1), but it implements the full PaymentAdapter contract well
// enough to exercise the orchestrator and reconciler end to end in tests.
package ach

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smallbiznis/pspcore/internal/clock"
	providerdomain "github.com/smallbiznis/pspcore/internal/provider/domain"
)

type Factory struct {
	Clock clock.Clock
}

func NewFactory(c clock.Clock) *Factory {
	return &Factory{Clock: c}
}

func (f *Factory) Rail() string { return "ach" }

func (f *Factory) NewAdapter(cfg providerdomain.AdapterConfig) (providerdomain.PaymentAdapter, error) {
	return &Adapter{clock: f.Clock, submissions: map[string]submission{}}, nil
}

type submission struct {
	req       providerdomain.SubmitRequest
	status    providerdomain.SubmissionStatus
	createdAt time.Time
}

// Adapter is an in-memory ACH stand-in: Submit always accepts, Status
// replays what Submit (or SeedSettlement, via a test) recorded, Cancel
// only works before a settlement has been seeded for the request.
type Adapter struct {
	clock clock.Clock

	mu          sync.Mutex
	submissions map[string]submission
	settlements []providerdomain.SettlementRecord
}

func (a *Adapter) Submit(ctx context.Context, req providerdomain.SubmitRequest) (providerdomain.SubmitResponse, error) {
	providerRequestID := "ACH-" + uuid.New().String()

	a.mu.Lock()
	a.submissions[providerRequestID] = submission{req: req, status: providerdomain.SubmissionAccepted, createdAt: a.clock.Now()}
	a.mu.Unlock()

	return providerdomain.SubmitResponse{Accepted: true, ProviderRequestID: providerRequestID}, nil
}

func (a *Adapter) Status(ctx context.Context, providerRequestID string) (providerdomain.StatusResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.submissions[providerRequestID]
	if !ok {
		return providerdomain.StatusResponse{Status: providerdomain.SubmissionUnknown}, nil
	}
	return providerdomain.StatusResponse{Status: s.status, Amount: s.req.Amount, EffectiveDate: s.createdAt}, nil
}

func (a *Adapter) Cancel(ctx context.Context, providerRequestID string) (providerdomain.CancelResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.submissions[providerRequestID]
	if !ok || s.status != providerdomain.SubmissionAccepted {
		return providerdomain.CancelResponse{Accepted: false, Message: "submission is no longer cancelable"}, nil
	}
	delete(a.submissions, providerRequestID)
	return providerdomain.CancelResponse{Accepted: true}, nil
}

// PullSettlements returns records seeded by SeedSettlement for the given
// date; the real rail would return yesterday's cleared batch here.
func (a *Adapter) PullSettlements(ctx context.Context, effectiveDate time.Time, bankAccountID uuid.UUID) ([]providerdomain.SettlementRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]providerdomain.SettlementRecord, 0, len(a.settlements))
	for _, rec := range a.settlements {
		if sameDay(rec.EffectiveDate, effectiveDate) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a *Adapter) Capabilities() providerdomain.Capabilities {
	return providerdomain.Capabilities{
		Rail:             "ach",
		SupportsCancel:   true,
		SupportsRealtime: false,
		CutoffTimes:      []string{"17:00 ET"},
	}
}

// SeedSettlement registers a settlement record PullSettlements will later
// return — the stub's substitute for a real rail's nightly file drop.
func (a *Adapter) SeedSettlement(rec providerdomain.SettlementRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settlements = append(a.settlements, rec)
	if s, ok := a.submissions[rec.ProviderRequestID]; ok {
		s.status = providerdomain.SubmissionSettled
		if rec.Status == "return" {
			s.status = providerdomain.SubmissionReturned
		}
		a.submissions[rec.ProviderRequestID] = s
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

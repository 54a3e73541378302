// Package fednow is a stub FedNow rail adapter: real-time, irrevocable once
// accepted (no Cancel support), no live network I/O (out of scope per §1).
package fednow

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

func (f *Factory) Rail() string { return "fednow" }

func (f *Factory) NewAdapter(cfg providerdomain.AdapterConfig) (providerdomain.PaymentAdapter, error) {
	return &Adapter{clock: f.Clock, submissions: map[string]submission{}}, nil
}

type submission struct {
	req       providerdomain.SubmitRequest
	createdAt time.Time
}

// Adapter settles instantly: Submit's acceptance already implies
// settlement, since FedNow has no separate clearing step.
type Adapter struct {
	clock clock.Clock

	mu          sync.Mutex
	submissions map[string]submission
	settlements []providerdomain.SettlementRecord
}

func (a *Adapter) Submit(ctx context.Context, req providerdomain.SubmitRequest) (providerdomain.SubmitResponse, error) {
	providerRequestID := "FEDNOW-" + uuid.New().String()
	now := a.clock.Now()

	a.mu.Lock()
	a.submissions[providerRequestID] = submission{req: req, createdAt: now}
	a.settlements = append(a.settlements, providerdomain.SettlementRecord{
		ExternalTraceID:   providerRequestID,
		ProviderRequestID: providerRequestID,
		Direction:         "outbound",
		Amount:            req.Amount,
		Status:            "success",
		EffectiveDate:     now,
	})
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
	return providerdomain.StatusResponse{Status: providerdomain.SubmissionSettled, Amount: s.req.Amount, EffectiveDate: s.createdAt}, nil
}

func (a *Adapter) Cancel(ctx context.Context, providerRequestID string) (providerdomain.CancelResponse, error) {
	return providerdomain.CancelResponse{Accepted: false, Message: "fednow settlements are irrevocable"}, nil
}

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
		Rail:             "fednow",
		SupportsCancel:   false,
		SupportsRealtime: true,
		CutoffTimes:      []string{"24/7"},
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

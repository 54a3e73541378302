// Package service is the liability classifier: a pure table lookup plus a
// thin persistence step.
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/pspcore/internal/clock"
	liabilitydomain "github.com/smallbiznis/pspcore/internal/liability/domain"
	"github.com/smallbiznis/pspcore/internal/liability/repository"
	"github.com/smallbiznis/pspcore/internal/money"
	obsmetrics "github.com/smallbiznis/pspcore/internal/observability/metrics"
	"github.com/smallbiznis/pspcore/internal/policy"
)

// Params are the service's fx-injected dependencies.
type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Policy     *policy.Holder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service is the liabilitydomain.Service implementation.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	policy     *policy.Holder
	obsMetrics *obsmetrics.Metrics
}

// NewService builds the liability classifier Service.
func NewService(p Params) liabilitydomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("liability.service"),
		clock:      p.Clock,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

// ClassifyReturn is table-driven and reads the current policy document on
// every call, so an operator's override takes effect without a restart.
// Unknown codes default to error_origin=unknown, liability_party=psp,
// recovery_path=manual, with the raw code recorded as the reason.
func (s *Service) ClassifyReturn(rail, returnCode string, amount money.Amount) liabilitydomain.Classification {
	table := buildTable(s.policy.Get())
	if class, ok := table[normKey(rail, returnCode)]; ok {
		class.DeterminationReason = "matched rail=" + rail + " code=" + returnCode
		return class
	}
	return liabilitydomain.Classification{
		ErrorOrigin:         "unknown",
		LiabilityParty:      "psp",
		RecoveryPath:        "manual",
		DeterminationReason: "no classification rule for rail=" + rail + " code=" + returnCode,
	}
}

func (s *Service) RecordLiabilityEvent(ctx context.Context, tenantID, instructionID uuid.UUID, rail, returnCode string, amount money.Amount, class liabilitydomain.Classification) (liabilitydomain.LiabilityEvent, error) {
	evt := liabilitydomain.LiabilityEvent{
		LiabilityEventID: uuid.New(),
		TenantID:         tenantID,
		InstructionID:    instructionID,
		Rail:             rail,
		ReturnCode:       returnCode,
		Amount:           amount,
		Classification:   class,
		CreatedAt:        s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.Insert(ctx, tx, evt)
	})
	if err != nil {
		return liabilitydomain.LiabilityEvent{}, err
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordLiabilityClassification(ctx, rail, class.LiabilityParty)
	}
	return evt, nil
}

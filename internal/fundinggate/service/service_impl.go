package service

import (
	"context"

	"github.com/smallbiznis/pspcore/internal/clock"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/pspcore/internal/observability/metrics"
	"github.com/smallbiznis/pspcore/internal/policy"
	"github.com/smallbiznis/pspcore/internal/ratelimit"

	gatedomain "github.com/smallbiznis/pspcore/internal/fundinggate/domain"
	"github.com/smallbiznis/pspcore/internal/fundinggate/repository"
	"github.com/smallbiznis/pspcore/internal/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params are the service's fx-injected dependencies.
type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Policy     *policy.Holder
	Ledger     ledgerdomain.Service
	Freeze     *ratelimit.FreezeFlag `optional:"true"`
	ObsMetrics *obsmetrics.Metrics   `optional:"true"`
}

// Service is the gorm-transactional gatedomain.Service implementation.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	policy     *policy.Holder
	ledger     ledgerdomain.Service
	freeze     *ratelimit.FreezeFlag
	obsMetrics *obsmetrics.Metrics
}

// NewService builds the funding gate Service.
func NewService(p Params) gatedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("fundinggate.service"),
		clock:      p.Clock,
		policy:     p.Policy,
		ledger:     p.Ledger,
		freeze:     p.Freeze,
		obsMetrics: p.ObsMetrics,
	}
}

// EvaluateCommitGate checks, in order, the pay run's upstream state, the
// funding model, and (in strict mode) that client_funding_clearing holds
// enough to cover req.RequiredAmount.
func (s *Service) EvaluateCommitGate(ctx context.Context, req gatedomain.CommitGateRequest) (gatedomain.GateResult, error) {
	var result gatedomain.GateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repository.FindByIdempotencyKey(ctx, tx, req.TenantID, "commit", req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result = *existing
			return nil
		}

		result = s.evaluateCommitGate(ctx, req)
		return repository.Insert(ctx, tx, req.TenantID, req.PayRunID, "commit", req.IdempotencyKey, result, s.clock.Now())
	})
	if err != nil {
		return gatedomain.GateResult{}, err
	}
	s.recordDecision("commit", result.Passed)
	return result, nil
}

func (s *Service) evaluateCommitGate(ctx context.Context, req gatedomain.CommitGateRequest) gatedomain.GateResult {
	var reasons []gatedomain.Reason

	if req.PayRunState != gatedomain.PayRunReadyForCommit {
		reasons = append(reasons, gatedomain.Reason{
			Code: "pay_run_not_ready", Severity: gatedomain.SeverityError,
			Message: "pay run is not in a state the commit-gate accepts",
			Data:    map[string]any{"pay_run_state": string(req.PayRunState)},
		})
	}

	doc := s.policy.Get()
	if !doc.RecognizesFundingModel(string(req.FundingModel)) {
		reasons = append(reasons, gatedomain.Reason{
			Code: "unrecognized_funding_model", Severity: gatedomain.SeverityError,
			Message: "funding model is not recognized",
			Data:    map[string]any{"funding_model": string(req.FundingModel)},
		})
	}

	available := money.Amount{Currency: req.RequiredAmount.Currency}
	strict := req.Strict || doc.Funding.StrictByDefault
	if strict && len(reasons) == 0 {
		account, err := s.ledger.GetOrCreateAccount(ctx, req.TenantID, req.LegalEntityID, ledgerdomain.AccountTypeClientFundingClearing, req.RequiredAmount.Currency)
		if err != nil {
			reasons = append(reasons, gatedomain.Reason{
				Code: "balance_check_failed", Severity: gatedomain.SeverityError,
				Message: "could not read client funding clearing balance",
			})
		} else {
			balance, err := s.ledger.GetBalance(ctx, req.TenantID, account.AccountID)
			if err != nil {
				reasons = append(reasons, gatedomain.Reason{
					Code: "balance_check_failed", Severity: gatedomain.SeverityError,
					Message: "could not read client funding clearing balance",
				})
			} else {
				available = money.Amount{Minor: balance.Available, Currency: req.RequiredAmount.Currency}
				if available.Cmp(req.RequiredAmount) < 0 {
					reasons = append(reasons, gatedomain.Reason{
						Code: "insufficient_funds", Severity: gatedomain.SeverityError,
						Message: "available balance does not cover required amount",
					})
				}
			}
		}
	}

	shortfall := money.Amount{Currency: req.RequiredAmount.Currency}
	if diff, err := req.RequiredAmount.Sub(available); err == nil && diff.Positive() {
		shortfall = diff
	}

	return gatedomain.GateResult{
		Passed:          !hasError(reasons),
		AvailableAmount: available,
		RequiredAmount:  req.RequiredAmount,
		Shortfall:       shortfall,
		Reasons:         reasons,
	}
}

// EvaluatePayGate is non-bypassable: it re-checks commit-gate approval, a
// held reservation, and the freeze flag immediately before rail submission.
// Failures are reported and never auto-retried.
func (s *Service) EvaluatePayGate(ctx context.Context, req gatedomain.PayGateRequest) (gatedomain.GateResult, error) {
	var result gatedomain.GateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repository.FindByIdempotencyKey(ctx, tx, req.TenantID, "pay", req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result = *existing
			return nil
		}

		result, err = s.evaluatePayGate(ctx, tx, req)
		if err != nil {
			return err
		}
		return repository.Insert(ctx, tx, req.TenantID, req.PayRunID, "pay", req.IdempotencyKey, result, s.clock.Now())
	})
	if err != nil {
		return gatedomain.GateResult{}, err
	}
	s.recordDecision("pay", result.Passed)
	return result, nil
}

func (s *Service) evaluatePayGate(ctx context.Context, tx *gorm.DB, req gatedomain.PayGateRequest) (gatedomain.GateResult, error) {
	var reasons []gatedomain.Reason

	commit, err := repository.LatestApprovedCommitGate(ctx, tx, req.TenantID, req.PayRunID)
	if err != nil {
		return gatedomain.GateResult{}, err
	}
	if commit == nil {
		reasons = append(reasons, gatedomain.Reason{
			Code: "no_commit_gate_approval", Severity: gatedomain.SeverityError,
			Message: "no approved commit-gate evaluation for this pay run",
		})
	}

	held, err := repository.HeldReservationExists(ctx, tx, req.TenantID, req.PayRunID)
	if err != nil {
		return gatedomain.GateResult{}, err
	}
	if !held {
		reasons = append(reasons, gatedomain.Reason{
			Code: "no_held_reservation", Severity: gatedomain.SeverityError,
			Message: "no held reservation covers this pay run",
		})
	}

	frozen, reason, err := s.freeze.IsFrozen(ctx, req.LegalEntityID.String())
	if err != nil {
		return gatedomain.GateResult{}, err
	}
	if frozen {
		reasons = append(reasons, gatedomain.Reason{
			Code: "funding_account_frozen", Severity: gatedomain.SeverityError,
			Message: "an active hold blocks this funding account",
			Data:    map[string]any{"reason": reason},
		})
	}

	var required, available money.Amount
	if commit != nil {
		required = commit.RequiredAmount
		available = commit.AvailableAmount
	}

	return gatedomain.GateResult{
		Passed:          !hasError(reasons),
		AvailableAmount: available,
		RequiredAmount:  required,
		Reasons:         reasons,
	}, nil
}

func (s *Service) recordDecision(gate string, passed bool) {
	if s.obsMetrics == nil {
		return
	}
	outcome := "approved"
	if !passed {
		outcome = "blocked"
	}
	s.obsMetrics.RecordFundingGateDecision(context.Background(), gate, outcome)
}

func hasError(reasons []gatedomain.Reason) bool {
	for _, r := range reasons {
		if r.Severity == gatedomain.SeverityError {
			return true
		}
	}
	return false
}

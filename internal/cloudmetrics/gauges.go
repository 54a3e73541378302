package cloudmetrics

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Gauges are fleet-level PSP gauges: queue depth and tenant counts an
// operator dashboard polls from the pushgateway rather than per-instance
// scraping.
type Gauges struct {
	memoryUsage       prometheus.Gauge
	tenantsTotal      prometheus.Gauge
	openReservations  prometheus.Gauge
	pendingInstructions prometheus.Gauge
	unmatchedSettlements prometheus.Gauge
}

// NewGauges registers the fleet gauges against registry.
func NewGauges(registry *prometheus.Registry) *Gauges {
	g := &Gauges{
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pspcore_process_memory_bytes",
			Help: "Resident memory of the process as reported by runtime.MemStats.Sys.",
		}),
		tenantsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pspcore_tenants_total",
			Help: "Number of distinct tenants with at least one ledger account.",
		}),
		openReservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pspcore_open_reservations_total",
			Help: "Reservations currently held (not yet released or consumed).",
		}),
		pendingInstructions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pspcore_pending_instructions_total",
			Help: "Payment instructions not yet in a terminal state.",
		}),
		unmatchedSettlements: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pspcore_unmatched_settlements_total",
			Help: "Settlement records ingested but not linked to a payment instruction.",
		}),
	}
	registry.MustRegister(
		g.memoryUsage,
		g.tenantsTotal,
		g.openReservations,
		g.pendingInstructions,
		g.unmatchedSettlements,
	)
	return g
}

// RefreshSystem updates the process-level gauge from runtime stats.
func (g *Gauges) RefreshSystem() {
	if g == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	g.memoryUsage.Set(float64(m.Sys))
}

// RefreshFleet recomputes the domain gauges from the database. Each query is
// best-effort: a failed count leaves the previous value in place rather than
// resetting to zero.
func (g *Gauges) RefreshFleet(ctx context.Context, db *gorm.DB) {
	if g == nil || db == nil {
		return
	}

	var tenants int64
	if err := db.WithContext(ctx).Table("ledger_account").
		Distinct("tenant_id").Count(&tenants).Error; err == nil {
		g.tenantsTotal.Set(float64(tenants))
	}

	var reservations int64
	if err := db.WithContext(ctx).Table("reservation").
		Where("status = ?", "held").Count(&reservations).Error; err == nil {
		g.openReservations.Set(float64(reservations))
	}

	var pending int64
	if err := db.WithContext(ctx).Table("payment_instruction").
		Where("status NOT IN (?)", []string{"settled", "failed", "returned", "canceled"}).
		Count(&pending).Error; err == nil {
		g.pendingInstructions.Set(float64(pending))
	}

	var unmatched int64
	if err := db.WithContext(ctx).Table("settlement_event").
		Where("NOT EXISTS (SELECT 1 FROM settlement_link sl WHERE sl.settlement_event_id = settlement_event.settlement_event_id)").Count(&unmatched).Error; err == nil {
		g.unmatchedSettlements.Set(float64(unmatched))
	}
}

package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// Rejection reasons reported by Admission.
const (
	ReasonAtCapacity    = "at_capacity"
	ReasonLoadShed      = "load_shed"
	ReasonBelowMinValue = "below_min_value"
)

// Decision is the outcome of an admission check. Rejections are not errors.
type Decision struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
	Live     int    `json:"live"`
}

// AdmissionConfig holds capacity and pricing policy.
type AdmissionConfig struct {
	MaxConcurrent     int
	LoadShedRatio     float64
	MinValue          decimal.Decimal
	DefaultDurationMs int64
	MinDurationMs     int64
	MaxDurationMs     int64
	ReserveRatio      decimal.Decimal
	IncrementRatio    decimal.Decimal
	MinIncrement      decimal.Decimal
}

// DefaultAdmissionConfig returns the stock policy.
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		MaxConcurrent:     10,
		LoadShedRatio:     0.8,
		MinValue:          decimal.NewFromInt(100),
		DefaultDurationMs: 500,
		MinDurationMs:     100,
		MaxDurationMs:     5000,
		ReserveRatio:      decimal.RequireFromString("0.7"),
		IncrementRatio:    decimal.RequireFromString("0.1"),
		MinIncrement:      decimal.NewFromInt(50),
	}
}

// Admission decides whether a trigger becomes an auction.
type Admission struct {
	state  *State
	cfg    AdmissionConfig
	events *emitter
	now    func() time.Time
	logger *slog.Logger
}

// NewAdmission creates an Admission controller over state.
func NewAdmission(state *State, cfg AdmissionConfig, sinks Sinks, logger *slog.Logger) *Admission {
	logger = logger.With(slog.String("component", "admission"))
	return &Admission{
		state:  state,
		cfg:    cfg,
		events: &emitter{sinks: sinks, now: time.Now, logger: logger},
		now:    time.Now,
		logger: logger,
	}
}

// Admit checks capacity, load shedding and minimum value, then creates a
// pending auction. The capacity check and creation are atomic with respect to
// other admissions.
func (ad *Admission) Admit(ctx context.Context, trig domain.Trigger) (domain.Auction, Decision) {
	a, d := ad.state.admit(func(live int) (*domain.Auction, Decision) {
		if reason := ad.reject(live, trig); reason != "" {
			return nil, Decision{Reason: reason, Live: live}
		}
		a := ad.build(trig)
		return &a, Decision{Admitted: true, Live: live + 1}
	})

	if !d.Admitted {
		ad.events.emit(ctx, domain.EventTriggerRejected, "", map[string]any{
			"trigger_id": trig.ID,
			"reason":     d.Reason,
		},
			slog.String("trigger_id", trig.ID),
			slog.String("trigger_type", string(trig.Type)),
			slog.String("reason", d.Reason),
			slog.Int("live", d.Live),
		)
		return domain.Auction{}, d
	}

	ad.state.Persist(ctx)
	ad.events.emit(ctx, domain.EventAuctionCreated, a.ID, a,
		slog.String("trigger_type", string(a.TriggerType)),
		slog.String("game_id", a.GameID),
		slog.String("base_price", a.BasePrice.StringFixed(2)),
		slog.String("importance", string(a.Importance)),
		slog.Int64("duration_ms", a.DurationMs),
	)
	return a, d
}

func (ad *Admission) reject(live int, trig domain.Trigger) string {
	if live >= ad.cfg.MaxConcurrent {
		return ReasonAtCapacity
	}
	if float64(live) >= ad.cfg.LoadShedRatio*float64(ad.cfg.MaxConcurrent) && trig.Importance.Sheddable() {
		return ReasonLoadShed
	}
	if trig.EstimatedValue.LessThan(ad.cfg.MinValue) {
		return ReasonBelowMinValue
	}
	return ""
}

func (ad *Admission) build(trig domain.Trigger) domain.Auction {
	value := trig.EstimatedValue
	increment := value.Mul(ad.cfg.IncrementRatio).Round(2)
	if increment.LessThan(ad.cfg.MinIncrement) {
		increment = ad.cfg.MinIncrement
	}
	team := trig.TeamID
	if team == "" {
		team = domain.TeamBoth
	}
	players := append([]string{}, trig.PlayerIDs...)

	return domain.Auction{
		ID:              uuid.NewString(),
		TriggerID:       trig.ID,
		TriggerType:     trig.Type,
		GameID:          trig.GameID,
		Status:          domain.AuctionStatusPending,
		Importance:      trig.Importance,
		BasePrice:       value,
		ReservePrice:    value.Mul(ad.cfg.ReserveRatio).Round(2),
		IncrementAmount: increment,
		ContextScore:    trig.ContextScore,
		Period:          trig.Period,
		TeamID:          team,
		PlayerIDs:       players,
		DurationMs:      ad.duration(trig.Importance),
		CurrentHighBid:  decimal.Zero,
		BidIDs:          []string{},
		CreatedAt:       ad.now(),
	}
}

// duration stretches critical auctions and shortens low ones within bounds.
func (ad *Admission) duration(imp domain.Importance) int64 {
	d := ad.cfg.DefaultDurationMs
	switch imp {
	case domain.ImportanceCritical:
		return min(d*3/2, ad.cfg.MaxDurationMs)
	case domain.ImportanceLow:
		return max(d/2, ad.cfg.MinDurationMs)
	}
	return d
}

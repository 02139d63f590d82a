package trigger

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// TypeConfig is the valuation entry for one trigger type.
type TypeConfig struct {
	BaseValue  decimal.Decimal
	Importance domain.Importance
	Multiplier float64
}

// fallbackType applies to trigger types with no configured entry.
var fallbackType = TypeConfig{
	BaseValue:  decimal.NewFromInt(1000),
	Importance: domain.ImportanceNormal,
	Multiplier: 1.0,
}

// Valuator assigns a type, value and importance to markers.
type Valuator struct {
	types     map[domain.TriggerType]TypeConfig
	modifiers map[string]float64
	order     []string
	now       func() time.Time
	logger    *slog.Logger
}

// NewValuator creates a Valuator from per-type valuation entries and context
// modifiers. Both maps are copied.
func NewValuator(types map[domain.TriggerType]TypeConfig, modifiers map[string]float64, logger *slog.Logger) *Valuator {
	v := &Valuator{
		types:     make(map[domain.TriggerType]TypeConfig, len(types)),
		modifiers: make(map[string]float64, len(modifiers)),
		now:       time.Now,
		logger:    logger.With(slog.String("component", "valuator")),
	}
	for k, tc := range types {
		v.types[k] = tc
	}
	for k, m := range modifiers {
		v.modifiers[k] = m
	}

	fixed := make(map[string]bool, len(contextFlags))
	for _, f := range contextFlags {
		fixed[f] = true
		v.order = append(v.order, f)
	}
	var extra []string
	for k := range modifiers {
		if !fixed[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	v.order = append(v.order, extra...)
	return v
}

// TypeConfig returns the valuation entry for t, or the fallback entry.
func (v *Valuator) TypeConfig(t domain.TriggerType) TypeConfig {
	if tc, ok := v.types[t]; ok {
		return tc
	}
	return fallbackType
}

// Evaluate maps a marker to a trigger. Markers without a recognised
// event_type return ok=false.
func (v *Valuator) Evaluate(m domain.Marker) (domain.Trigger, bool) {
	raw, _ := m.Metadata["event_type"].(string)
	tt, ok := LookupEventType(raw)
	if !ok {
		v.logger.Debug("trigger.rejected",
			slog.String("reason", "unknown_event_type"),
			slog.String("event_type", raw),
		)
		return domain.Trigger{}, false
	}

	tc := v.TypeConfig(tt)
	score := v.ContextScore(m.Metadata) * tc.Multiplier
	value := tc.BaseValue.Mul(decimal.NewFromFloat(score)).Round(2)

	trig := domain.Trigger{
		ID:             uuid.NewString(),
		Marker:         m.Clone(),
		Type:           tt,
		GameID:         stringField(m.Metadata, "game_id", "unknown"),
		Period:         stringField(m.Metadata, "period", "1"),
		TeamID:         stringField(m.Metadata, "team_id", ""),
		PlayerIDs:      stringList(m.Metadata["player_ids"]),
		Importance:     importanceFor(score, tc.Importance),
		BaseValue:      tc.BaseValue,
		ContextScore:   score,
		EstimatedValue: value,
		Metadata:       copyMap(m.Metadata),
		CreatedAt:      v.now(),
	}

	v.logger.Info("trigger.created",
		slog.String("trigger_id", trig.ID),
		slog.String("type", string(trig.Type)),
		slog.String("game_id", trig.GameID),
		slog.Float64("context_score", score),
		slog.String("estimated_value", value.StringFixed(2)),
		slog.String("importance", string(trig.Importance)),
	)
	return trig, true
}

// ContextScore multiplies the modifiers of every truthy context flag in
// metadata. The type multiplier is not included.
func (v *Valuator) ContextScore(meta map[string]any) float64 {
	score := 1.0
	for _, flag := range v.order {
		mod, ok := v.modifiers[flag]
		if !ok || !truthy(meta[flag]) {
			continue
		}
		score *= mod
	}
	return score
}

func importanceFor(score float64, configured domain.Importance) domain.Importance {
	switch {
	case score >= 2.0:
		return domain.ImportanceCritical
	case score >= 1.5:
		return domain.ImportanceHigh
	case score <= 0.7:
		return domain.ImportanceLow
	}
	if !configured.Valid() {
		return domain.ImportanceNormal
	}
	return configured
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return false
}

func stringField(meta map[string]any, key, def string) string {
	switch x := meta[key].(type) {
	case string:
		if x != "" {
			return x
		}
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	return def
}

func stringList(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
	case []string:
		out = append(out, x...)
	case string:
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

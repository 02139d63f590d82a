package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriggerType classifies the in-game moment that may be auctioned.
type TriggerType string

const (
	TriggerGoalScored      TriggerType = "goal_scored"
	TriggerAssist          TriggerType = "assist"
	TriggerPenalty         TriggerType = "penalty"
	TriggerSave            TriggerType = "save"
	TriggerFight           TriggerType = "fight"
	TriggerPeriodEnd       TriggerType = "period_end"
	TriggerPeriodStart     TriggerType = "period_start"
	TriggerPowerPlay       TriggerType = "power_play"
	TriggerPowerPlayGoal   TriggerType = "power_play_goal"
	TriggerShortHandedGoal TriggerType = "short_handed_goal"
	TriggerBreakaway       TriggerType = "breakaway"
	TriggerOvertime        TriggerType = "overtime"
	TriggerShootout        TriggerType = "shootout"
	TriggerShootoutGoal    TriggerType = "shootout_goal"
	TriggerCommercialBreak TriggerType = "commercial_break"
	TriggerInstantReplay   TriggerType = "instant_replay"
	TriggerHighlight       TriggerType = "highlight"
	TriggerFaceoff         TriggerType = "faceoff"
	TriggerHit             TriggerType = "hit"
	TriggerBlock           TriggerType = "block"
	TriggerTakeaway        TriggerType = "takeaway"
	TriggerGiveaway        TriggerType = "giveaway"
)

// Importance ranks how valuable a trigger is; admission sheds low and normal
// triggers first under load.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceNormal   Importance = "normal"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// Valid reports whether i is one of the four importance levels.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceNormal, ImportanceHigh, ImportanceCritical:
		return true
	}
	return false
}

// Sheddable reports whether triggers of this importance may be rejected when
// the system is near capacity.
func (i Importance) Sheddable() bool {
	return i == ImportanceLow || i == ImportanceNormal
}

// Trigger is a typed, valued interpretation of a Marker.
type Trigger struct {
	ID             string          `json:"id"`
	Marker         Marker          `json:"marker"`
	Type           TriggerType     `json:"trigger_type"`
	GameID         string          `json:"game_id"`
	Period         string          `json:"period"`
	TeamID         string          `json:"team_id,omitempty"`
	PlayerIDs      []string        `json:"player_ids"`
	Importance     Importance      `json:"importance"`
	BaseValue      decimal.Decimal `json:"base_value"`
	ContextScore   float64         `json:"context_score"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	Metadata       map[string]any  `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
}

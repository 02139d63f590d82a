// Package trigger turns decoded markers into valued auction triggers.
package trigger

import (
	"strings"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// eventTypes maps the broadcaster's event_type vocabulary onto trigger types.
var eventTypes = map[string]domain.TriggerType{
	"goal":       domain.TriggerGoalScored,
	"assist":     domain.TriggerAssist,
	"penalty":    domain.TriggerPenalty,
	"save":       domain.TriggerSave,
	"fight":      domain.TriggerFight,
	"powerplay":  domain.TriggerPowerPlay,
	"pp_goal":    domain.TriggerPowerPlayGoal,
	"sh_goal":    domain.TriggerShortHandedGoal,
	"commercial": domain.TriggerCommercialBreak,
	"replay":     domain.TriggerInstantReplay,
	"highlight":  domain.TriggerHighlight,
	"overtime":   domain.TriggerOvertime,
	"shootout":   domain.TriggerShootout,
	"so_goal":    domain.TriggerShootoutGoal,
	"hit":        domain.TriggerHit,
	"block":      domain.TriggerBlock,
}

// LookupEventType resolves a raw event_type, case-insensitively.
func LookupEventType(eventType string) (domain.TriggerType, bool) {
	t, ok := eventTypes[strings.ToLower(strings.TrimSpace(eventType))]
	return t, ok
}

// EventTypes returns the accepted event_type names.
func EventTypes() []string {
	out := make([]string, 0, len(eventTypes))
	for k := range eventTypes {
		out = append(out, k)
	}
	return out
}

// contextFlags is the fixed evaluation order for context modifiers. Extra
// configured modifiers are applied afterwards in name order.
var contextFlags = []string{
	"is_overtime",
	"is_playoffs",
	"is_finals",
	"star_player",
	"rival_teams",
	"late_period",
	"close_game",
	"sellout_crowd",
}

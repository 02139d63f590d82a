package main

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/alanyoungcy/scteauction/internal/trigger"
)

const (
	ptsHz         = 90000
	periods       = 3
	periodSeconds = 20 * 60
)

type simEvent struct {
	pts      uint64
	metadata map[string]any
}

// simulator produces a plausible hockey game: time only moves forward, play
// runs through three periods and then overtime, and context flags follow the
// game clock.
type simulator struct {
	game   string
	rng    *rand.Rand
	kinds  []string
	clock  int // game seconds elapsed
	period int
	home   int
	away   int
}

func newSimulator(game string, seed int64) *simulator {
	kinds := trigger.EventTypes()
	sort.Strings(kinds)
	return &simulator{
		game:   game,
		rng:    rand.New(rand.NewSource(seed)),
		kinds:  kinds,
		period: 1,
	}
}

func (s *simulator) next() simEvent {
	s.clock += 15 + s.rng.Intn(120)
	if s.period <= periods && s.clock >= s.period*periodSeconds {
		s.period++
	}

	kind := s.kinds[s.rng.Intn(len(s.kinds))]
	switch kind {
	case "goal", "pp_goal", "sh_goal", "so_goal":
		if s.rng.Intn(2) == 0 {
			s.home++
		} else {
			s.away++
		}
	}

	inPeriod := s.clock - (s.period-1)*periodSeconds
	meta := map[string]any{
		"event_type":  kind,
		"game_id":     s.game,
		"period":      s.periodLabel(),
		"is_overtime": s.period > periods,
		"late_period": inPeriod > periodSeconds*3/4,
		"close_game":  abs(s.home-s.away) <= 1,
		"score":       strconv.Itoa(s.home) + "-" + strconv.Itoa(s.away),
	}
	if s.rng.Intn(5) == 0 {
		meta["star_player"] = true
	}
	return simEvent{pts: uint64(s.clock) * ptsHz, metadata: meta}
}

func (s *simulator) periodLabel() string {
	if s.period > periods {
		return "OT"
	}
	return strconv.Itoa(s.period)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

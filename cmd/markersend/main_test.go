package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/marker"
	"github.com/alanyoungcy/scteauction/internal/trigger"
)

func TestSimulatorIsDeterministicPerSeed(t *testing.T) {
	a := newSimulator("G1", 42)
	b := newSimulator("G1", 42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.next(), b.next())
	}
}

func TestSimulatorEventsAreValuable(t *testing.T) {
	sim := newSimulator("G7", 7)
	var last uint64
	for i := 0; i < 200; i++ {
		ev := sim.next()
		assert.Greater(t, ev.pts, last)
		last = ev.pts

		kind, _ := ev.metadata["event_type"].(string)
		_, ok := trigger.LookupEventType(kind)
		assert.True(t, ok, kind)
		assert.Equal(t, "G7", ev.metadata["game_id"])
	}
	assert.Equal(t, "OT", sim.periodLabel())
}

func TestEncodedEventsDecode(t *testing.T) {
	ev := newSimulator("G1", 1).next()
	payload, err := marker.Encode(domain.CommandSpliceInsert, ev.pts, ev.metadata)
	require.NoError(t, err)

	m, ok := marker.Decode(payload, "test", time.Now())
	require.True(t, ok)
	assert.Equal(t, domain.CommandSpliceInsert, m.CommandType)
	require.NotNil(t, m.PTS)
	assert.Equal(t, ev.pts, *m.PTS)
	assert.Equal(t, ev.metadata["event_type"], m.Metadata["event_type"])
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, 3.5, parseValue("3.5"))
	assert.Equal(t, "home", parseValue("home"))
}

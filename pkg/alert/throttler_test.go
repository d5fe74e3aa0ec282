package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

func seen(class string, meters float64) detection.Annotated {
	return detection.Annotated{
		Detection: detection.Detection{Class: detection.Class(class), Confidence: 0.9},
		Distance:  detection.At(meters),
	}
}

func seenNoDistance(class string) detection.Annotated {
	return detection.Annotated{Detection: detection.Detection{Class: detection.Class(class), Confidence: 0.9}}
}

func classes(alerts []Alert) []detection.Class {
	out := make([]detection.Class, len(alerts))
	for i, a := range alerts {
		out[i] = a.Class
	}
	return out
}

func TestThrottler_CooldownBoundary(t *testing.T) {
	tests := []struct {
		name    string
		second  float64
		alerted bool
	}{
		{"well inside cooldown", 0.5, false},
		{"just before cooldown", 1.999, false},
		{"exactly at cooldown", 2.0, true},
		{"after cooldown", 3.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThrottler(DefaultPolicy())
			require.Len(t, th.Decide([]detection.Annotated{seen("Chair", 1.0)}, at(0)), 1)

			got := th.Decide([]detection.Annotated{seen("Chair", 1.0)}, at(tt.second))
			if tt.alerted {
				assert.Equal(t, []detection.Class{"Chair"}, classes(got))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestThrottler_CooldownRestartsOnRealert(t *testing.T) {
	th := NewThrottler(DefaultPolicy())
	dets := []detection.Annotated{seen("Door", 1.2)}

	assert.Len(t, th.Decide(dets, at(0)), 1)
	assert.Len(t, th.Decide(dets, at(2)), 1)
	assert.Empty(t, th.Decide(dets, at(3.5)), "cooldown counts from the re-alert at t=2")
	assert.Len(t, th.Decide(dets, at(4)), 1)
}

func TestThrottler_DisappearanceResetsState(t *testing.T) {
	th := NewThrottler(DefaultPolicy())

	require.Len(t, th.Decide([]detection.Annotated{seen("Stairs", 1.0)}, at(0)), 1)
	require.Empty(t, th.Decide([]detection.Annotated{seen("Chair", 5.0)}, at(0.1)))
	assert.NotContains(t, th.Tracked(), detection.Class("Stairs"))

	got := th.Decide([]detection.Annotated{seen("Stairs", 1.0)}, at(0.2))
	assert.Equal(t, []detection.Class{"Stairs"}, classes(got))
}

func TestThrottler_OneAlertPerClassPerFrame(t *testing.T) {
	th := NewThrottler(DefaultPolicy())
	dets := []detection.Annotated{
		seen("Person", 1.8),
		seen("Person", 0.7),
		seen("Person", 1.1),
		seen("Chair", 1.9),
	}

	got := th.Decide(dets, at(0))
	require.Len(t, got, 2)
	assert.Equal(t, []detection.Class{"Chair", "Person"}, classes(got))
	assert.InDelta(t, 0.7, got[1].Distance.Meters, 1e-12, "alert carries the nearest distance")
	assert.Equal(t, at(0), got[1].At)
}

func TestThrottler_ProximityIsStrict(t *testing.T) {
	th := NewThrottler(DefaultPolicy())

	// 700 * 0.06 / 21 == 2.0 sits exactly on the threshold
	onBoundary := detection.At(700 * 0.06 / 21)
	require.InDelta(t, 2.0, onBoundary.Meters, 1e-12)

	got := th.Decide([]detection.Annotated{{Detection: detection.Detection{Class: "Person"}, Distance: onBoundary}}, at(0))
	assert.Empty(t, got, "distance == threshold does not alert")

	got = th.Decide([]detection.Annotated{seen("Person", 1.9999)}, at(0.1))
	assert.Len(t, got, 1)
}

func TestThrottler_ReferenceScenario(t *testing.T) {
	th := NewThrottler(Policy{ProximityThreshold: 2.0, Cooldown: 2 * time.Second})
	person := []detection.Annotated{seen("Person", 1.5)}

	assert.Len(t, th.Decide(person, at(0)), 1, "t=0 first sighting alerts")
	assert.Empty(t, th.Decide(person, at(1.0)), "t=1.0 still cooling down")
	assert.Empty(t, th.Decide(nil, at(1.5)), "t=1.5 person leaves the frame")
	assert.Len(t, th.Decide(person, at(1.6)), 1, "t=1.6 state cleared by disappearance")
}

func TestThrottler_EmptyFramesKeepStateEmpty(t *testing.T) {
	th := NewThrottler(DefaultPolicy())
	th.Decide([]detection.Annotated{seen("Wall", 0.4)}, at(0))
	require.Len(t, th.Tracked(), 1)

	for i := 1; i <= 5; i++ {
		assert.Empty(t, th.Decide(nil, at(float64(i))))
		assert.Empty(t, th.Tracked())
	}
}

func TestThrottler_AbsentDistanceKeepsCooldownAlive(t *testing.T) {
	th := NewThrottler(DefaultPolicy())

	require.Len(t, th.Decide([]detection.Annotated{seen("Table", 1.0)}, at(0)), 1)

	// still visible but no distance: never alerts, but the record survives
	assert.Empty(t, th.Decide([]detection.Annotated{seenNoDistance("Table")}, at(0.5)))
	assert.Contains(t, th.Tracked(), detection.Class("Table"))

	assert.Empty(t, th.Decide([]detection.Annotated{seen("Table", 1.0)}, at(1.0)), "cooldown from t=0 still applies")
	assert.Len(t, th.Decide([]detection.Annotated{seen("Table", 1.0)}, at(2.0)), 1)
}

func TestThrottler_FarDetectionCountsAsPresent(t *testing.T) {
	th := NewThrottler(DefaultPolicy())
	require.Len(t, th.Decide([]detection.Annotated{seen("Chair", 1.0)}, at(0)), 1)

	assert.Empty(t, th.Decide([]detection.Annotated{seen("Chair", 6.0)}, at(0.5)))
	assert.Contains(t, th.Tracked(), detection.Class("Chair"))
	assert.Empty(t, th.Decide([]detection.Annotated{seen("Chair", 1.0)}, at(1.0)))
}

func TestThrottler_AnnounceWithoutDistance(t *testing.T) {
	th := NewThrottler(Policy{ProximityThreshold: 2, Cooldown: time.Hour, AnnounceWithoutDistance: true})

	got := th.Decide([]detection.Annotated{seenNoDistance("Person"), seen("Door", 4.0)}, at(0))
	require.Len(t, got, 1, "far doors still need to be close")
	assert.Equal(t, detection.Class("Person"), got[0].Class)
	assert.False(t, got[0].Distance.Valid)

	// announced once while visible
	assert.Empty(t, th.Decide([]detection.Annotated{seenNoDistance("Person")}, at(10)))
	th.Decide(nil, at(11))
	assert.Len(t, th.Decide([]detection.Annotated{seenNoDistance("Person")}, at(12)), 1)
}

func TestThrottler_PrefersValidDistanceInPresenceMode(t *testing.T) {
	th := NewThrottler(Policy{ProximityThreshold: 2, AnnounceWithoutDistance: true})

	got := th.Decide([]detection.Annotated{seenNoDistance("Person"), seen("Person", 1.2)}, at(0))
	require.Len(t, got, 1)
	assert.True(t, got[0].Distance.Valid)
}

func TestThrottler_Reset(t *testing.T) {
	th := NewThrottler(DefaultPolicy())
	dets := []detection.Annotated{seen("Obstacle", 0.3)}

	th.Decide(dets, at(0))
	th.Reset()
	assert.Empty(t, th.Tracked())
	assert.Len(t, th.Decide(dets, at(0.1)), 1)
}

func TestThrottler_IndependentInstances(t *testing.T) {
	a := NewThrottler(DefaultPolicy())
	b := NewThrottler(DefaultPolicy())
	dets := []detection.Annotated{seen("Person", 1.0)}

	assert.Len(t, a.Decide(dets, at(0)), 1)
	assert.Len(t, b.Decide(dets, at(0.5)), 1, "sessions share no state")
}

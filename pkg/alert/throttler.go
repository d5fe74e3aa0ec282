// Package alert decides which detections warrant a spoken alert.
//
// A Throttler keeps one cooldown record per class label. A class alerts when
// one of its detections is closer than the proximity threshold and the class
// either has no record or its cooldown has elapsed. Records for classes that
// are no longer detected are forgotten, so an object that leaves the view and
// comes back is announced again immediately.
//
// Boundaries: the proximity test is strict (distance < threshold) and the
// cooldown test is inclusive (now - last >= cooldown).
package alert

import (
	"sort"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// Policy configures a Throttler.
type Policy struct {
	ProximityThreshold float64       // alert only below this distance
	Cooldown           time.Duration // minimum gap between alerts of one class

	// AnnounceWithoutDistance lets detections with no distance estimate
	// qualify. Detections with a valid distance still need to be close.
	AnnounceWithoutDistance bool
}

// DefaultPolicy is 2 meters with a 2 second cooldown.
func DefaultPolicy() Policy {
	return Policy{
		ProximityThreshold: 2.0,
		Cooldown:           2 * time.Second,
	}
}

// Alert is one class to announce in the current frame.
type Alert struct {
	Class    detection.Class    `json:"class"`
	Distance detection.Distance `json:"distance"`
	At       time.Time          `json:"at"`
}

// Throttler holds the per-class cooldown state. It is not safe for
// concurrent use; the frame loop owns it.
type Throttler struct {
	policy Policy
	last   map[detection.Class]time.Time
}

// NewThrottler creates a throttler with empty state.
func NewThrottler(p Policy) *Throttler {
	return &Throttler{
		policy: p,
		last:   make(map[detection.Class]time.Time),
	}
}

// Policy returns the active policy.
func (t *Throttler) Policy() Policy {
	return t.policy
}

// qualifies reports whether a single detection is close enough to alert.
func (t *Throttler) qualifies(d detection.Distance) bool {
	if !d.Valid {
		return t.policy.AnnounceWithoutDistance
	}
	return d.Meters < t.policy.ProximityThreshold
}

// Decide runs once per processed frame. It returns at most one alert per
// class, sorted by class name, and updates the cooldown state.
func (t *Throttler) Decide(dets []detection.Annotated, now time.Time) []Alert {
	// nearest qualifying detection per class
	nearest := make(map[detection.Class]detection.Distance)
	for _, d := range dets {
		if !t.qualifies(d.Distance) {
			continue
		}
		prev, seen := nearest[d.Class]
		if !seen || closer(d.Distance, prev) {
			nearest[d.Class] = d.Distance
		}
	}

	classes := make([]detection.Class, 0, len(nearest))
	for c := range nearest {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	var alerts []Alert
	for _, c := range classes {
		if last, ok := t.last[c]; ok && now.Sub(last) < t.policy.Cooldown {
			continue
		}
		t.last[c] = now
		alerts = append(alerts, Alert{Class: c, Distance: nearest[c], At: now})
	}

	present := detection.Classes(dets)
	for c := range t.last {
		if _, ok := present[c]; !ok {
			delete(t.last, c)
		}
	}

	return alerts
}

// closer orders valid distances before invalid ones, then by meters.
func closer(a, b detection.Distance) bool {
	if a.Valid != b.Valid {
		return a.Valid
	}
	return a.Valid && a.Meters < b.Meters
}

// Tracked returns a copy of the cooldown state.
func (t *Throttler) Tracked() map[detection.Class]time.Time {
	out := make(map[detection.Class]time.Time, len(t.last))
	for c, ts := range t.last {
		out[c] = ts
	}
	return out
}

// Reset forgets every class.
func (t *Throttler) Reset() {
	clear(t.last)
}

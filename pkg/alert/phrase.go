package alert

import (
	"fmt"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// Phrasing holds the spoken templates for one language.
type Phrasing struct {
	Distance string // class, meters
	Presence string // class
}

// Phrasings by language code.
var Phrasings = map[string]Phrasing{
	"en": {Distance: "%s at %.1f meters", Presence: "%s detected"},
	"es": {Distance: "%s a %.1f metros", Presence: "Detectado %s"},
}

// Phrase renders an alert for the voice sink.
func (p Phrasing) Phrase(a Alert) string {
	if a.Distance.Valid {
		return fmt.Sprintf(p.Distance, a.Class, a.Distance.Meters)
	}
	return fmt.Sprintf(p.Presence, a.Class)
}

// Category returns a human-readable distance bucket.
func Category(d detection.Distance) string {
	if !d.Valid {
		return "unknown"
	}
	switch m := d.Meters; {
	case m < 0.5:
		return "very close"
	case m < 1.0:
		return "close"
	case m < 2.0:
		return "nearby"
	case m < 3.0:
		return "moderate"
	default:
		return "far"
	}
}

package detection

import (
	"errors"
	"fmt"
)

// ErrEmptyVocabulary is returned when no class names are registered.
var ErrEmptyVocabulary = errors.New("detection: empty class vocabulary")

// Vocabulary maps model class ids to labels.
// It is fixed at startup and read-only afterwards.
type Vocabulary struct {
	names []Class
	index map[Class]int
}

// NewVocabulary registers names in model output order.
func NewVocabulary(names ...string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{
		names: make([]Class, len(names)),
		index: make(map[Class]int, len(names)),
	}
	for i, n := range names {
		c := Class(n)
		if _, dup := v.index[c]; dup {
			return nil, fmt.Errorf("detection: duplicate class %q", n)
		}
		v.names[i] = c
		v.index[c] = i
	}
	return v, nil
}

// Len returns the number of registered classes.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Name returns the label for a model class id.
func (v *Vocabulary) Name(id int) (Class, bool) {
	if id < 0 || id >= len(v.names) {
		return "", false
	}
	return v.names[id], true
}

// ID returns the model class id for a label.
func (v *Vocabulary) ID(c Class) (int, bool) {
	id, ok := v.index[c]
	return id, ok
}

// Contains reports whether c is registered.
func (v *Vocabulary) Contains(c Class) bool {
	_, ok := v.index[c]
	return ok
}

// Names returns the registered labels in id order.
func (v *Vocabulary) Names() []Class {
	out := make([]Class, len(v.names))
	copy(out, v.names)
	return out
}

package cache

import "fmt"

// Classification is the outcome of one access.
type Classification int

// The outcomes of an access. Every miss is exactly one of the three miss
// kinds.
const (
	Hit Classification = iota
	CompulsoryMiss
	ConflictMiss
	CapacityMiss
)

var classificationLabels = [...]string{
	Hit:            "hit",
	CompulsoryMiss: "compulsory",
	ConflictMiss:   "conflict",
	CapacityMiss:   "capacity",
}

// Classifications lists every classification in a fixed order.
var Classifications = []Classification{
	Hit, CompulsoryMiss, ConflictMiss, CapacityMiss,
}

// String returns the label written next to each trace line.
func (c Classification) String() string {
	if c < 0 || int(c) >= len(classificationLabels) {
		return fmt.Sprintf("Classification(%d)", int(c))
	}

	return classificationLabels[c]
}

// IsMiss returns true for every classification but Hit.
func (c Classification) IsMiss() bool {
	return c != Hit
}

// ParseClassification converts a label back to a classification.
func ParseClassification(label string) (Classification, error) {
	for c, l := range classificationLabels {
		if l == label {
			return Classification(c), nil
		}
	}

	return Hit, fmt.Errorf("unknown classification %q", label)
}

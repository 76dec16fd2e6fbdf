package trait

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Record is the latest synthesized characteristic value for one
// (user, kind) pair. At most one live Record exists per pair; the store
// replaces it wholesale on every successful synthesis.
type Record struct {
	UserID uuid.UUID
	Kind   Kind

	// Fields is the kind-schema payload: float traits in [0, 1],
	// string labels, or nil for fields the model could not score yet.
	Fields map[string]any

	// EvidenceCount is the number of syntheses ever committed for this
	// pair. Starts at 1 and only grows.
	EvidenceCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// marginFactor is the numerator of the confidence margin, 1.5081/sqrt(n).
// The resulting curve is a display contract: 7 records read as 43%,
// 17 as 63%, 27 as 71%, 50 as 79%.
const marginFactor = 1.5081

// Accuracy derives the display confidence for a record count. It is a
// pure function of the count and is never stored.
func Accuracy(evidenceCount int) float64 {
	switch {
	case evidenceCount <= 0:
		return 0.0
	case evidenceCount == 1:
		return 0.04
	case evidenceCount == 2:
		return 0.09
	default:
		return 1 - marginFactor/math.Sqrt(float64(evidenceCount))
	}
}

// Accuracy derives the record's display confidence from its evidence count.
func (r *Record) Accuracy() float64 {
	return Accuracy(r.EvidenceCount)
}

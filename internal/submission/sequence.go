package submission

import (
	"strconv"
	"sync/atomic"
)

// ListingSequenceStart seeds the listing id sequence; the first allocated
// id is 1001, keeping generated ids visually apart from low sentinel values.
const ListingSequenceStart = 1000

// Sequence allocates unique, strictly increasing listing identifiers.
// Safe for concurrent use. The sequence resets on restart, which is
// acceptable only because sessions do not survive restarts either.
type Sequence struct {
	last atomic.Int64
}

// NewSequence creates a sequence that starts allocating above start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.last.Store(start)
	return s
}

// Next returns the next listing identifier.
func (s *Sequence) Next() string {
	return strconv.FormatInt(s.last.Add(1), 10)
}

package submission

import (
	"sync"
	"time"
)

// RequiredPhotos is the number of photos a listing must carry.
const RequiredPhotos = 4

// Stage is the current step of the fixed collection sequence.
type Stage string

const (
	StageWaitingPhotos    Stage = "waiting_photos"
	StageWaitingVideo     Stage = "waiting_video"
	StageWaitingCity      Stage = "waiting_city"
	StageWaitingPrice     Stage = "waiting_price"
	StageWaitingCondition Stage = "waiting_condition"
)

// Status tags where a session lives: still collecting input from the
// seller, or completed and awaiting a moderator decision. A session is in
// exactly one phase at a time.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusPending    Status = "pending"
)

// Session is one seller's submission, from the first photo until the
// moderator decision removes it.
type Session struct {
	mu sync.Mutex

	UserID    int64
	ChatID    int64
	Username  string
	FirstName string

	ListingID string // allocated at creation, immutable
	Photos    []string
	Video     string
	City      string
	Price     int64
	Condition string

	Stage     Stage
	Status    Status
	CreatedAt time.Time
}

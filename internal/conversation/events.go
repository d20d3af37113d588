package conversation

import (
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
)

// Event is one user input routed to the engine.
type Event interface{ event() }

// Start begins a new workflow. With At set it skips the menus.
type Start struct{ At *time.Time }

// PickDate selects a relative day offset or the custom date/time entry.
type PickDate struct {
	Days   int
	Custom bool
}

// PickTime selects a menu time (HH:MM) for Date, or asks for a typed time.
type PickTime struct {
	Date   time.Time
	Clock  string
	Custom bool
}

type BackToDate struct{}

type Text struct{ Body string }

type Forwarded struct{ Ref post.MessageReference }

type Done struct{}

type ToggleChannel struct{ ID int64 }

type Confirm struct{}

type Cancel struct{}

func (Start) event()         {}
func (PickDate) event()      {}
func (PickTime) event()      {}
func (BackToDate) event()    {}
func (Text) event()          {}
func (Forwarded) event()     {}
func (Done) event()          {}
func (ToggleChannel) event() {}
func (Confirm) event()       {}
func (Cancel) event()        {}

type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	ReplyDatePicker
	ReplyTimePicker
	ReplyAskDateTime
	ReplyAskClock
	ReplyCollecting
	ReplyChannelPicker
	ReplyScheduled
	ReplyCancelled
	ReplyIdle
	ReplyRejected
)

// Reply tells the transport what to render. Only the fields relevant to Kind are set.
type Reply struct {
	Kind ReplyKind
	Err  error // ReplyRejected

	Date         time.Time // ReplyTimePicker, ReplyAskClock
	ScheduleTime time.Time
	Count        int // ReplyCollecting: loose + groups; ReplyScheduled: messages
	Channels     []post.Channel
	Selected     []int64
	PostID       string
}

// DateChoice is one entry of the date menu.
type DateChoice struct {
	Label string
	Days  int
}

var DateChoices = []DateChoice{
	{"Today", 0},
	{"Tomorrow", 1},
	{"+2 days", 2},
	{"+3 days", 3},
	{"+1 week", 7},
}

var TimeSlots = []string{"09:00", "12:00", "15:00", "18:00", "21:00"}

func validDays(d int) bool {
	for _, c := range DateChoices {
		if c.Days == d {
			return true
		}
	}
	return false
}

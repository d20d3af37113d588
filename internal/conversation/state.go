// Package conversation drives the per-user scheduling workflow: pick a date,
// pick a time, collect forwarded messages, pick channels, confirm.
package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
)

// State is the closed set of workflow steps. Only types in this package implement it.
type State interface {
	step() string
}

type AwaitingDate struct{}

type AwaitingCustomDateTime struct{}

type AwaitingCustomTime struct {
	Date time.Time `json:"date"` // IST midnight of the chosen day
}

type CollectingMessages struct {
	ScheduleTime time.Time               `json:"schedule_time"`
	Loose        []post.MessageReference `json:"loose,omitempty"`
	Groups       []post.MediaGroup       `json:"groups,omitempty"`
}

// Count is the number of loose messages plus distinct media groups.
func (c CollectingMessages) Count() int { return len(c.Loose) + len(c.Groups) }

type SelectingChannels struct {
	ScheduleTime time.Time               `json:"schedule_time"`
	Messages     []post.MessageReference `json:"messages"`
	Selected     []int64                 `json:"selected"`
}

func (s SelectingChannels) IsSelected(id int64) bool {
	for _, v := range s.Selected {
		if v == id {
			return true
		}
	}
	return false
}

func (AwaitingDate) step() string           { return "awaiting_date" }
func (AwaitingCustomDateTime) step() string { return "awaiting_custom_datetime" }
func (AwaitingCustomTime) step() string     { return "awaiting_custom_time" }
func (CollectingMessages) step() string     { return "collecting_messages" }
func (SelectingChannels) step() string      { return "selecting_channels" }

// Step names the variant; it is also the codec tag.
func Step(s State) string {
	if s == nil {
		return "idle"
	}
	return s.step()
}

type envelope struct {
	Step string          `json:"step"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes a state as {"step": ..., "data": ...}.
func Encode(s State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode: nil state")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Step: s.step(), Data: data})
}

func Decode(b []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	var (
		st  State
		err error
	)
	switch env.Step {
	case AwaitingDate{}.step():
		st = AwaitingDate{}
	case AwaitingCustomDateTime{}.step():
		st = AwaitingCustomDateTime{}
	case AwaitingCustomTime{}.step():
		var v AwaitingCustomTime
		err = json.Unmarshal(env.Data, &v)
		v.Date = post.InIST(v.Date)
		st = v
	case CollectingMessages{}.step():
		var v CollectingMessages
		err = json.Unmarshal(env.Data, &v)
		v.ScheduleTime = post.InIST(v.ScheduleTime)
		st = v
	case SelectingChannels{}.step():
		var v SelectingChannels
		err = json.Unmarshal(env.Data, &v)
		v.ScheduleTime = post.InIST(v.ScheduleTime)
		st = v
	default:
		return nil, fmt.Errorf("decode state: unknown step %q", env.Step)
	}
	if err != nil {
		return nil, fmt.Errorf("decode state %s: %w", env.Step, err)
	}
	return st, nil
}

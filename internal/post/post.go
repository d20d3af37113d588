// Package post holds the scheduled-post data model shared by the store,
// the scheduler, the delivery executor and the conversation engine.
package post

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// MessageReference points at an existing message that is re-delivered by forwarding.
type MessageReference struct {
	SourceChatID    int64  `json:"source_chat_id"`
	SourceMessageID int    `json:"source_message_id"`
	MediaGroupID    string `json:"media_group_id,omitempty"`
}

func (r MessageReference) Grouped() bool { return r.MediaGroupID != "" }

type ScheduledPost struct {
	ID           string             `json:"post_id"`
	ScheduleTime time.Time          `json:"schedule_time"`
	Channels     []int64            `json:"target_channel_ids"`
	Messages     []MessageReference `json:"messages"`
	Status       Status             `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
}

type Channel struct {
	ID   int64  `json:"channel_id"`
	Name string `json:"display_name"`
}

type MediaGroup struct {
	ID       string             `json:"id"`
	Messages []MessageReference `json:"messages"`
}

const idPrefix = "post_"

// NewID returns a random opaque post id.
func NewID() (string, error) {
	s, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate post id: %w", err)
	}
	return idPrefix + s, nil
}

var errMessageRef = errors.New("message reference needs chat and message id")

func (p ScheduledPost) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.ScheduleTime, validation.Required),
		validation.Field(&p.Channels, validation.Required, validation.Each(validation.Required)),
		validation.Field(&p.Messages, validation.Required, validation.Each(validation.By(func(v any) error {
			r, _ := v.(MessageReference)
			if r.SourceChatID == 0 || r.SourceMessageID <= 0 {
				return errMessageRef
			}
			return nil
		}))),
		validation.Field(&p.Status, validation.Required, validation.In(StatusScheduled, StatusSent, StatusCancelled)),
	)
	if err != nil {
		return &Error{Kind: KindValidation, Op: "post.validate", Msg: "invalid post " + p.ID, Err: err}
	}
	return nil
}

// Normalize returns a copy with times in IST and channel ids deduplicated in order.
func (p ScheduledPost) Normalize() ScheduledPost {
	p.ScheduleTime = InIST(p.ScheduleTime)
	if !p.CreatedAt.IsZero() {
		p.CreatedAt = InIST(p.CreatedAt)
	}
	seen := make(map[int64]struct{}, len(p.Channels))
	out := make([]int64, 0, len(p.Channels))
	for _, id := range p.Channels {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	p.Channels = out
	p.Messages = append([]MessageReference(nil), p.Messages...)
	return p
}

// Partition splits messages into media groups (first-seen order, intra-group
// order preserved) and loose messages.
func Partition(msgs []MessageReference) (groups []MediaGroup, loose []MessageReference) {
	idx := map[string]int{}
	for _, m := range msgs {
		if !m.Grouped() {
			loose = append(loose, m)
			continue
		}
		i, ok := idx[m.MediaGroupID]
		if !ok {
			i = len(groups)
			idx[m.MediaGroupID] = i
			groups = append(groups, MediaGroup{ID: m.MediaGroupID})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups, loose
}

// Flatten is the inverse used when a draft is finished: loose messages first,
// then every group in first-seen order.
func Flatten(loose []MessageReference, groups []MediaGroup) []MessageReference {
	n := len(loose)
	for _, g := range groups {
		n += len(g.Messages)
	}
	out := make([]MessageReference, 0, n)
	out = append(out, loose...)
	for _, g := range groups {
		out = append(out, g.Messages...)
	}
	return out
}

// AddToGroups appends ref to the bucket matching its media group id, creating
// the bucket at the end when it is new.
func AddToGroups(groups []MediaGroup, ref MessageReference) []MediaGroup {
	for i := range groups {
		if groups[i].ID == ref.MediaGroupID {
			groups[i].Messages = append(groups[i].Messages, ref)
			return groups
		}
	}
	return append(groups, MediaGroup{ID: ref.MediaGroupID, Messages: []MessageReference{ref}})
}

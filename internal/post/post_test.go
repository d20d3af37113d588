package post

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(chat int64, id int, group string) MessageReference {
	return MessageReference{SourceChatID: chat, SourceMessageID: id, MediaGroupID: group}
}

func TestPartitionKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	msgs := []MessageReference{
		ref(1, 1, "g"), ref(1, 2, ""), ref(1, 3, "h"), ref(1, 4, "g"), ref(1, 5, ""),
	}
	groups, loose := Partition(msgs)

	require.Len(t, groups, 2)
	assert.Equal(t, "g", groups[0].ID)
	assert.Equal(t, []MessageReference{ref(1, 1, "g"), ref(1, 4, "g")}, groups[0].Messages)
	assert.Equal(t, "h", groups[1].ID)
	assert.Equal(t, []MessageReference{ref(1, 2, ""), ref(1, 5, "")}, loose)

	flat := Flatten(loose, groups)
	assert.Equal(t, []MessageReference{
		ref(1, 2, ""), ref(1, 5, ""), ref(1, 1, "g"), ref(1, 4, "g"), ref(1, 3, "h"),
	}, flat)
}

func TestAddToGroups(t *testing.T) {
	t.Parallel()

	var gs []MediaGroup
	gs = AddToGroups(gs, ref(1, 1, "a"))
	gs = AddToGroups(gs, ref(1, 2, "b"))
	gs = AddToGroups(gs, ref(1, 3, "a"))
	require.Len(t, gs, 2)
	assert.Len(t, gs[0].Messages, 2)
	assert.Equal(t, 3, gs[0].Messages[1].SourceMessageID)
}

func TestNewIDIsPrefixedAndUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id, err := NewID()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id, "post_"))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := ScheduledPost{
		ID:           "post_x",
		ScheduleTime: time.Date(2030, 1, 1, 9, 0, 0, 0, IST),
		Channels:     []int64{-1001},
		Messages:     []MessageReference{ref(5, 10, "")},
		Status:       StatusScheduled,
	}
	require.NoError(t, ok.Validate())

	cases := map[string]func(p *ScheduledPost){
		"no id":       func(p *ScheduledPost) { p.ID = "" },
		"no time":     func(p *ScheduledPost) { p.ScheduleTime = time.Time{} },
		"no channels": func(p *ScheduledPost) { p.Channels = nil },
		"no messages": func(p *ScheduledPost) { p.Messages = nil },
		"bad ref":     func(p *ScheduledPost) { p.Messages = []MessageReference{ref(0, 1, "")} },
		"bad status":  func(p *ScheduledPost) { p.Status = "weird" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			p := ok
			mut(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestNormalizeDedupesChannels(t *testing.T) {
	t.Parallel()

	p := ScheduledPost{ScheduleTime: time.Date(2030, 1, 1, 3, 30, 0, 0, time.UTC), Channels: []int64{3, 1, 3, 2, 1}}
	n := p.Normalize()
	assert.Equal(t, []int64{3, 1, 2}, n.Channels)
	assert.Equal(t, 9, n.ScheduleTime.Hour())
	assert.Equal(t, IST, n.ScheduleTime.Location())
}

func TestParseHelpers(t *testing.T) {
	t.Parallel()

	at, err := ParseDateTime(" 2030-05-06   18:45 ")
	require.NoError(t, err)
	assert.Equal(t, "2030-05-06 18:45:00 IST", FormatIST(at))

	_, err = ParseDateTime("06/05/2030 18:45")
	require.ErrorIs(t, err, ErrBadDateTime)
	assert.Equal(t, KindValidation, KindOf(err))

	hh, mm, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, [2]int{7, 5}, [2]int{hh, mm})

	_, _, err = ParseClock("25:00")
	require.ErrorIs(t, err, ErrBadClock)

	d, err := ParseCompactDate("20300506")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 6, 0, 0, 0, 0, IST), d)
}

func TestRequireFuture(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, 1, 1, 14, 0, 0, 0, IST)
	require.ErrorIs(t, RequireFuture(CombineDate(now, 9, 0), now), ErrPastTime)
	require.ErrorIs(t, RequireFuture(now, now), ErrPastTime)
	require.NoError(t, RequireFuture(CombineDate(now.AddDate(0, 0, 1), 9, 0), now))
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	base := errors.New("disk full")
	err := Persistence("store.put", base)
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "store.put: disk full", err.Error())
	assert.Nil(t, Persistence("x", nil))
	assert.Equal(t, KindDelivery, KindOf(Delivery("forward", base)))
	assert.Equal(t, KindUnknown, KindOf(base))

	assert.Equal(t, "selected time is in the past", UserMessage(RequireFuture(time.Unix(0, 0), time.Now())))
	assert.Equal(t, "something went wrong, please try again", UserMessage(err))
}

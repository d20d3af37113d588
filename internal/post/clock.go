package post

import (
	"fmt"
	"strings"
	"time"
)

// IST is the canonical zone for every schedule time (Asia/Kolkata, no DST).
var IST = time.FixedZone("IST", 5*3600+30*60)

const (
	DateTimeLayout = "2006-01-02 15:04"
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	CompactDate    = "20060102"
	displayLayout  = "2006-01-02 15:04:05 IST"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().In(IST) }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

func InIST(t time.Time) time.Time { return t.In(IST) }

// Midnight returns 00:00 IST of the day containing t.
func Midnight(t time.Time) time.Time {
	t = InIST(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
}

// CombineDate sets the wall clock of date's IST day to hh:mm.
func CombineDate(date time.Time, hh, mm int) time.Time {
	d := InIST(date)
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, IST)
}

// ParseDateTime parses "YYYY-MM-DD HH:MM" as IST wall time.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, strings.Join(strings.Fields(s), " "), IST)
	if err != nil {
		return time.Time{}, &Error{Kind: KindValidation, Op: "post.parse_datetime", Msg: fmt.Sprintf("%q", s), Err: ErrBadDateTime}
	}
	return t, nil
}

// ParseClock parses "HH:MM" and returns hours and minutes.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, 0, &Error{Kind: KindValidation, Op: "post.parse_clock", Msg: fmt.Sprintf("%q", s), Err: ErrBadClock}
	}
	return t.Hour(), t.Minute(), nil
}

// ParseCompactDate parses a YYYYMMDD token as IST midnight.
func ParseCompactDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(CompactDate, s, IST)
	if err != nil {
		return time.Time{}, &Error{Kind: KindValidation, Op: "post.parse_date", Msg: fmt.Sprintf("%q", s), Err: ErrBadDateTime}
	}
	return t, nil
}

func FormatIST(t time.Time) string { return InIST(t).Format(displayLayout) }

// RequireFuture returns ErrPastTime unless at is strictly after now.
func RequireFuture(at, now time.Time) error {
	if !at.After(now) {
		return &Error{Kind: KindValidation, Op: "post.require_future", Msg: FormatIST(at), Err: ErrPastTime}
	}
	return nil
}

package domain

import (
	"strconv"
	"strings"
	"time"
)

// DefaultGameDuration is used when a court has no game duration set.
const DefaultGameDuration = 60

// DaySchedule is one weekday's opening hours. Start and End are "HH:mm".
type DaySchedule struct {
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// WeeklySchedule maps English weekday names ("Monday".."Sunday") to hours.
type WeeklySchedule map[string]DaySchedule

// Hours returns the opening window of the given weekday in minutes of day.
// ok is false when the day is missing, closed, or has unparseable times.
func (s WeeklySchedule) Hours(day time.Weekday) (open, close int, ok bool) {
	entry, found := s[WeekdayName(day)]
	if !found || entry.Closed {
		return 0, 0, false
	}
	open, err := ParseMinuteOfDay(entry.Start)
	if err != nil {
		return 0, 0, false
	}
	close, err = ParseMinuteOfDay(entry.End)
	if err != nil {
		return 0, 0, false
	}
	return open, close, true
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayName maps Go's Sunday-first weekday numbering onto the schedule keys.
func WeekdayName(day time.Weekday) string {
	if day == time.Sunday {
		return weekdayNames[6]
	}
	return weekdayNames[day-1]
}

// ParseMinuteOfDay parses "HH:mm" into minutes since midnight.
func ParseMinuteOfDay(s string) (int, error) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, ErrValidation("time must be HH:mm, got " + strconv.Quote(s))
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, ErrValidation("invalid hour in " + strconv.Quote(s))
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, ErrValidation("invalid minute in " + strconv.Quote(s))
	}
	if h == 24 && m != 0 {
		return 0, ErrValidation("time past 24:00 in " + strconv.Quote(s))
	}
	return h*60 + m, nil
}

// Club is a venue with courts. Location is nil when missing or malformed.
type Club struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Location *Point         `json:"location,omitempty"`
	Schedule WeeklySchedule `json:"schedule,omitempty"`
}

// Court belongs to a club by reference.
type Court struct {
	ID           string    `json:"id"`
	ClubID       string    `json:"club_id"`
	Name         string    `json:"name"`
	GameDuration int       `json:"game_duration"`
	CreatedAt    time.Time `json:"created_at"`
}

// Duration returns the game length, falling back to DefaultGameDuration.
func (c Court) Duration() time.Duration {
	minutes := c.GameDuration
	if minutes <= 0 {
		minutes = DefaultGameDuration
	}
	return time.Duration(minutes) * time.Minute
}

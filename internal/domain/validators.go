package domain

import (
	"fmt"
	"strings"
	"time"
)

// ValidateSearchRequest checks a request before it is stored.
func ValidateSearchRequest(r *SearchRequest) error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrValidation("user_id is required")
	}
	if r.Location == nil {
		return ErrValidation("location is required")
	}
	if r.DateTime.IsZero() {
		return ErrValidation("date_time is required")
	}
	return nil
}

// ValidateCourt checks a court before it is stored.
func ValidateCourt(c *Court) error {
	if strings.TrimSpace(c.ClubID) == "" {
		return ErrValidation("club_id is required")
	}
	if c.GameDuration < 0 {
		return ErrValidation(fmt.Sprintf("game_duration must not be negative, got %d", c.GameDuration))
	}
	if c.GameDuration > 24*60 {
		return ErrValidation(fmt.Sprintf("game_duration exceeds a day, got %d", c.GameDuration))
	}
	return nil
}

// ValidateSchedule rejects unknown weekday keys and unparseable open days.
// Closed days may omit their times.
func ValidateSchedule(s WeeklySchedule) error {
	known := make(map[string]bool, len(weekdayNames))
	for _, name := range weekdayNames {
		known[name] = true
	}
	for day, entry := range s {
		if !known[day] {
			return ErrValidation(fmt.Sprintf("unknown weekday %q", day))
		}
		// An open day without times never yields slots; it is skipped at provisioning.
		if entry.Closed || entry.Start == "" || entry.End == "" {
			continue
		}
		open, err := ParseMinuteOfDay(entry.Start)
		if err != nil {
			return err
		}
		close, err := ParseMinuteOfDay(entry.End)
		if err != nil {
			return err
		}
		if close <= open {
			return ErrValidation(fmt.Sprintf("%s closes before it opens", day))
		}
	}
	return nil
}

// ValidateHorizon bounds the number of days a provisioning run may cover.
func ValidateHorizon(days int) error {
	if days <= 0 || days > 60 {
		return ErrValidation(fmt.Sprintf("horizon must be between 1 and 60 days, got %d", days))
	}
	return nil
}

// ValidateWindow rejects non-positive matching windows.
func ValidateWindow(span time.Duration) error {
	if span <= 0 {
		return ErrValidation("window must be positive")
	}
	return nil
}

package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/coveworks/bulk-restore/internal/errors"
)

// Search directions understood by Window.
const (
	DirectionAfter  = "after"
	DirectionBefore = "before"
)

const (
	timestampField = "start_timestamp"

	// SortAscending and SortDescending order listings by backup start time.
	SortAscending  = timestampField
	SortDescending = "-" + timestampField

	timeLayout = "2006-01-02T15:04:05Z"
)

// DayOffset counts whole days back from the reference time. Input documents
// in the wild carry offsets both as numbers and as numeric strings, so both
// decode; anything non-integral is a ValidationError.
type DayOffset int

func (d *DayOffset) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		if f != math.Trunc(f) {
			return errors.NewValidationError("day offset", "not an integer: "+string(b))
		}
		*d = DayOffset(int(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errors.NewValidationError("day offset", fmt.Sprintf("not an integer: %q", s))
		}
		*d = DayOffset(n)
		return nil
	}
	return errors.NewValidationError("day offset", "not an integer: "+string(b))
}

// Window is a day-granular search window relative to a reference time.
// StartDayOffset marks the start of day N days back, EndDayOffset the end of
// day (23:59:59) N days back.
type Window struct {
	Direction      string    `json:"direction"`
	StartDayOffset DayOffset `json:"start_day_offset"`
	EndDayOffset   DayOffset `json:"end_day_offset"`
}

// SortAndFilter converts the window into a sort order and timestamp filter:
//   - "after":  timestamp > start AND timestamp <= end, ascending sort
//   - "before": timestamp <= end only, descending sort; no lower bound, so
//     the newest backups match even when older than the start offset
//   - anything else: no time constraint, ascending sort
func (w Window) SortAndFilter(now time.Time) (string, Expression, error) {
	if w.StartDayOffset < 0 {
		return "", nil, errors.NewValidationError("start_day_offset", "must not be negative")
	}
	if w.EndDayOffset < 0 {
		return "", nil, errors.NewValidationError("end_day_offset", "must not be negative")
	}

	now = now.UTC()
	startDay := now.AddDate(0, 0, -int(w.StartDayOffset))
	start := time.Date(startDay.Year(), startDay.Month(), startDay.Day(), 0, 0, 0, 0, time.UTC)
	endDay := now.AddDate(0, 0, -int(w.EndDayOffset))
	end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, 0, time.UTC)

	switch strings.ToLower(strings.TrimSpace(w.Direction)) {
	case DirectionAfter:
		expr := Expression{}.With(timestampField, Between(start.Format(timeLayout), end.Format(timeLayout)))
		return SortAscending, expr, nil
	case DirectionBefore:
		expr := Expression{}.With(timestampField, AtMost(end.Format(timeLayout)))
		return SortDescending, expr, nil
	default:
		return SortAscending, nil, nil
	}
}

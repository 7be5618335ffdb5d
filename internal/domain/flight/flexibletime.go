package flight

import (
	"encoding/json"
	"time"
)

// timeLayouts are tried in order when the wire value is a string.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FlexTime decodes the two date/time encodings the flight feed produces:
// an ISO-formatted string ("2025-07-20", "2025-07-20T08:30:00") or an integer
// sequence ([2025,7,20] or [2025,7,20,8,30]). Both decode to the same logical
// instant. An empty, null or malformed value decodes to the zero FlexTime
// instead of failing, so one bad field never aborts ingestion of the record.
type FlexTime struct {
	t     time.Time
	valid bool
}

// NewFlexTime wraps a concrete time.
func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{t: t, valid: !t.IsZero()}
}

// Time returns the decoded instant and whether one was present.
func (ft FlexTime) Time() (time.Time, bool) {
	return ft.t, ft.valid
}

// IsZero reports whether no value was present.
func (ft FlexTime) IsZero() bool {
	return !ft.valid
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error for a
// value it cannot interpret; the result is simply absent.
func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	*ft = FlexTime{}

	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil || s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				ft.t = t.UTC()
				ft.valid = true
				return nil
			}
		}
	case '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 3 {
			return nil
		}
		// [year, month, day, (hour, minute, (second))]
		for len(parts) < 6 {
			parts = append(parts, 0)
		}
		if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 {
			return nil
		}
		ft.t = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)
		ft.valid = true
	}
	return nil
}

// MarshalJSON renders the instant as RFC3339 UTC, or null when absent.
func (ft FlexTime) MarshalJSON() ([]byte, error) {
	if !ft.valid {
		return []byte("null"), nil
	}
	return json.Marshal(ft.t.UTC().Format(time.RFC3339))
}

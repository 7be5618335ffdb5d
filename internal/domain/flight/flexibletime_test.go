package flight

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTime_UnmarshalJSON(t *testing.T) {
	t.Run("ISO date string", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"2026-03-14"`), &ft))

		got, ok := ft.Time()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("ISO datetime string", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"2026-03-14T17:45:30"`), &ft))

		got, ok := ft.Time()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 14, 17, 45, 30, 0, time.UTC), got)
	})

	t.Run("RFC3339 with offset normalizes to UTC", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"2026-03-14T10:00:00+02:00"`), &ft))

		got, ok := ft.Time()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), got)
	})

	t.Run("three element array is midnight", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`[2026,3,14]`), &ft))

		got, ok := ft.Time()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("five element array carries the time of day", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`[2026,3,14,17,45]`), &ft))

		got, ok := ft.Time()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 14, 17, 45, 0, 0, time.UTC), got)
	})

	t.Run("six element array carries seconds", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`[2026,3,14,17,45,9]`), &ft))

		got, ok := ft.Time()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 14, 17, 45, 9, 0, time.UTC), got)
	})

	t.Run("both encodings decode to the same instant", func(t *testing.T) {
		var fromString, fromArray FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"2026-03-14T17:45"`), &fromString))
		require.NoError(t, json.Unmarshal([]byte(`[2026,3,14,17,45]`), &fromArray))

		s, _ := fromString.Time()
		a, _ := fromArray.Time()
		assert.True(t, s.Equal(a))
	})

	t.Run("malformed values decode to absent, not error", func(t *testing.T) {
		for _, raw := range []string{
			`null`,
			`""`,
			`"not-a-date"`,
			`"2026-13-40"`,
			`[2026]`,
			`[2026,3]`,
			`[2026,13,14]`,
			`[2026,3,99]`,
			`["2026","3","14"]`,
			`12345`,
			`{"year":2026}`,
		} {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(raw), &ft), "input %s", raw)
			assert.True(t, ft.IsZero(), "input %s should be absent", raw)
		}
	})

	t.Run("reuse clears previous value", func(t *testing.T) {
		var ft FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"2026-03-14"`), &ft))
		require.False(t, ft.IsZero())

		require.NoError(t, json.Unmarshal([]byte(`"garbage"`), &ft))
		assert.True(t, ft.IsZero())
	})
}

func TestFlexTime_MarshalJSON(t *testing.T) {
	t.Run("absent renders null", func(t *testing.T) {
		data, err := json.Marshal(FlexTime{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))
	})

	t.Run("present renders RFC3339 UTC", func(t *testing.T) {
		ft := NewFlexTime(time.Date(2026, 3, 14, 17, 45, 0, 0, time.UTC))
		data, err := json.Marshal(ft)
		require.NoError(t, err)
		assert.Equal(t, `"2026-03-14T17:45:00Z"`, string(data))
	})

	t.Run("round trip preserves the instant", func(t *testing.T) {
		orig := NewFlexTime(time.Date(2026, 3, 14, 17, 45, 9, 0, time.UTC))
		data, err := json.Marshal(orig)
		require.NoError(t, err)

		var back FlexTime
		require.NoError(t, json.Unmarshal(data, &back))
		got, ok := back.Time()
		require.True(t, ok)
		want, _ := orig.Time()
		assert.True(t, want.Equal(got))
	})
}

package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in   string
		want Timecode
	}{
		{"0", 0},
		{"5", 5},
		{"2.5", 2.5},
		{"90", 90},
		{"01:30", 90},
		{"1:05.250", 65.25},
		{"00:00:10", 10},
		{"01:02:03.5", 3723.5},
		{" 7 ", 7},
		{"0.0004", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimecode(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), got.Seconds(), 1e-9)
		})
	}
}

func TestParseTimecode_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1:2:3:4", "00:60", "01:75:00", "1e3", "1:", ":30", "1.5:00", "+5"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimecode(in)
			assert.ErrorIs(t, err, ErrInvalidTimecode)
		})
	}
}

func TestTimecode_String(t *testing.T) {
	assert.Equal(t, "0.000", Timecode(0).String())
	assert.Equal(t, "65.250", Timecode(65.25).String())
}

func TestTimecode_UnmarshalJSON(t *testing.T) {
	var v struct {
		Start    Timecode `json:"start"`
		Duration Timecode `json:"duration"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"start":"00:01:05","duration":2.5}`), &v))
	assert.Equal(t, Timecode(65), v.Start)
	assert.Equal(t, Timecode(2.5), v.Duration)

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"start":"later"}`), &v), ErrInvalidTimecode)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"start":-3}`), &v), ErrInvalidTimecode)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"start":true}`), &v), ErrInvalidTimecode)
}

package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTimecode is returned when a time value cannot be parsed.
var ErrInvalidTimecode = errors.New("invalid timecode")

// Timecode is a point or span in seconds with millisecond precision.
// In JSON it accepts a number of seconds or a string of the form
// SS[.fff], MM:SS[.fff] or HH:MM:SS[.fff].
type Timecode float64

// ParseTimecode parses s into a Timecode.
func ParseTimecode(s string) (Timecode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimecode)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	var total float64
	for i, part := range parts {
		last := i == len(parts)-1
		v, err := parseComponent(part, last)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
		}
		if !last && i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: minutes out of range in %q", ErrInvalidTimecode, s)
		}
		if last && len(parts) > 1 && v >= 60 {
			return 0, fmt.Errorf("%w: seconds out of range in %q", ErrInvalidTimecode, s)
		}
		total = total*60 + v
	}
	return newTimecode(total)
}

func parseComponent(part string, allowFraction bool) (float64, error) {
	if part == "" {
		return 0, ErrInvalidTimecode
	}
	for _, r := range part {
		if (r < '0' || r > '9') && !(allowFraction && r == '.') {
			return 0, ErrInvalidTimecode
		}
	}
	return strconv.ParseFloat(part, 64)
}

func newTimecode(seconds float64) (Timecode, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimecode, seconds)
	}
	return Timecode(math.Round(seconds*1000) / 1000), nil
}

// Seconds returns the timecode as a float.
func (t Timecode) Seconds() float64 {
	return float64(t)
}

// String formats the timecode as seconds with three decimals, a form ffmpeg
// accepts for -ss and -t.
func (t Timecode) String() string {
	return strconv.FormatFloat(float64(t), 'f', 3, 64)
}

// UnmarshalJSON accepts a JSON number or string.
func (t *Timecode) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var (
		parsed Timecode
		err    error
	)
	switch v := raw.(type) {
	case float64:
		parsed, err = newTimecode(v)
	case string:
		parsed, err = ParseTimecode(v)
	default:
		err = fmt.Errorf("%w: unsupported JSON value %s", ErrInvalidTimecode, string(data))
	}
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Package timex contains time helpers used by configuration and storage.
package timex

import (
	"encoding/json"
	"errors"
	"time"
)

// Duration wraps time.Duration so it can be written in JSON config files
// either as a Go duration string ("5s", "1m30s") or as nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// Micros converts t to microseconds since the Unix epoch, the resolution
// of every stored version token.
func Micros(t time.Time) int64 {
	return t.UnixMicro()
}

// FromMicros is the inverse of Micros; the result is in UTC.
func FromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

package ir

import (
	"fmt"
	"time"
)

const (
	secondsPerDay = 24 * 60 * 60
	nanosPerDay   = int64(secondsPerDay) * int64(time.Second)
)

// IRTime is a temporal value tagged with its calendar domain.
//
// Storage encoding (see Epoch):
//   - Date, LocalDateTime, OffsetDateTime, ZonedDateTime: epoch milliseconds
//   - LocalDate: epoch day
//   - LocalTime: nanosecond of day
type IRTime struct {
	Kind Domain
	At   time.Time
}

func (IRTime) irValue() {}

// Domain implements IRValue.
func (t IRTime) Domain() Domain { return t.Kind }

// NewTime normalizes t into the given calendar domain.
//
// Local kinds read the wall-clock fields of t and discard its location.
// Instant kinds keep the instant (millisecond precision); OffsetDateTime
// and ZonedDateTime keep the location for display only.
func NewTime(kind Domain, t time.Time) (IRTime, error) {
	switch kind {
	case DomainDate:
		return IRTime{Kind: kind, At: t.UTC().Truncate(time.Millisecond)}, nil
	case DomainOffsetDateTime, DomainZonedDateTime:
		return IRTime{Kind: kind, At: t.Truncate(time.Millisecond)}, nil
	case DomainLocalDate:
		y, m, d := t.Date()
		return IRTime{Kind: kind, At: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
	case DomainLocalTime:
		h, mi, s := t.Clock()
		return IRTime{Kind: kind, At: time.Date(1970, 1, 1, h, mi, s, t.Nanosecond(), time.UTC)}, nil
	case DomainLocalDateTime:
		y, m, d := t.Date()
		h, mi, s := t.Clock()
		at := time.Date(y, m, d, h, mi, s, t.Nanosecond(), time.UTC)
		return IRTime{Kind: kind, At: at.Truncate(time.Millisecond)}, nil
	default:
		return IRTime{}, fmt.Errorf("%s is not a temporal domain", kind)
	}
}

// MustTime is NewTime for callers that pass a known temporal kind.
func MustTime(kind Domain, t time.Time) IRTime {
	v, err := NewTime(kind, t)
	if err != nil {
		panic(err)
	}
	return v
}

// Epoch returns the integer storage encoding of t.
func (t IRTime) Epoch() int64 {
	switch t.Kind {
	case DomainLocalDate:
		return floorDiv(t.At.Unix(), secondsPerDay)
	case DomainLocalTime:
		h, mi, s := t.At.Clock()
		return (int64(h)*3600+int64(mi)*60+int64(s))*int64(time.Second) + int64(t.At.Nanosecond())
	default:
		return t.At.UnixMilli()
	}
}

// TimeFromEpoch decodes the integer storage encoding back into an IRTime.
// Offset and zoned values come back in UTC; the stored form is an instant.
func TimeFromEpoch(kind Domain, n int64) (IRTime, error) {
	switch kind {
	case DomainDate, DomainLocalDateTime, DomainOffsetDateTime, DomainZonedDateTime:
		return IRTime{Kind: kind, At: time.UnixMilli(n).UTC()}, nil
	case DomainLocalDate:
		return IRTime{Kind: kind, At: time.Unix(n*secondsPerDay, 0).UTC()}, nil
	case DomainLocalTime:
		if n < 0 || n >= nanosPerDay {
			return IRTime{}, fmt.Errorf("nanosecond of day %d out of range", n)
		}
		return IRTime{Kind: kind, At: time.Unix(0, n).UTC()}, nil
	default:
		return IRTime{}, fmt.Errorf("%s is not a temporal domain", kind)
	}
}

// String renders t in the ISO form of its calendar.
func (t IRTime) String() string {
	switch t.Kind {
	case DomainLocalDate:
		return t.At.Format(time.DateOnly)
	case DomainLocalTime:
		return t.At.Format("15:04:05.999999999")
	case DomainLocalDateTime:
		return t.At.Format("2006-01-02T15:04:05.999")
	default:
		return t.At.Format(time.RFC3339Nano)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

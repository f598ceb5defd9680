package field

import (
	"time"

	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// temporal carries the operators shared by every calendar field. Each
// calendar has its own named type so fields of different calendars are not
// interchangeable.
type temporal struct {
	ref queryir.Field
}

// Ref implements queryir.FieldRef.
func (f temporal) Ref() queryir.Field { return f.ref }

// Name returns the storage name.
func (f temporal) Name() string { return f.ref.Name }

// Value normalizes t into the field's calendar.
func (f temporal) Value(t time.Time) ir.IRValue { return ir.MustTime(f.ref.Domain, t) }

func (f temporal) cmp(op queryir.Op, ts ...time.Time) queryir.Constraint {
	vals := make([]ir.IRValue, len(ts))
	for i, t := range ts {
		vals[i] = f.Value(t)
	}
	return queryir.Check(f.ref, op, vals...)
}

// Eq matches the same point in the field's calendar.
func (f temporal) Eq(t time.Time) queryir.Constraint { return f.cmp(queryir.OpEq, t) }

// Ne matches any other point.
func (f temporal) Ne(t time.Time) queryir.Constraint { return f.cmp(queryir.OpNe, t) }

// Before matches points strictly before t.
func (f temporal) Before(t time.Time) queryir.Constraint { return f.cmp(queryir.OpLt, t) }

// BeforeOrSame matches points before or equal to t.
func (f temporal) BeforeOrSame(t time.Time) queryir.Constraint { return f.cmp(queryir.OpLte, t) }

// After matches points strictly after t.
func (f temporal) After(t time.Time) queryir.Constraint { return f.cmp(queryir.OpGt, t) }

// AfterOrSame matches points after or equal to t.
func (f temporal) AfterOrSame(t time.Time) queryir.Constraint { return f.cmp(queryir.OpGte, t) }

// Between matches points in the closed range [from, to].
func (f temporal) Between(from, to time.Time) queryir.Constraint {
	return f.cmp(queryir.OpBetween, from, to)
}

// IsNull matches absent values.
func (f temporal) IsNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNull) }

// IsNotNull matches present values.
func (f temporal) IsNotNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNotNull) }

func newTemporal(name string, kind ir.Domain) temporal {
	return temporal{ref: queryir.Field{Name: name, Domain: kind}}
}

// Date is an absolute instant with millisecond precision.
type Date struct{ temporal }

// NewDate declares an instant field.
func NewDate(name string) Date { return Date{newTemporal(name, ir.DomainDate)} }

// LocalDate is a calendar date without time or zone.
type LocalDate struct{ temporal }

// NewLocalDate declares a calendar date field.
func NewLocalDate(name string) LocalDate {
	return LocalDate{newTemporal(name, ir.DomainLocalDate)}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// On matches the given day.
func (f LocalDate) On(year int, month time.Month, d int) queryir.Constraint {
	return f.Eq(day(year, month, d))
}

// BeforeDay matches days strictly before the given day.
func (f LocalDate) BeforeDay(year int, month time.Month, d int) queryir.Constraint {
	return f.Before(day(year, month, d))
}

// AfterDay matches days strictly after the given day.
func (f LocalDate) AfterDay(year int, month time.Month, d int) queryir.Constraint {
	return f.After(day(year, month, d))
}

// LocalTime is a time of day without date or zone.
type LocalTime struct{ temporal }

// NewLocalTime declares a time-of-day field.
func NewLocalTime(name string) LocalTime {
	return LocalTime{newTemporal(name, ir.DomainLocalTime)}
}

func clock(hour, minute, second int) time.Time {
	return time.Date(1970, 1, 1, hour, minute, second, 0, time.UTC)
}

// At matches the given time of day.
func (f LocalTime) At(hour, minute, second int) queryir.Constraint {
	return f.Eq(clock(hour, minute, second))
}

// BeforeClock matches times strictly before the given time of day.
func (f LocalTime) BeforeClock(hour, minute, second int) queryir.Constraint {
	return f.Before(clock(hour, minute, second))
}

// AfterClock matches times strictly after the given time of day.
func (f LocalTime) AfterClock(hour, minute, second int) queryir.Constraint {
	return f.After(clock(hour, minute, second))
}

// LocalDateTime is a wall-clock date and time without zone.
type LocalDateTime struct{ temporal }

// NewLocalDateTime declares a wall-clock date-time field.
func NewLocalDateTime(name string) LocalDateTime {
	return LocalDateTime{newTemporal(name, ir.DomainLocalDateTime)}
}

// OffsetDateTime is an instant recorded with a fixed UTC offset.
type OffsetDateTime struct{ temporal }

// NewOffsetDateTime declares an offset date-time field.
func NewOffsetDateTime(name string) OffsetDateTime {
	return OffsetDateTime{newTemporal(name, ir.DomainOffsetDateTime)}
}

// ZonedDateTime is an instant recorded with a named zone.
type ZonedDateTime struct{ temporal }

// NewZonedDateTime declares a zoned date-time field.
func NewZonedDateTime(name string) ZonedDateTime {
	return ZonedDateTime{newTemporal(name, ir.DomainZonedDateTime)}
}

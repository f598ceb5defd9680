package ir

import "fmt"

// Domain is the closed set of value domains a field can declare.
//
// Operators legal for a field are keyed by its Domain (see
// queryir.LegalOps); codecs are keyed by Domain as well.
type Domain uint8

const (
	// DomainInvalid is the zero value. No field may declare it.
	DomainInvalid Domain = iota
	DomainNumeric
	DomainString
	DomainBool
	DomainChar
	DomainList

	// Temporal domains. Each calendar type is its own domain so values of
	// different calendars never compare against each other.
	DomainDate           // absolute instant, millisecond precision
	DomainLocalDate      // calendar date without zone
	DomainLocalTime      // time of day without date or zone
	DomainLocalDateTime  // wall-clock date and time, interpreted as UTC
	DomainOffsetDateTime // instant with a fixed offset
	DomainZonedDateTime  // instant with a named zone
)

var domainNames = map[Domain]string{
	DomainInvalid:        "invalid",
	DomainNumeric:        "numeric",
	DomainString:         "string",
	DomainBool:           "bool",
	DomainChar:           "char",
	DomainList:           "list",
	DomainDate:           "date",
	DomainLocalDate:      "local_date",
	DomainLocalTime:      "local_time",
	DomainLocalDateTime:  "local_date_time",
	DomainOffsetDateTime: "offset_date_time",
	DomainZonedDateTime:  "zoned_date_time",
}

// AllDomains lists every valid domain in declaration order.
var AllDomains = []Domain{
	DomainNumeric,
	DomainString,
	DomainBool,
	DomainChar,
	DomainList,
	DomainDate,
	DomainLocalDate,
	DomainLocalTime,
	DomainLocalDateTime,
	DomainOffsetDateTime,
	DomainZonedDateTime,
}

// String returns the snake_case name used in config files and plan files.
func (d Domain) String() string {
	if name, ok := domainNames[d]; ok {
		return name
	}
	return fmt.Sprintf("domain(%d)", uint8(d))
}

// IsTemporal reports whether d is one of the calendar domains.
func (d Domain) IsTemporal() bool {
	switch d {
	case DomainDate, DomainLocalDate, DomainLocalTime,
		DomainLocalDateTime, DomainOffsetDateTime, DomainZonedDateTime:
		return true
	default:
		return false
	}
}

// IsOrdered reports whether values of d support <, <=, >, >=.
func (d Domain) IsOrdered() bool {
	return d == DomainNumeric || d.IsTemporal()
}

// ParseDomain resolves a domain from its String form.
func ParseDomain(s string) (Domain, error) {
	for d, name := range domainNames {
		if d != DomainInvalid && name == s {
			return d, nil
		}
	}
	return DomainInvalid, fmt.Errorf("unknown domain %q", s)
}

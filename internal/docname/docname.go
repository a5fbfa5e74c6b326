// Package docname parses and formats dated document names of the form
// PREFIX_YYYY_MM_DD.pdf.
package docname

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/pdf-site/internal/errors"
)

const (
	// Ext is the extension every mirrored document carries.
	Ext = ".pdf"

	// DefaultPrefix is the prefix of the newspaper archive.
	DefaultPrefix = "MS"

	sep = "_"

	minYear = 2000
	maxYear = 2099

	// maxDay is deliberately not calendar-aware. Names up to day 32 have
	// always been accepted and existing archives may contain them.
	maxDay = 32
)

// Date is the calendar date encoded in a document name. It is kept as raw
// fields rather than a time.Time so that day 32 survives decoding without
// being normalized into the next month.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Compare returns -1, 0 or +1 comparing d with o by year, month and day.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(d.Month, o.Month)
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Time converts d to midnight UTC. Day 32 rolls over into the next month.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// OnCalendar reports whether d names a real day. Day 32, or 30 February,
// decode fine but are not.
func (d Date) OnCalendar() bool {
	t := d.Time()
	return t.Day() == d.Day && int(t.Month()) == d.Month
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Codec decodes and encodes names for one prefix.
type Codec struct {
	Prefix string
}

// New returns a Codec for prefix, falling back to DefaultPrefix.
func New(prefix string) Codec {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Codec{Prefix: prefix}
}

// Decode parses a base name (no extension) such as MS_2024_01_10.
// Every failure wraps errors.ErrMalformedName.
func (c Codec) Decode(baseName string) (Date, error) {
	parts := strings.Split(baseName, sep)
	if len(parts) != 4 {
		return Date{}, malformed(baseName, "want %s_YYYY_MM_DD", c.Prefix)
	}

	if parts[0] != c.Prefix {
		return Date{}, malformed(baseName, "prefix %q, want %q", parts[0], c.Prefix)
	}

	year, err := field(parts[1], 4)
	if err != nil {
		return Date{}, malformed(baseName, "year: %v", err)
	}

	month, err := field(parts[2], 2)
	if err != nil {
		return Date{}, malformed(baseName, "month: %v", err)
	}

	day, err := field(parts[3], 2)
	if err != nil {
		return Date{}, malformed(baseName, "day: %v", err)
	}

	if year < minYear || year > maxYear {
		return Date{}, malformed(baseName, "year %d out of range %d-%d", year, minYear, maxYear)
	}

	if month < 1 || month > 12 {
		return Date{}, malformed(baseName, "month %d out of range 1-12", month)
	}

	if day < 1 || day > maxDay {
		return Date{}, malformed(baseName, "day %d out of range 1-%d", day, maxDay)
	}

	return Date{Year: year, Month: month, Day: day}, nil
}

// DecodeFile is Decode for a file name or object key, which must carry
// the .pdf extension.
func (c Codec) DecodeFile(name string) (Date, error) {
	base, ok := strings.CutSuffix(name, Ext)
	if !ok {
		return Date{}, malformed(name, "missing %s extension", Ext)
	}

	return c.Decode(base)
}

// Encode returns the base name for d, the inverse of Decode.
func (c Codec) Encode(d Date) string {
	return fmt.Sprintf("%s%s%04d%s%02d%s%02d", c.Prefix, sep, d.Year, sep, d.Month, sep, d.Day)
}

// FileName returns the object key / file name for d.
func (c Codec) FileName(d Date) string {
	return c.Encode(d) + Ext
}

// Valid reports whether name is a well-formed document file name.
func (c Codec) Valid(name string) bool {
	_, err := c.DecodeFile(name)
	return err == nil
}

// field parses a fixed-width, digits-only field. strconv.Atoi alone would
// accept signs and variable widths.
func field(s string, width int) (int, error) {
	if len(s) != width {
		return 0, fmt.Errorf("%q is not %d digits", s, width)
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not numeric", s)
		}
	}

	return strconv.Atoi(s)
}

func malformed(name, format string, args ...any) error {
	return fmt.Errorf("%w: %q: %s", apperrors.ErrMalformedName, name, fmt.Sprintf(format, args...))
}

// Package timefmt normalizes the dashboard's display timestamps ("12 enero 2024 / 14:30")
// into comparable instants.
package timefmt

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrParse is matched by every error returned from Parse
var ErrParse = errors.New("timestamp parse error")

// ParseError describes why a display timestamp could not be normalized
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse timestamp %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Layout documents the accepted shape
const Layout = "D Month YYYY / HH:MM"

// months maps folded, accent-stripped month names to their number
var months = map[string]time.Month{}

func init() {
	names := map[time.Month][]string{
		time.January:   {"january", "jan", "enero", "janeiro", "janvier", "januar", "gennaio"},
		time.February:  {"february", "feb", "febrero", "fevereiro", "fevrier", "februar", "febbraio"},
		time.March:     {"march", "mar", "marzo", "marco", "mars", "marz"},
		time.April:     {"april", "apr", "abril", "avril", "aprile"},
		time.May:       {"may", "mayo", "maio", "mai", "maggio"},
		time.June:      {"june", "jun", "junio", "junho", "juin", "juni", "giugno"},
		time.July:      {"july", "jul", "julio", "julho", "juillet", "juli", "luglio"},
		time.August:    {"august", "aug", "agosto", "aout"},
		time.September: {"september", "sep", "sept", "septiembre", "setiembre", "setembro", "septembre", "settembre"},
		time.October:   {"october", "oct", "octubre", "outubro", "octobre", "oktober", "ottobre"},
		time.November:  {"november", "nov", "noviembre", "novembro", "novembre"},
		time.December:  {"december", "dec", "diciembre", "dezembro", "decembre", "dezember", "dicembre"},
	}
	for m, list := range names {
		for _, name := range list {
			months[name] = m
		}
	}
}

// foldMonth lowercases and strips diacritics so "Março", "MARCO" and "marco" compare equal
func foldMonth(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.TrimSuffix(cases.Fold().String(stripped), ".")
}

// Parse converts "D Month YYYY / HH:MM" into a UTC instant.
// Filler words "de" and "of" between date fields are ignored.
func Parse(display string) (time.Time, error) {
	fail := func(reason string) (time.Time, error) {
		return time.Time{}, &ParseError{Input: display, Reason: reason}
	}

	datePart, clockPart, ok := strings.Cut(display, "/")
	if !ok {
		return fail("missing '/' separator")
	}

	fields := make([]string, 0, 3)
	for _, f := range strings.Fields(datePart) {
		switch strings.ToLower(f) {
		case "de", "of":
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) != 3 {
		return fail("expected day, month and year")
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return fail("day is not a number")
	}
	month, ok := months[foldMonth(fields[1])]
	if !ok {
		return fail("unknown month " + strconv.Quote(fields[1]))
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil || len(fields[2]) != 4 {
		return fail("year must have four digits")
	}

	hh, mm, ok := strings.Cut(strings.TrimSpace(clockPart), ":")
	if !ok {
		return fail("time must be HH:MM")
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return fail("hour out of range")
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return fail("minute out of range")
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (31 February becomes 3 March); reject instead
	if t.Day() != day || t.Month() != month {
		return fail("day out of range for month")
	}
	return t, nil
}

var displayMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Format renders t in the dashboard display format, in UTC with Spanish month names.
// Parse(Format(t)) equals t truncated to the minute.
func Format(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d %s %d / %02d:%02d", t.Day(), displayMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// Key is the sortable form of one timestamp. Invalid keys order before every valid key.
type Key struct {
	At    time.Time
	Valid bool
	Index int
}

// NewKey parses display and remembers the position for tie breaking
func NewKey(display string, index int) (Key, error) {
	at, err := Parse(display)
	if err != nil {
		return Key{Index: index}, err
	}
	return Key{At: at, Valid: true, Index: index}, nil
}

// Less orders by instant, then by input position
func (k Key) Less(o Key) bool {
	if k.Valid != o.Valid {
		return !k.Valid
	}
	if k.Valid && !k.At.Equal(o.At) {
		return k.At.Before(o.At)
	}
	return k.Index < o.Index
}

// SortStable returns the indices 0..n-1 ordered ascending by the timestamp of each entry.
// Unparseable timestamps sort first; equal instants keep their input order.
// The returned errors hold one ParseError per unparseable entry.
func SortStable(n int, timeOf func(i int) string) ([]int, []error) {
	keys := make([]Key, n)
	var errs []error
	for i := 0; i < n; i++ {
		k, err := NewKey(timeOf(i), i)
		if err != nil {
			errs = append(errs, err)
		}
		keys[i] = k
	}

	sort.SliceStable(keys, func(a, b int) bool {
		return keys[a].Less(keys[b])
	})

	order := make([]int, n)
	for i, k := range keys {
		order[i] = k.Index
	}
	return order, errs
}

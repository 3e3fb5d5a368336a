// Package format renders readings as single text lines.
package format

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"ceilometer/collector"
)

// ErrUnknownFormat is returned by Lookup for an unregistered name.
var ErrUnknownFormat = errors.New("unknown format")

// Func renders one reading as a newline-terminated line. Implementations are
// total: every reading yields a line.
type Func func(r collector.Reading, prefix string) string

var registry = map[string]Func{
	"text":     Text,
	"graphite": Graphite,
	"statsite": Statsite,
}

// Lookup returns the formatter registered under name, ignoring case.
func Lookup(name string) (Func, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered formats in alphabetical order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Text is a right-aligned columnar form for humans.
func Text(r collector.Reading, prefix string) string {
	return fmt.Sprintf("%s%10s %20s %s\n", prefix, value(r.Value), r.Key, r.Type)
}

// Graphite is the carbon plaintext protocol: "<path> <value> <unix time>".
func Graphite(r collector.Reading, prefix string) string {
	return fmt.Sprintf("%s%s.%s %s %d\n", prefix, r.Key, r.Type, value(r.Value), r.Timestamp.Unix())
}

// Statsite is the statsd line form "<key>:<value>|<type>".
func Statsite(r collector.Reading, prefix string) string {
	return fmt.Sprintf("%s%s:%s|%s\n", prefix, r.Key, value(r.Value), r.Type)
}

// value renders v in its shortest exact form, so integral values carry no
// decimal point.
func value(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

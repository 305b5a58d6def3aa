// Package stops holds the immutable stop directory and name resolution.
package stops

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

const (
	// DefaultMaxResults bounds how many candidates Resolve returns.
	DefaultMaxResults = 5
	// FuzzyCutoff is the minimum similarity ratio for approximate matches.
	FuzzyCutoff = 0.6
)

// Directory maps stop names to codes. It is read-only after construction.
type Directory struct {
	stops      []domain.Stop
	codes      map[string]string
	maxResults int
}

// NewDirectory builds a directory, keeping the given order.
// maxResults <= 0 selects DefaultMaxResults.
func NewDirectory(stops []domain.Stop, maxResults int) (*Directory, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	d := &Directory{
		stops:      make([]domain.Stop, 0, len(stops)),
		codes:      make(map[string]string, len(stops)),
		maxResults: maxResults,
	}
	for _, s := range stops {
		name := strings.TrimSpace(s.Name)
		code := strings.TrimSpace(s.Code)
		if name == "" || code == "" {
			return nil, errors.New("stop with empty name or code")
		}
		if _, dup := d.codes[name]; dup {
			return nil, fmt.Errorf("duplicate stop name %q", name)
		}
		d.codes[name] = code
		d.stops = append(d.stops, domain.Stop{Name: name, Code: code})
	}
	return d, nil
}

// Code returns the stop code for an exact name.
func (d *Directory) Code(name string) (string, bool) {
	c, ok := d.codes[name]
	return c, ok
}

// Contains reports whether name is an exact directory entry.
func (d *Directory) Contains(name string) bool {
	_, ok := d.codes[name]
	return ok
}

// Names returns all stop names in directory order.
func (d *Directory) Names() []string {
	out := make([]string, len(d.stops))
	for i, s := range d.stops {
		out[i] = s.Name
	}
	return out
}

// Len returns the number of stops.
func (d *Directory) Len() int { return len(d.stops) }

// Resolve returns candidate names for user input, at most maxResults.
// Precedence: exact match, then substring matches in directory order,
// then fuzzy matches best first. No match yields an empty slice.
func (d *Directory) Resolve(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return []string{}
	}
	if d.Contains(input) {
		return []string{input}
	}

	var subs []string
	for _, s := range d.stops {
		if strings.Contains(s.Name, input) || strings.Contains(input, s.Name) {
			subs = append(subs, s.Name)
			if len(subs) == d.maxResults {
				break
			}
		}
	}
	if len(subs) > 0 {
		return subs
	}
	return d.fuzzy(input)
}

type scored struct {
	name  string
	score float64
}

// fuzzy mirrors difflib's close-matches filter over rune sequences.
func (d *Directory) fuzzy(input string) []string {
	m := difflib.NewMatcher(nil, runes(input))
	var hits []scored
	for _, s := range d.stops {
		m.SetSeq1(runes(s.Name))
		if m.RealQuickRatio() < FuzzyCutoff || m.QuickRatio() < FuzzyCutoff {
			continue
		}
		if r := m.Ratio(); r >= FuzzyCutoff {
			hits = append(hits, scored{name: s.Name, score: r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]string, 0, min(len(hits), d.maxResults))
	for _, h := range hits {
		if len(out) == d.maxResults {
			break
		}
		out = append(out, h.name)
	}
	return out
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

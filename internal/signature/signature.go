// Package signature fingerprints the set of finalized results of a season
// so cached projections can be checked against live data.
package signature

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/utakatalp/league-projections/internal/league"
)

// Normalize lowercases, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(b.String())), " ")
}

// Entry is one finalized result as it takes part in a signature.
type Entry struct {
	Round int    `json:"round"`
	Home  string `json:"home"`
	Away  string `json:"away"`
	Score string `json:"score"`
}

func (e Entry) normalized() Entry {
	return Entry{
		Round: e.Round,
		Home:  Normalize(e.Home),
		Away:  Normalize(e.Away),
		Score: Normalize(e.Score),
	}
}

// Field and entry separators are percent-escaped inside fields.
var (
	escaper   = strings.NewReplacer("%", "%25", ":", "%3A", "|", "%7C")
	unescaper = strings.NewReplacer("%25", "%", "%3A", ":", "%7C", "|")
)

func (e Entry) String() string {
	return fmt.Sprintf("%d:%s:%s:%s", e.Round, escaper.Replace(e.Home), escaper.Replace(e.Away), escaper.Replace(e.Score))
}

// Entries extracts the finalized results of matches.
func Entries(matches []*league.Match) []Entry {
	finished := league.Finished(matches)
	out := make([]Entry, 0, len(finished))
	for _, m := range finished {
		out = append(out, Entry{
			Round: m.Round,
			Home:  m.Home.Name,
			Away:  m.Away.Name,
			Score: m.ScoreText(),
		})
	}
	return out
}

// Canonical returns normalized entries in signature order.
func Canonical(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.normalized()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.Home != b.Home {
			return a.Home < b.Home
		}
		if a.Away != b.Away {
			return a.Away < b.Away
		}
		return a.Score < b.Score
	})
	return out
}

// Compute joins the canonical entries into a single string. It does not
// depend on input order or on cosmetic differences in names and scores.
func Compute(entries []Entry) string {
	canon := Canonical(entries)
	parts := make([]string, len(canon))
	for i, e := range canon {
		parts[i] = e.String()
	}
	return strings.Join(parts, "|")
}

// Of is Compute over the finalized matches in matches.
func Of(matches []*league.Match) string {
	return Compute(Entries(matches))
}

// Parse splits a signature back into its entries.
func Parse(sig string) ([]Entry, error) {
	if sig == "" {
		return nil, nil
	}
	parts := strings.Split(sig, "|")
	out := make([]Entry, 0, len(parts))
	for _, p := range parts {
		fields := strings.SplitN(p, ":", 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed signature entry %q", p)
		}
		var round int
		if _, err := fmt.Sscanf(fields[0], "%d", &round); err != nil {
			return nil, fmt.Errorf("malformed round in %q: %w", p, err)
		}
		out = append(out, Entry{
			Round: round,
			Home:  unescaper.Replace(fields[1]),
			Away:  unescaper.Replace(fields[2]),
			Score: unescaper.Replace(fields[3]),
		})
	}
	return out, nil
}

// Difference lists entries present on only one side.
type Difference struct {
	OnlyCurrent []Entry `json:"onlyCurrent"`
	OnlyCached  []Entry `json:"onlyCached"`
}

func (d Difference) Empty() bool {
	return len(d.OnlyCurrent) == 0 && len(d.OnlyCached) == 0
}

// Diff compares two entry sets after normalization.
func Diff(current, cached []Entry) Difference {
	count := func(entries []Entry) map[string]int {
		m := make(map[string]int, len(entries))
		for _, e := range entries {
			m[e.String()]++
		}
		return m
	}
	cur := Canonical(current)
	old := Canonical(cached)
	curCount, oldCount := count(cur), count(old)

	var d Difference
	for _, e := range cur {
		k := e.String()
		if oldCount[k] > 0 {
			oldCount[k]--
			continue
		}
		d.OnlyCurrent = append(d.OnlyCurrent, e)
	}
	for _, e := range old {
		k := e.String()
		if curCount[k] > 0 {
			curCount[k]--
			continue
		}
		d.OnlyCached = append(d.OnlyCached, e)
	}
	return d
}

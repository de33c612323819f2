package search

import (
	"regexp"
	"sort"

	"github.com/aryannaik/holocron/internal/swapi"
)

// Segment is one run of text, marked when it matches the search term.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"isMatch"`
}

// Highlight splits text around every case-insensitive occurrence of term.
// Concatenating the segments yields text unchanged.
func Highlight(text, term string) []Segment {
	if text == "" {
		return nil
	}
	if term == "" {
		return []Segment{{Text: text}}
	}

	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	var out []Segment
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: text[last:loc[0]]})
		}
		out = append(out, Segment{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}

// Group is the preview of one resource type's matches.
type Group struct {
	Resource swapi.ResourceType `json:"resource"`
	Items    []swapi.Entity     `json:"items"`
	More     int                `json:"more"`
}

// Preview truncates each type to limit items, in the canonical resource
// order, reporting how many were cut. A limit <= 0 keeps everything.
func Preview(r Results, limit int) []Group {
	groups := make([]Group, 0, len(r))
	for rt, items := range r {
		g := Group{Resource: rt, Items: items}
		if limit > 0 && len(items) > limit {
			g.Items = items[:limit]
			g.More = len(items) - limit
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return rank(groups[i].Resource) < rank(groups[j].Resource)
	})
	return groups
}

func rank(rt swapi.ResourceType) int {
	for i, known := range swapi.Resources {
		if known == rt {
			return i
		}
	}
	return len(swapi.Resources)
}

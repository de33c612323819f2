package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryannaik/holocron/internal/swapi"
	"github.com/aryannaik/holocron/internal/swapi/swapitest"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		text string
		term string
		want []Segment
	}{
		{"Luke Skywalker", "sky", []Segment{{"Luke ", false}, {"Sky", true}, {"walker", false}}},
		{"Anakin", "a", []Segment{{"A", true}, {"n", false}, {"a", true}, {"kin", false}}},
		{"Leia", "leia", []Segment{{"Leia", true}}},
		{"R2-D2 (astromech)", "(a", []Segment{{"R2-D2 ", false}, {"(a", true}, {"stromech)", false}}},
		{"Yoda", "", []Segment{{"Yoda", false}}},
		{"Yoda", "luke", []Segment{{"Yoda", false}}},
		{"", "luke", nil},
	}

	for _, tt := range tests {
		got := Highlight(tt.text, tt.term)
		assert.Equal(t, tt.want, got, "Highlight(%q, %q)", tt.text, tt.term)

		var b strings.Builder
		for _, s := range got {
			b.WriteString(s.Text)
		}
		assert.Equal(t, tt.text, b.String())
	}
}

func TestPreviewTruncatesInResourceOrder(t *testing.T) {
	r := Results{
		swapi.TypeStarships: {swapitest.Entity(swapi.TypeStarships, 1, "X-wing")},
		swapi.TypePeople:    swapitest.People(5),
	}

	groups := Preview(r, 3)
	assert.Len(t, groups, 2)
	assert.Equal(t, swapi.TypePeople, groups[0].Resource)
	assert.Len(t, groups[0].Items, 3)
	assert.Equal(t, 2, groups[0].More)
	assert.Equal(t, swapi.TypeStarships, groups[1].Resource)
	assert.Zero(t, groups[1].More)
}

package collection

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aryannaik/holocron/internal/swapi"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection accepts asc/desc and their long forms. Empty means ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown sort direction %q", s)
}

// SortState is a single sort column and direction. The zero value is
// unsorted.
type SortState struct {
	Column    string    `json:"column,omitempty"`
	Direction Direction `json:"direction"`
}

func (s SortState) Sorted() bool { return s.Column != "" }

// SortRows returns a stably sorted copy of rows. Values that both parse as
// numbers compare numerically; anything else compares case-insensitively,
// with numbers ahead of text.
func SortRows(rows []swapi.Entity, s SortState) []swapi.Entity {
	out := slices.Clone(rows)
	if !s.Sorted() {
		return out
	}

	slices.SortStableFunc(out, func(a, b swapi.Entity) int {
		av, _ := swapi.FieldValue(a, s.Column)
		bv, _ := swapi.FieldValue(b, s.Column)
		c := compareValues(av, bv)
		if s.Direction == Descending {
			c = -c
		}
		return c
	})
	return out
}

func compareValues(a, b string) int {
	af, aNum := parseNumber(a)
	bf, bNum := parseNumber(b)
	switch {
	case aNum && bNum:
		return cmp.Compare(af, bf)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// parseNumber accepts thousands separators, as in a mass of "1,358".
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

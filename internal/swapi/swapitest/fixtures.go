package swapitest

import (
	"fmt"

	"github.com/aryannaik/holocron/internal/swapi"
)

// URL returns the canonical test URL of an entity.
func URL(rt swapi.ResourceType, id int) string {
	return fmt.Sprintf("https://swapi.test/api/%s/%d/", rt, id)
}

func Person(id int, name string) *swapi.Person {
	return &swapi.Person{
		Base:      swapi.Base{URL: URL(swapi.TypePeople, id)},
		Name:      name,
		Gender:    "n/a",
		BirthYear: "unknown",
		Height:    "100",
		Mass:      "50",
	}
}

func Film(id int, title string) *swapi.Film {
	return &swapi.Film{
		Base:      swapi.Base{URL: URL(swapi.TypeFilms, id)},
		Title:     title,
		EpisodeID: id,
	}
}

// Entity builds a minimal entity of any kind with the given label.
func Entity(rt swapi.ResourceType, id int, label string) swapi.Entity {
	base := swapi.Base{URL: URL(rt, id)}
	switch rt {
	case swapi.TypePeople:
		return Person(id, label)
	case swapi.TypeFilms:
		return Film(id, label)
	case swapi.TypePlanets:
		return &swapi.Planet{Base: base, Name: label}
	case swapi.TypeSpecies:
		return &swapi.Species{Base: base, Name: label}
	case swapi.TypeStarships:
		return &swapi.Starship{Base: base, Name: label}
	case swapi.TypeVehicles:
		return &swapi.Vehicle{Base: base, Name: label}
	}
	panic("swapitest: unknown resource type " + string(rt))
}

// People builds n people named "Person 1".."Person n".
func People(n int) []swapi.Entity {
	out := make([]swapi.Entity, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Person(i, fmt.Sprintf("Person %d", i)))
	}
	return out
}

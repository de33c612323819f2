package swapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefDecodesStringOrObject(t *testing.T) {
	data := []byte(`{
		"name": "Luke Skywalker",
		"url": "https://swapi.dev/api/people/1/",
		"homeworld": {"name": "Tatooine", "url": "https://swapi.dev/api/planets/1/"},
		"films": ["https://swapi.dev/api/films/1/", {"title": "The Empire Strikes Back", "url": "https://swapi.dev/api/films/2/"}]
	}`)

	e, err := DecodeEntity(TypePeople, data)
	require.NoError(t, err)
	p := e.(*Person)

	home, ok := p.Homeworld.Resolve()
	require.True(t, ok)
	assert.Equal(t, "Tatooine", home.Name)
	assert.Equal(t, "https://swapi.dev/api/planets/1/", p.Homeworld.URI)

	require.Len(t, p.Films, 2)
	_, ok = p.Films[0].Resolve()
	assert.False(t, ok)
	assert.Equal(t, "https://swapi.dev/api/films/1/", p.Films[0].URI)

	film, ok := p.Films[1].Resolve()
	require.True(t, ok)
	assert.Equal(t, "The Empire Strikes Back", film.Label())
}

func TestRefRejectsNumbers(t *testing.T) {
	_, err := DecodeEntity(TypePeople, []byte(`{"homeworld": 7}`))
	assert.Error(t, err)
}

func TestRefMarshalKeepsShape(t *testing.T) {
	p := &Person{
		Base:      Base{URL: "https://swapi.dev/api/people/1/"},
		Name:      "Luke",
		Homeworld: Unresolved[Planet]("https://swapi.dev/api/planets/1/"),
	}
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"homeworld":"https://swapi.dev/api/planets/1/"`)

	p.Homeworld = Resolved("https://swapi.dev/api/planets/1/", &Planet{Name: "Tatooine"})
	out, err = json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"homeworld":{`)
	assert.Contains(t, string(out), `"Tatooine"`)
}

func TestIDFromURL(t *testing.T) {
	id, err := IDFromURL("https://swapi.dev/api/people/42/")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = IDFromURL("https://swapi.dev/api/films/3")
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	_, err = IDFromURL("https://swapi.dev/api/films/")
	assert.Error(t, err)
}

func TestParseResourceType(t *testing.T) {
	rt, err := ParseResourceType(" Starships ")
	require.NoError(t, err)
	assert.Equal(t, TypeStarships, rt)

	_, err = ParseResourceType("droids")
	assert.Error(t, err)
}

func TestColumnsAndFieldValue(t *testing.T) {
	cols := Columns(TypePeople)
	assert.Contains(t, cols, "name")
	assert.Contains(t, cols, "eye_color")
	assert.Contains(t, cols, "url")
	assert.NotContains(t, cols, "homeworld")
	assert.NotContains(t, cols, "local_state")
	assert.NotContains(t, Columns(TypeStarships), "eye_color")

	f := &Film{Title: "A New Hope", EpisodeID: 4}
	v, ok := FieldValue(f, "episode_id")
	require.True(t, ok)
	assert.Equal(t, "4", v)

	_, ok = FieldValue(f, "gender")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	p := &Person{Name: "Leia"}
	c := p.Clone().(*Person)
	c.Name = "Leia Organa"
	c.Common().Local = LocalUpdated

	assert.Equal(t, "Leia", p.Name)
	assert.False(t, p.Modified())
	assert.True(t, c.Modified())
}

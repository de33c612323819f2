package swapi

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// Entity is implemented by the six catalog kinds. Implementations are always
// pointers (*Person, *Film, ...).
type Entity interface {
	Resource() ResourceType
	// Identity is the canonical resource URL. It is stable and unique within
	// a resource type.
	Identity() string
	// Label is the human-readable name (films use their title).
	Label() string
	Common() *Base
	Clone() Entity
}

// LocalState records whether an entity has been changed on this client only.
type LocalState string

const (
	LocalNone    LocalState = ""
	LocalCreated LocalState = "created"
	LocalUpdated LocalState = "updated"
)

// Base holds the fields every kind shares.
type Base struct {
	URL     string     `json:"url"`
	Created string     `json:"created,omitempty"`
	Edited  string     `json:"edited,omitempty"`
	Local   LocalState `json:"local_state,omitempty"`
}

func (b *Base) Common() *Base    { return b }
func (b *Base) Identity() string { return b.URL }

// ID is the trailing path segment of the identity URL.
func (b *Base) ID() string { return lastSegment(b.URL) }

// Modified reports whether the entity diverges from the remote source.
func (b *Base) Modified() bool { return b.Local != LocalNone }

type Person struct {
	Base
	Name      string          `json:"name"`
	BirthYear string          `json:"birth_year"`
	EyeColor  string          `json:"eye_color,omitempty"`
	Gender    string          `json:"gender"`
	HairColor string          `json:"hair_color,omitempty"`
	Height    string          `json:"height"`
	Mass      string          `json:"mass"`
	SkinColor string          `json:"skin_color,omitempty"`
	Homeworld Ref[Planet]     `json:"homeworld"`
	Films     []Ref[Film]     `json:"films,omitempty"`
	Species   []Ref[Species]  `json:"species,omitempty"`
	Starships []Ref[Starship] `json:"starships,omitempty"`
	Vehicles  []Ref[Vehicle]  `json:"vehicles,omitempty"`
}

type Film struct {
	Base
	Title        string          `json:"title"`
	EpisodeID    int             `json:"episode_id"`
	OpeningCrawl string          `json:"opening_crawl"`
	Director     string          `json:"director"`
	Producer     string          `json:"producer"`
	ReleaseDate  string          `json:"release_date"`
	Characters   []Ref[Person]   `json:"characters,omitempty"`
	Planets      []Ref[Planet]   `json:"planets,omitempty"`
	Species      []Ref[Species]  `json:"species,omitempty"`
	Starships    []Ref[Starship] `json:"starships,omitempty"`
	Vehicles     []Ref[Vehicle]  `json:"vehicles,omitempty"`
}

type Planet struct {
	Base
	Name           string        `json:"name"`
	Climate        string        `json:"climate"`
	Diameter       string        `json:"diameter"`
	Gravity        string        `json:"gravity"`
	OrbitalPeriod  string        `json:"orbital_period"`
	Population     string        `json:"population"`
	RotationPeriod string        `json:"rotation_period"`
	SurfaceWater   string        `json:"surface_water"`
	Terrain        string        `json:"terrain"`
	Residents      []Ref[Person] `json:"residents,omitempty"`
	Films          []Ref[Film]   `json:"films,omitempty"`
}

type Species struct {
	Base
	Name            string        `json:"name"`
	AverageHeight   string        `json:"average_height"`
	AverageLifespan string        `json:"average_lifespan"`
	Classification  string        `json:"classification"`
	Designation     string        `json:"designation"`
	EyeColors       string        `json:"eye_colors"`
	HairColors      string        `json:"hair_colors"`
	SkinColors      string        `json:"skin_colors"`
	Language        string        `json:"language"`
	Homeworld       Ref[Planet]   `json:"homeworld"`
	People          []Ref[Person] `json:"people,omitempty"`
	Films           []Ref[Film]   `json:"films,omitempty"`
}

type Starship struct {
	Base
	Name                 string        `json:"name"`
	Model                string        `json:"model"`
	Manufacturer         string        `json:"manufacturer"`
	CostInCredits        string        `json:"cost_in_credits"`
	Length               string        `json:"length"`
	MaxAtmospheringSpeed string        `json:"max_atmosphering_speed"`
	Crew                 string        `json:"crew"`
	Passengers           string        `json:"passengers"`
	CargoCapacity        string        `json:"cargo_capacity"`
	Consumables          string        `json:"consumables"`
	HyperdriveRating     string        `json:"hyperdrive_rating"`
	MGLT                 string        `json:"MGLT"`
	StarshipClass        string        `json:"starship_class"`
	Pilots               []Ref[Person] `json:"pilots,omitempty"`
	Films                []Ref[Film]   `json:"films,omitempty"`
}

type Vehicle struct {
	Base
	Name                 string        `json:"name"`
	Model                string        `json:"model"`
	Manufacturer         string        `json:"manufacturer"`
	CostInCredits        string        `json:"cost_in_credits"`
	Length               string        `json:"length"`
	MaxAtmospheringSpeed string        `json:"max_atmosphering_speed"`
	Crew                 string        `json:"crew"`
	Passengers           string        `json:"passengers"`
	CargoCapacity        string        `json:"cargo_capacity"`
	Consumables          string        `json:"consumables"`
	VehicleClass         string        `json:"vehicle_class"`
	Pilots               []Ref[Person] `json:"pilots,omitempty"`
	Films                []Ref[Film]   `json:"films,omitempty"`
}

func (*Person) Resource() ResourceType   { return TypePeople }
func (*Film) Resource() ResourceType     { return TypeFilms }
func (*Planet) Resource() ResourceType   { return TypePlanets }
func (*Species) Resource() ResourceType  { return TypeSpecies }
func (*Starship) Resource() ResourceType { return TypeStarships }
func (*Vehicle) Resource() ResourceType  { return TypeVehicles }

func (p *Person) Label() string   { return p.Name }
func (f *Film) Label() string     { return f.Title }
func (p *Planet) Label() string   { return p.Name }
func (s *Species) Label() string  { return s.Name }
func (s *Starship) Label() string { return s.Name }
func (v *Vehicle) Label() string  { return v.Name }

// Clone returns a shallow copy. Reference slices are shared, so callers
// replace them rather than editing in place.
func (p *Person) Clone() Entity   { c := *p; return &c }
func (f *Film) Clone() Entity     { c := *f; return &c }
func (p *Planet) Clone() Entity   { c := *p; return &c }
func (s *Species) Clone() Entity  { c := *s; return &c }
func (s *Starship) Clone() Entity { c := *s; return &c }
func (v *Vehicle) Clone() Entity  { c := *v; return &c }

// NewEntity returns an empty entity of the given kind.
func NewEntity(rt ResourceType) (Entity, error) {
	switch rt {
	case TypePeople:
		return &Person{}, nil
	case TypeFilms:
		return &Film{}, nil
	case TypePlanets:
		return &Planet{}, nil
	case TypeSpecies:
		return &Species{}, nil
	case TypeStarships:
		return &Starship{}, nil
	case TypeVehicles:
		return &Vehicle{}, nil
	}
	return nil, fmt.Errorf("unknown resource type %q", rt)
}

// DecodeEntity parses one JSON object as an entity of kind rt.
func DecodeEntity(rt ResourceType, data []byte) (Entity, error) {
	e, err := NewEntity(rt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rt, err)
	}
	return e, nil
}

// Columns lists the scalar JSON fields of kind rt, in declaration order.
func Columns(rt ResourceType) []string {
	e, err := NewEntity(rt)
	if err != nil {
		return nil
	}
	fields := scalarFields(reflect.TypeOf(e).Elem())
	cols := make([]string, 0, len(fields.order))
	cols = append(cols, fields.order...)
	return cols
}

// FieldValue returns the value of the scalar column named by its JSON key.
func FieldValue(e Entity, column string) (string, bool) {
	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return "", false
	}
	v = v.Elem()
	idx, ok := scalarFields(v.Type()).index[column]
	if !ok {
		return "", false
	}
	f := v.FieldByIndex(idx)
	switch f.Kind() {
	case reflect.String:
		return f.String(), true
	case reflect.Int, reflect.Int64, reflect.Int32:
		return strconv.FormatInt(f.Int(), 10), true
	}
	return "", false
}

type fieldSet struct {
	order []string
	index map[string][]int
}

var fieldCache sync.Map // reflect.Type -> fieldSet

func scalarFields(t reflect.Type) fieldSet {
	if fs, ok := fieldCache.Load(t); ok {
		return fs.(fieldSet)
	}
	fs := fieldSet{index: make(map[string][]int)}
	for _, sf := range reflect.VisibleFields(t) {
		switch sf.Type.Kind() {
		case reflect.String, reflect.Int, reflect.Int64, reflect.Int32:
		default:
			continue
		}
		name := jsonName(sf)
		if name == "" || name == "local_state" {
			continue
		}
		if _, dup := fs.index[name]; dup {
			continue
		}
		fs.order = append(fs.order, name)
		fs.index[name] = sf.Index
	}
	fieldCache.Store(t, fs)
	return fs
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			tag = tag[:i]
			break
		}
	}
	if tag == "" {
		return sf.Name
	}
	return tag
}

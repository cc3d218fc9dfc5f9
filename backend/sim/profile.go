package sim

import (
	"fmt"
	"maps"
	"slices"

	"lww-crdt/internal/random"
)

// Profile is the sample document type of the simulation.
type Profile struct {
	Name       string            `json:"name"`
	Age        int               `json:"age"`
	Tags       []string          `json:"tags"`
	Attributes map[string]string `json:"attributes"`
	Address    Address           `json:"address"`
}

// Address is nested in Profile.
type Address struct {
	City string `json:"city"`
	Zip  string `json:"zip"`
}

var (
	names  = []string{"ada", "alan", "barbara", "edsger", "grace", "leslie", "tony"}
	cities = []string{"geneva", "lausanne", "zurich", "bern", "basel"}
	tags   = []string{"admin", "beta", "dev", "ops", "qa"}
	keys   = []string{"color", "lang", "team", "tz"}
)

// NewProfile returns a random profile.
func NewProfile(src random.Source) Profile {
	return Profile{
		Name:       pick(src, names),
		Age:        18 + src.Intn(60),
		Tags:       []string{pick(src, tags)},
		Attributes: map[string]string{pick(src, keys): fmt.Sprint(src.Intn(100))},
		Address: Address{
			City: pick(src, cities),
			Zip:  fmt.Sprintf("%04d", 1000+src.Intn(9000)),
		},
	}
}

// MutateProfile returns a copy of p with one random field changed. The
// input is never modified.
func MutateProfile(src random.Source, p Profile) Profile {
	p.Tags = slices.Clone(p.Tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Attributes = maps.Clone(p.Attributes)
	if p.Attributes == nil {
		p.Attributes = map[string]string{}
	}

	switch src.Intn(7) {
	case 0:
		p.Name = pick(src, names)
	case 1:
		p.Age++
	case 2:
		p.Tags = append(p.Tags, pick(src, tags))
	case 3:
		if len(p.Tags) > 0 {
			i := src.Intn(len(p.Tags))
			p.Tags = slices.Delete(p.Tags, i, i+1)
		}
	case 4:
		p.Attributes[pick(src, keys)] = fmt.Sprint(src.Intn(100))
	case 5:
		delete(p.Attributes, pick(src, keys))
	case 6:
		p.Address.City = pick(src, cities)
	}

	return p
}

func pick(src random.Source, from []string) string {
	return from[src.Intn(len(from))]
}

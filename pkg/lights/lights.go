// Package lights provides a toy light-control plugin: an in-memory store of
// lights and the get_lights / change_state tools that expose it to the model.
package lights

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Light is a controllable light. IsOn is nil when the state is unknown.
type Light struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	IsOn *bool  `json:"is_on" yaml:"is_on"`
}

func (l Light) clone() Light {
	if l.IsOn != nil {
		on := *l.IsOn
		l.IsOn = &on
	}
	return l
}

// State returns a tri-state pointer for use in Light literals.
func State(on bool) *bool { return &on }

// DefaultSeed returns the lights a new store starts with when none are
// configured.
func DefaultSeed() []Light {
	return []Light{
		{ID: 1, Name: "Table Lamp", IsOn: State(false)},
		{ID: 2, Name: "Porch light", IsOn: State(false)},
		{ID: 3, Name: "Chandelier", IsOn: State(true)},
	}
}

// Store owns the lights for the lifetime of a process. Lights are created from
// seed data, mutated only through SetState, and never deleted. Mutations are
// serialized, so a Store may be shared between sessions.
type Store struct {
	mu     sync.Mutex
	lights []Light
}

// NewStore creates a Store seeded with the given lights. IDs must be unique.
func NewStore(seed ...Light) (*Store, error) {
	lights := make([]Light, 0, len(seed))
	seen := make(map[int]struct{}, len(seed))
	for _, l := range seed {
		if _, dup := seen[l.ID]; dup {
			return nil, fmt.Errorf("lights: duplicate light id %d", l.ID)
		}
		seen[l.ID] = struct{}{}
		lights = append(lights, l.clone())
	}

	slices.SortFunc(lights, func(a, b Light) int { return cmp.Compare(a.ID, b.ID) })

	return &Store{lights: lights}, nil
}

// List returns every light in ascending id order.
func (s *Store) List() []Light {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Light, len(s.lights))
	for i, l := range s.lights {
		out[i] = l.clone()
	}
	return out
}

// SetState switches the light with the given id on or off and returns its
// updated state. It reports false, and changes nothing, if no light has that id.
func (s *Store) SetState(id int, isOn bool) (Light, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, found := slices.BinarySearchFunc(s.lights, id, func(l Light, id int) int { return cmp.Compare(l.ID, id) })
	if !found {
		return Light{}, false
	}

	s.lights[i].IsOn = State(isOn)
	return s.lights[i].clone(), true
}

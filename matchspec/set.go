package matchspec

// Set is an insertion ordered collection of specifiers, unique by canonical form.
type Set struct {
	specs []MatchSpec
	index map[string]int
}

func NewSet(specs ...MatchSpec) *Set {
	s := &Set{index: make(map[string]int)}
	for _, spec := range specs {
		s.Add(spec)
	}
	return s
}

// Add inserts spec unless an equal specifier is already present.
func (s *Set) Add(spec MatchSpec) bool {
	key := spec.String()
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.specs)
	s.specs = append(s.specs, spec)
	return true
}

// Pin removes any existing copy of spec and appends it as the last element.
func (s *Set) Pin(spec MatchSpec) {
	key := spec.String()
	if i, ok := s.index[key]; ok {
		s.specs = append(s.specs[:i], s.specs[i+1:]...)
		for k, j := range s.index {
			if j > i {
				s.index[k] = j - 1
			}
		}
		delete(s.index, key)
	}
	s.Add(spec)
}

func (s *Set) Len() int {
	return len(s.specs)
}

func (s *Set) Contains(spec MatchSpec) bool {
	_, ok := s.index[spec.String()]
	return ok
}

// Specs returns a copy of the specifiers in order.
func (s *Set) Specs() []MatchSpec {
	out := make([]MatchSpec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Strings returns the canonical form of every specifier in order.
func (s *Set) Strings() []string {
	out := make([]string, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.String()
	}
	return out
}

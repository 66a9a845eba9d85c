package network

import "sort"

// Set is the collection of networks a daemon mediates, keyed by name.
type Set struct {
	byName map[string]*Network
}

// NewSet collects nets. A later network replaces an earlier one of the same name.
func NewSet(nets ...*Network) *Set {
	s := &Set{byName: make(map[string]*Network, len(nets))}
	for _, n := range nets {
		if n != nil {
			s.byName[n.Name()] = n
		}
	}
	return s
}

func (s *Set) Get(name string) (*Network, bool) {
	n, ok := s.byName[name]
	return n, ok
}

// Names returns the network names in sorted order.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every network.
func (s *Set) Close() {
	for _, n := range s.byName {
		n.Close()
	}
}

// Package topology defines which face landmarks are joined by a line when a
// landmark set is drawn. Sets are immutable once built.
package topology

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Connection joins two landmark indices.
type Connection struct {
	Start int
	End   int
}

// MarshalJSON encodes a connection as a two-element array.
func (c Connection) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Start, c.End})
}

// UnmarshalJSON decodes a connection from a two-element array.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	c.Start, c.End = pair[0], pair[1]
	return nil
}

// Group names one connector group of the face mesh.
type Group int

const (
	Tesselation Group = iota
	RightEye
	RightEyebrow
	LeftEye
	LeftEyebrow
	FaceOval
	Lips
	RightIris
	LeftIris
)

// DrawOrder is the order groups are drawn in for every landmark set.
var DrawOrder = []Group{
	Tesselation,
	RightEye,
	RightEyebrow,
	LeftEye,
	LeftEyebrow,
	FaceOval,
	Lips,
	RightIris,
	LeftIris,
}

var groupNames = map[Group]string{
	Tesselation:  "tesselation",
	RightEye:     "right_eye",
	RightEyebrow: "right_eyebrow",
	LeftEye:      "left_eye",
	LeftEyebrow:  "left_eyebrow",
	FaceOval:     "face_oval",
	Lips:         "lips",
	RightIris:    "right_iris",
	LeftIris:     "left_iris",
}

// String returns the wire name of the group.
func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// ParseGroup returns the group with the given wire name.
func ParseGroup(name string) (Group, bool) {
	for g, n := range groupNames {
		if n == name {
			return g, true
		}
	}
	return 0, false
}

// Set holds the connections of every group. The zero value is empty.
type Set struct {
	groups map[Group][]Connection
}

// Default returns the built-in set. The tesselation is empty: the full mesh
// is large and is supplied by the landmarker runtime or a topology file.
func Default() *Set {
	s := &Set{groups: make(map[Group][]Connection, len(DrawOrder))}
	for g, conns := range builtin {
		s.groups[g] = conns
	}
	return s
}

// Connections returns the connections of g. The slice is shared and must not be modified.
func (s *Set) Connections(g Group) []Connection {
	if s == nil {
		return nil
	}
	return s.groups[g]
}

// With returns a copy of s where g is replaced by conns.
func (s *Set) With(g Group, conns []Connection) *Set {
	out := &Set{groups: make(map[Group][]Connection, len(DrawOrder))}
	if s != nil {
		for k, v := range s.groups {
			out.groups[k] = v
		}
	}
	cp := make([]Connection, len(conns))
	copy(cp, conns)
	out.groups[g] = cp
	return out
}

// Merge returns a copy of s overlaid with every non-empty group of other.
func (s *Set) Merge(other *Set) *Set {
	out := s
	if other == nil {
		return out
	}
	for _, g := range DrawOrder {
		if conns := other.groups[g]; len(conns) > 0 {
			out = out.With(g, conns)
		}
	}
	return out
}

// MaxIndex returns the highest landmark index referenced, or -1 when empty.
func (s *Set) MaxIndex() int {
	max := -1
	if s == nil {
		return max
	}
	for _, conns := range s.groups {
		for _, c := range conns {
			if c.Start > max {
				max = c.Start
			}
			if c.End > max {
				max = c.End
			}
		}
	}
	return max
}

// FromMap builds a set from wire names to connections. Unknown names are an error.
func FromMap(m map[string][]Connection) (*Set, error) {
	s := &Set{groups: make(map[Group][]Connection, len(m))}
	for name, conns := range m {
		g, ok := ParseGroup(name)
		if !ok {
			return nil, fmt.Errorf("topology: unknown group %q", name)
		}
		for _, c := range conns {
			if c.Start < 0 || c.End < 0 {
				return nil, fmt.Errorf("topology: negative index in %s", name)
			}
		}
		s.groups[g] = conns
	}
	return s, nil
}

// Load decodes a JSON object of group name to connection pairs and overlays it on Default.
//
//	{"tesselation": [[127, 34], [34, 139], ...], "lips": [...]}
func Load(r io.Reader) (*Set, error) {
	var m map[string][]Connection
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("topology: decode: %w", err)
	}
	s, err := FromMap(m)
	if err != nil {
		return nil, err
	}
	return Default().Merge(s), nil
}

// LoadFile is Load for a file on disk.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	defer f.Close()
	return Load(f)
}

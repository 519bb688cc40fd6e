package gojabridge

import (
	"fmt"
	"slices"
	"sync"
)

// EnumEntry declares one member of an enum family.
type EnumEntry struct {
	Name  string
	Value int64
}

// Family is a registered enum family. Families are immutable once
// registered.
type Family struct {
	name    string
	members []*Member
	byName  map[string]*Member
	byValue map[int64]*Member
}

// Member is one named value of a [Family]. A member references its family
// without owning it, so [Member.Family] is constant time.
type Member struct {
	family *Family
	name   string
	value  int64
}

// Registry records enum families by name. It is safe for concurrent use,
// and may be shared between modules with [WithRegistry].
type Registry struct {
	mu       sync.RWMutex
	families map[string]*Family
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*Family)}
}

// FamilyDecl declares a family for [Registry.RegisterAll].
type FamilyDecl struct {
	Name    string
	Members []EnumEntry
}

// Register adds a family. A family name may be registered once: a second
// registration is rejected with [ErrDuplicateEnumFamily] rather than
// merged. Member names and values must each be unique within the family,
// otherwise [ErrDuplicateMember] is returned.
func (r *Registry) Register(family string, members ...EnumEntry) (*Family, error) {
	fs, err := r.RegisterAll(FamilyDecl{Name: family, Members: members})
	if err != nil {
		return nil, err
	}
	return fs[0], nil
}

// RegisterAll adds every declared family, or none of them. It fails under
// the same conditions as [Registry.Register], including when two
// declarations share a name.
func (r *Registry) RegisterAll(decls ...FamilyDecl) ([]*Family, error) {
	fs := make([]*Family, len(decls))
	for i, decl := range decls {
		f, err := newFamily(decl.Name, decl.Members)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.families == nil {
		r.families = make(map[string]*Family)
	}
	seen := make(map[string]struct{}, len(fs))
	for _, f := range fs {
		if _, ok := r.families[f.name]; ok {
			return nil, fmt.Errorf("gojabridge: enum %s: %w", f.name, ErrDuplicateEnumFamily)
		}
		if _, ok := seen[f.name]; ok {
			return nil, fmt.Errorf("gojabridge: enum %s: %w", f.name, ErrDuplicateEnumFamily)
		}
		seen[f.name] = struct{}{}
	}
	for _, f := range fs {
		r.families[f.name] = f
	}
	return fs, nil
}

func newFamily(family string, members []EnumEntry) (*Family, error) {
	if family == "" {
		return nil, fmt.Errorf("gojabridge: enum family name must not be empty")
	}

	f := &Family{
		name:    family,
		members: make([]*Member, 0, len(members)),
		byName:  make(map[string]*Member, len(members)),
		byValue: make(map[int64]*Member, len(members)),
	}
	for _, entry := range members {
		if entry.Name == "" || entry.Name == "$name" {
			return nil, fmt.Errorf("gojabridge: enum %s: invalid member name %q", family, entry.Name)
		}
		if _, ok := f.byName[entry.Name]; ok {
			return nil, fmt.Errorf("gojabridge: enum %s: member %s: %w", family, entry.Name, ErrDuplicateMember)
		}
		if prev, ok := f.byValue[entry.Value]; ok {
			return nil, fmt.Errorf("gojabridge: enum %s: members %s and %s share value %d: %w", family, prev.name, entry.Name, entry.Value, ErrDuplicateMember)
		}
		m := &Member{family: f, name: entry.Name, value: entry.Value}
		f.members = append(f.members, m)
		f.byName[m.name] = m
		f.byValue[m.value] = m
	}
	return f, nil
}

// Family returns the named family, or nil.
func (r *Registry) Family(name string) *Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.families[name]
}

// Families returns the registered family names, sorted.
func (r *Registry) Families() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Resolve finds the member of family with the given value.
func (r *Registry) Resolve(family string, value int64) (*Member, error) {
	f := r.Family(family)
	if f == nil {
		return nil, fmt.Errorf("gojabridge: enum %s is not registered: %w", family, ErrUnknownMember)
	}
	m := f.byValue[value]
	if m == nil {
		return nil, fmt.Errorf("gojabridge: enum %s has no member with value %d: %w", family, value, ErrUnknownMember)
	}
	return m, nil
}

// Lookup finds the member of family with the given name.
func (r *Registry) Lookup(family, name string) (*Member, error) {
	f := r.Family(family)
	if f == nil {
		return nil, fmt.Errorf("gojabridge: enum %s is not registered: %w", family, ErrUnknownMember)
	}
	m := f.byName[name]
	if m == nil {
		return nil, fmt.Errorf("gojabridge: enum %s has no member named %s: %w", family, name, ErrUnknownMember)
	}
	return m, nil
}

// Name returns the family name, exposed to script code as $name.
func (f *Family) Name() string { return f.name }

// Members returns the members in declaration order.
func (f *Family) Members() []*Member { return slices.Clone(f.members) }

// Name returns the member name.
func (m *Member) Name() string { return m.name }

// Value returns the member value.
func (m *Member) Value() int64 { return m.value }

// Family returns the family the member belongs to.
func (m *Member) Family() *Family { return m.family }

// Equal reports whether other is a member of the same family with the same
// value.
func (m *Member) Equal(other any) bool {
	o, ok := other.(*Member)
	if !ok || m == nil || o == nil {
		return false
	}
	return m.family == o.family && m.value == o.value
}

func (m *Member) String() string {
	return m.family.name + "." + m.name
}

// FamilyOf returns the family name of m.
func FamilyOf(m *Member) string {
	return m.family.name
}

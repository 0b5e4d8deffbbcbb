package identity

// Role names act as both identity and authorization tag. The set is closed:
// lifecycle operations validate assignments against it instead of issuing a
// by-name lookup per assignment.
const (
	// RoleAdmin is the administrative tag.
	RoleAdmin = "ROLE_ADMIN"
	// RoleUser is the standard user tag, assigned by default on registration.
	RoleUser = "ROLE_USER"
	// RoleAnonymous tags unauthenticated principals.
	RoleAnonymous = "ROLE_ANONYMOUS"
)

// RoleSet is the closed set of assignable roles, loaded once at construction
// and referenced by stable identity thereafter.
type RoleSet struct {
	names map[string]struct{}
}

// DefaultRoleSet returns the built-in role set.
func DefaultRoleSet() RoleSet {
	return NewRoleSet(RoleAdmin, RoleUser, RoleAnonymous)
}

// NewRoleSet builds a role set from the given names.
func NewRoleSet(names ...string) RoleSet {
	set := RoleSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if name != "" {
			set.names[name] = struct{}{}
		}
	}
	return set
}

// Contains reports whether name is a member of the set. Matching is exact and
// case sensitive.
func (s RoleSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Validate returns ErrUnknownRole for the first name outside the set.
func (s RoleSet) Validate(names ...string) error {
	for _, name := range names {
		if !s.Contains(name) {
			return wrapSentinel(ErrUnknownRole, map[string]any{
				"role": name,
			})
		}
	}
	return nil
}

// Names returns the member names. Order is unspecified.
func (s RoleSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	return out
}

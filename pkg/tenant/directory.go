package tenant

// Directory answers whether a claimed tenant exists in this deployment.
// The verifier consults it after signature validation so that a valid token
// for a decommissioned tenant is rejected with Forbidden, not Unauthorized.
type Directory interface {
	Exists(id ID) bool
}

// StaticDirectory is a Directory backed by a fixed allow list, typically
// loaded from configuration at startup.
type StaticDirectory struct {
	tenants map[ID]struct{}
}

// NewStaticDirectory builds a directory from the given tenant identifiers.
func NewStaticDirectory(ids []string) *StaticDirectory {
	tenants := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		tenants[ID(id)] = struct{}{}
	}

	return &StaticDirectory{tenants: tenants}
}

// Exists reports whether the tenant is in the allow list.
func (d *StaticDirectory) Exists(id ID) bool {
	_, ok := d.tenants[id]
	return ok
}

//go:build !hidegroups

package buildflags

// Group is hidden by the hidegroups build tag.
//
//navgen:entity
type Group struct {
	Name    string
	Members []*User
}

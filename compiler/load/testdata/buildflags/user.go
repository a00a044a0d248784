package buildflags

//navgen:entity
type User struct {
	Name string
}

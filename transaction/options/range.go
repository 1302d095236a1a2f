package options

// Range describes an inclusive lower and upper bound for a filterable column.
// Either bound is optional.
type Range interface {
	From() (interface{}, bool)
	To() (interface{}, bool)
}

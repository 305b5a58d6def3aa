package domain

// Stop is a named bus stop and the opaque code the tracking service uses for it.
type Stop struct {
	Name string
	Code string
}

// Route is a boarding/alighting stop pair, both resolved directory names.
type Route struct {
	Boarding  string
	Alighting string
}

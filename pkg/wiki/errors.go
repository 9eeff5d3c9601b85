package wiki

import "fmt"

// FetchError is returned for any failed page or search request. Callers
// treat the title as unresolvable for this attempt and carry on.
type FetchError struct {
	Title  string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %q: http status %d", e.Title, e.Status)
	}
	return fmt.Sprintf("fetch %q: %v", e.Title, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

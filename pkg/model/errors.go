package model

import "fmt"

// InvalidSearchQuery reports a user-correctable problem with a search
// request: a malformed query, an empty one, or an out-of-range page.
type InvalidSearchQuery struct {
	Detail string
}

func (e *InvalidSearchQuery) Error() string {
	return e.Detail
}

// RequestError carries an HTTP status for the presentation layer, most
// commonly a 404 for an unknown project or release.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
}

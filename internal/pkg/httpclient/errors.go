package httpclient

import "errors"

// ErrNotFound marks a 404 from a downstream service so adapters can translate
// it into their own not-found type.
var ErrNotFound = errors.New("resource not found")

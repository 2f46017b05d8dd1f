package oodle

import "errors"

// Parse errors. Oodle files are hand-editable, so every decode failure is
// returned to the caller; a malformed file must never take the process down
// or affect sibling documents.
var (
	ErrMissingTitle        = errors.New("oodle: missing title line")
	ErrMalformedTitle      = errors.New("oodle: malformed title markers")
	ErrMalformedIdentifier = errors.New("oodle: malformed identifier markers")
	ErrMissingDateline     = errors.New("oodle: missing dateline")
	ErrMalformedDateline   = errors.New("oodle: malformed dateline")
)

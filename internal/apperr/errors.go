package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateTitle     = errors.New("duplicate page title")
	ErrMissingFrontMatter = errors.New("missing front matter")
	ErrBuildInProgress    = errors.New("build already in progress")
)

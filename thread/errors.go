package thread

import "errors"

var (
	errInvalidURL = errors.New("not a reddit post URL")
	errNoClient   = errors.New("reddit client unavailable")
	errEmptyPost  = errors.New("post has no title")
)

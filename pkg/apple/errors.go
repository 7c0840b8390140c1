package apple

import "errors"

var (
	ErrDelegateReleased = errors.New("authorization delegate already released")
	ErrNoAnchor         = errors.New("no presentation anchor available")
)

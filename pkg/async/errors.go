package async

import "errors"

var ErrAlreadyCompleted = errors.New("async: future already completed")

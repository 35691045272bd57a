package repository

import "errors"

var errThreadAlreadyMapped = errors.New("thread already mapped to a conversation")

package postgres

import "errors"

var errClosed = errors.New("postgres: handle is closed")

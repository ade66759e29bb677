package memdb

import "errors"

var errClosed = errors.New("memdb: handle is closed")

package docqa

import "errors"

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("engine is closed")

	// ErrNoStore is returned by operations that need persistence when the
	// engine keeps indexes in memory only.
	ErrNoStore = errors.New("engine has no index store")
)

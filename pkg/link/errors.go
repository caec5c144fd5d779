package link

import "errors"

var (
	// ErrProtocolParse indicates an inbound line that is not a JSON object.
	ErrProtocolParse = errors.New("protocol parse error")
	// ErrTransport indicates an I/O failure on the byte stream.
	ErrTransport = errors.New("transport error")
	// ErrClosed is returned when using a link after Close.
	ErrClosed = errors.New("link closed")
)

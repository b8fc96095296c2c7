package har

import "errors"

var (
	// ErrMalformedExchange means an exchange is missing a structurally
	// required field (request method, response status) and no entry can
	// be built from it.
	ErrMalformedExchange = errors.New("malformed exchange")

	// ErrAlreadyFlushed is returned by Archive.Flush after the first
	// call. The flush is one-shot; a second call is a contract
	// violation, not a retry mechanism.
	ErrAlreadyFlushed = errors.New("archive already flushed")

	// ErrSinkWrite wraps I/O failures while writing the archive. The
	// in-memory entries are unaffected; only the persisted copy is
	// missing or incomplete.
	ErrSinkWrite = errors.New("archive sink write failed")
)

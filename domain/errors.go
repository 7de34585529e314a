package domain

import "errors"

var (
	// ErrNegativeSize rejects a price level with a negative size. The level map
	// is left untouched.
	ErrNegativeSize = errors.New("price level size must not be negative")

	// ErrNotInitialized means an incremental update arrived before the baseline
	// snapshot. Accepting it would corrupt the book, so the update is refused.
	ErrNotInitialized = errors.New("order book has not received its initial snapshot")

	// ErrConsistencyFault means a re-sent snapshot disagrees with the live book.
	// The incoming snapshot has already been applied when this is returned.
	ErrConsistencyFault = errors.New("snapshot does not match the live order book")

	ErrUnknownInstrument = errors.New("instrument is not configured")
)

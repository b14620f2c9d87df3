package event

import "errors"

var (
	// ErrUnrecognizedEventKind is returned when the envelope's event discriminator
	// does not match any known listener event
	ErrUnrecognizedEventKind = errors.New("unrecognized event kind")

	// ErrMalformedEvent is returned when a required field for the matched variant
	// is missing or unparsable
	ErrMalformedEvent = errors.New("malformed event")

	// ErrInvalidEventData is returned when a field is present but carries an
	// invalid value (e.g. negative duration)
	ErrInvalidEventData = errors.New("invalid event data")
)

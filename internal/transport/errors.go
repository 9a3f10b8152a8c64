package transport

import "errors"

var (
	// ErrMalformedURL reports a remote URL missing a required delimiter.
	ErrMalformedURL = errors.New("malformed URL")

	// ErrAuthFailed reports rejected or unusable credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrSequence reports a continuation action invoked without its
	// listing action on the same subtransport.
	ErrSequence = errors.New("service called out of sequence")

	// ErrStreamInUse reports an attempt to close a subtransport while its
	// stream is still open. This is a contract violation by the driver,
	// not a recoverable transport condition.
	ErrStreamInUse = errors.New("stream still open")
)

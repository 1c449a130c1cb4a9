package errors

import (
	stderrors "errors"
)

// Error kinds. A run-level caller decides with errors.Is whether a failure is
// fatal (configuration, source access, storage) or degrades (media fetch).
var (
	ErrConfiguration = stderrors.New("configuration error")
	ErrSourceAccess  = stderrors.New("source access error")
	ErrMediaFetch    = stderrors.New("media fetch error")
	ErrStorage       = stderrors.New("storage error")
)

var (
	ErrMissingBotToken  = stderrors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrMissingChannelID = stderrors.New("CHANNEL_ID environment variable is required")
	ErrNoMedia          = stderrors.New("message has no downloadable media")
	ErrCircuitOpen      = stderrors.New("media downloads temporarily disabled")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() error {
	return e.err
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// Mark tags err with kind so that errors.Is(err, kind) reports true while the
// original chain stays reachable. A nil err stays nil.
func Mark(kind, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}

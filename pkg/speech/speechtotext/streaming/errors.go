package streaming

import (
	"fmt"
)

type ErrInvalidParams struct {
	Field  string
	Reason string
}

func (e ErrInvalidParams) Error() string {
	return fmt.Sprintf("invalid stream parameter '%s': %s", e.Field, e.Reason)
}

type ErrSessionClosed struct{}

func (ErrSessionClosed) Error() string {
	return "the streaming session is closed"
}

type ErrTranscribe struct {
	Err error
}

func (e ErrTranscribe) Error() string {
	return fmt.Sprintf("unable to transcribe the window: %v", e.Err)
}

func (e ErrTranscribe) Unwrap() error {
	return e.Err
}

type ErrDetectVoice struct {
	Err error
}

func (e ErrDetectVoice) Error() string {
	return fmt.Sprintf("unable to detect voice activity: %v", e.Err)
}

func (e ErrDetectVoice) Unwrap() error {
	return e.Err
}

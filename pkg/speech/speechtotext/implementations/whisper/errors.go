package whisper

import (
	"fmt"
)

type ErrInitModel struct {
	Path string
	Err  error
}

func (e ErrInitModel) Error() string {
	return fmt.Sprintf("unable to initialize the model '%s': %v", e.Path, e.Err)
}

func (e ErrInitModel) Unwrap() error {
	return e.Err
}

type ErrInitContext struct {
	Err error
}

func (e ErrInitContext) Error() string {
	return fmt.Sprintf("unable to initialize the context: %v", e.Err)
}

func (e ErrInitContext) Unwrap() error {
	return e.Err
}

type ErrModelCannotTranslate struct{}

func (ErrModelCannotTranslate) Error() string {
	return "the provided model cannot translate"
}

type ErrClosed struct{}

func (ErrClosed) Error() string {
	return "the whisper context is already released"
}

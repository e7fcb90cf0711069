package util

import "errors"

var (
	ErrValidation      = errors.New("input rejected")
	ErrUnsupportedType = errors.New("file type not supported")
	ErrTooLarge        = errors.New("file exceeds size limit")
	ErrEmptySubmission = errors.New("select a file or enter text")

	ErrNetwork           = errors.New("summarization service unreachable")
	ErrPartialBatch      = errors.New("summarization service reported a file error")
	ErrAuth              = errors.New("unauthorized")
	ErrMalformedMetadata = errors.New("malformed record metadata")

	ErrBusy       = errors.New("another operation is in progress")
	ErrNotFound   = errors.New("record not found")
	ErrUnknownKey = errors.New("unknown sort key")
)

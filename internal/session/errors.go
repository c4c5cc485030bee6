package session

import "errors"

var (
	ErrUnknownQuestion       = errors.New("question not part of this attempt")
	ErrQuestionTypeMismatch  = errors.New("answer kind does not match question type")
	ErrMalformedOption       = errors.New("selected option has no identifier")
	ErrAttachmentsNotAllowed = errors.New("question does not accept attachments")
	ErrDuplicateQuestionKey  = errors.New("duplicate question key")
	ErrEmptyQuestionKey      = errors.New("question key is empty")

	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file exceeds the maximum size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInvalidDataURL      = errors.New("invalid data url")
)

package models

import (
	"fmt"
	"io"
	"time"
)

type ProcessingStatus string

const (
	ProcessingPending ProcessingStatus = "pending"
	ProcessingSuccess ProcessingStatus = "success"
	ProcessingFailure ProcessingStatus = "failure"
)

// ProcessingKey disambiguates same-named files across re-uploads
type ProcessingKey struct {
	QuestionKey string `json:"question_key"`
	Filename    string `json:"filename"`
	Token       string `json:"token"`
}

func (k ProcessingKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.QuestionKey, k.Filename, k.Token)
}

type ProcessingState struct {
	Key    ProcessingKey    `json:"key"`
	Status ProcessingStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// Upload is a file selected by the student or an image captured from the drawing canvas.
// Exactly one of Data or Open is used; Open wins when both are set.
type Upload struct {
	Filename string
	MIMEType string
	Size     int64
	// Token distinguishes uploads that share a filename and size, e.g. a modification time
	Token string
	Data  []byte
	Open  func() (io.ReadCloser, error)
}

// ProcessingKeyFor builds the composite key of an upload attached to questionKey
func (u Upload) ProcessingKeyFor(questionKey string) ProcessingKey {
	token := u.Token
	if token == "" {
		token = fmt.Sprintf("%d", u.Size)
	}
	return ProcessingKey{QuestionKey: questionKey, Filename: u.Filename, Token: token}
}

// FileAttachment is an encoded attachment ready to be submitted
type FileAttachment struct {
	Filename string    `json:"filename"`
	MIMEType string    `json:"mime_type"`
	Size     int64     `json:"size"`
	Data     []byte    `json:"-"`
	AddedAt  time.Time `json:"added_at"`
}

func (a FileAttachment) Info() FileInfo {
	return FileInfo{Filename: a.Filename, MIMEType: a.MIMEType, Size: a.Size, AddedAt: a.AddedAt}
}

// FileInfo is the attachment metadata exposed to callers without the raw bytes
type FileInfo struct {
	Filename string    `json:"filename"`
	MIMEType string    `json:"mime_type"`
	Size     int64     `json:"size"`
	AddedAt  time.Time `json:"added_at"`
}

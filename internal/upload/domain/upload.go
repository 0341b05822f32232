package domain

import (
	"context"
	"errors"
	"io"
)

type Kind string

const (
	KindSupport Kind = "support"
	KindService Kind = "service"
)

// File is one part of a multipart upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type SupportRequest struct {
	CustomerID string
	UserID     string
	RequestID  string
	ReplyID    string
	Files      []File
}

type ServiceRequest struct {
	CustomerID          string
	UserID              string
	FileType            string
	ProcessingHistoryID string
	PolicyID            string
	Files               []File
}

type UploadedFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type ItemError struct {
	Name string    `json:"name"`
	Kind ErrorKind `json:"kind"`
}

// Result lists what made it to storage and what did not. Successes are kept
// when other files fail.
type Result struct {
	Uploaded []UploadedFile `json:"uploaded"`
	Errors   []ItemError    `json:"errors,omitempty"`
}

func (r Result) Partial() bool {
	return len(r.Uploaded) > 0 && len(r.Errors) > 0
}

type ErrorKind string

const (
	KindFileTooLarge       ErrorKind = "file_too_large"
	KindTooManyFiles       ErrorKind = "too_many_files"
	KindNoFiles            ErrorKind = "no_files"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindUnknown            ErrorKind = "unknown"
)

// Store writes objects. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

type Service interface {
	UploadSupport(ctx context.Context, req SupportRequest) (*Result, error)
	UploadService(ctx context.Context, req ServiceRequest) (*Result, error)
}

var (
	ErrNoFiles                  = errors.New("no_files")
	ErrTooManyFiles             = errors.New("too_many_files")
	ErrInvalidCustomer          = errors.New("invalid_customer")
	ErrInvalidRequestID         = errors.New("invalid_request_id")
	ErrInvalidReplyID           = errors.New("invalid_reply_id")
	ErrInvalidFileType          = errors.New("invalid_file_type")
	ErrInvalidProcessingHistory = errors.New("invalid_processing_history_id")
	ErrStorage                  = errors.New("storage_unavailable")
)

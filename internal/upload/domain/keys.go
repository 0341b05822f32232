package domain

import (
	"path"
	"strings"

	"github.com/gosimple/slug"
)

const fallbackFileName = "file"

// SanitizeFileName slugifies the base name and keeps a lower-cased extension.
// The result is never empty.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" {
		name = ""
	}

	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" && ext != "" {
		// Dotfiles such as ".env" have no extension of their own.
		base, ext = ext, ""
	}

	cleanExt := slug.Make(strings.TrimPrefix(ext, "."))
	cleanBase := slug.Make(base)
	if cleanBase == "" {
		cleanBase = fallbackFileName
	}
	if cleanExt == "" {
		return cleanBase
	}
	return cleanBase + "." + cleanExt
}

// SupportKey builds support/{customerId}/{requestId}/request/{file} or, for
// replies, support/{customerId}/{requestId}/reply/{replyId}/{file}.
func SupportKey(customerID, requestID, replyID, fileName string) (string, error) {
	if !validSegment(customerID) {
		return "", ErrInvalidCustomer
	}
	if !validSegment(requestID) {
		return "", ErrInvalidRequestID
	}
	file := SanitizeFileName(fileName)
	if strings.TrimSpace(replyID) == "" {
		return path.Join("support", customerID, requestID, "request", file), nil
	}
	if !validSegment(replyID) {
		return "", ErrInvalidReplyID
	}
	return path.Join("support", customerID, requestID, "reply", replyID, file), nil
}

// ServiceKey builds service/{fileType}/{customerId}/{processingHistoryId}/{file}.
func ServiceKey(fileType, customerID, processingHistoryID, fileName string) (string, error) {
	if !validSegment(fileType) {
		return "", ErrInvalidFileType
	}
	if !validSegment(customerID) {
		return "", ErrInvalidCustomer
	}
	if !validSegment(processingHistoryID) {
		return "", ErrInvalidProcessingHistory
	}
	return path.Join("service", fileType, customerID, processingHistoryID, SanitizeFileName(fileName)), nil
}

func validSegment(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Report Final.PDF":       "report-final.pdf",
		"../../etc/passwd":       "passwd",
		`C:\Users\me\scan 1.png`: "scan-1.png",
		"   ":                    "file",
		".env":                   "env",
		"!!!.txt":                "file.txt",
		"archive.tar.gz":         "archive-tar.gz",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestSupportKey(t *testing.T) {
	key, err := SupportKey("cus_1", "req-9", "", "Screen Shot.png")
	require.NoError(t, err)
	assert.Equal(t, "support/cus_1/req-9/request/screen-shot.png", key)

	key, err = SupportKey("cus_1", "req-9", "rep-2", "log.txt")
	require.NoError(t, err)
	assert.Equal(t, "support/cus_1/req-9/reply/rep-2/log.txt", key)

	_, err = SupportKey("cus/1", "req-9", "", "a.txt")
	assert.ErrorIs(t, err, ErrInvalidCustomer)
	_, err = SupportKey("cus_1", "", "", "a.txt")
	assert.ErrorIs(t, err, ErrInvalidRequestID)
	_, err = SupportKey("cus_1", "req", "..", "a.txt")
	assert.ErrorIs(t, err, ErrInvalidReplyID)
}

func TestServiceKey(t *testing.T) {
	key, err := ServiceKey("csv", "cus_1", "ph-7", "Input Data.CSV")
	require.NoError(t, err)
	assert.Equal(t, "service/csv/cus_1/ph-7/input-data.csv", key)

	_, err = ServiceKey("", "cus_1", "ph-7", "a.csv")
	assert.ErrorIs(t, err, ErrInvalidFileType)
	_, err = ServiceKey("csv", "cus_1", "", "a.csv")
	assert.ErrorIs(t, err, ErrInvalidProcessingHistory)
}

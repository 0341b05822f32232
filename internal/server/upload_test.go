package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/smallbiznis/portal/internal/config"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	uploaddomain "github.com/smallbiznis/portal/internal/upload/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallUploads(p *config.Policy) {
	p.Upload.MaxGenericBytes = 16
	p.Upload.MaxServiceBytes = 32
	p.Upload.MaxFiles = 3
}

func TestUploadSupportStoresUnderRequestKey(t *testing.T) {
	h := newHarness(t, smallUploads)
	cookies := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postFiles("/en/actions/upload/support",
		map[string]string{"request_id": "req_1", "reply_id": "rep_1"},
		[]testFile{{name: "note.txt", content: "hello"}}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "Files uploaded.", res.Message)
	var result uploaddomain.Result
	decodeData(t, res, &result)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, []string{result.Uploaded[0].Key}, h.store.Keys())
	assert.True(t, strings.HasPrefix(result.Uploaded[0].Key, "support/cus_1/req_1/reply/rep_1/"), result.Uploaded[0].Key)
}

func TestUploadPartialSuccess(t *testing.T) {
	h := newHarness(t, smallUploads)
	cookies := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postFiles("/en/actions/upload/support",
		map[string]string{"request_id": "req_1"},
		[]testFile{
			{name: "small.txt", content: "ok"},
			{name: "big.txt", content: strings.Repeat("x", 17)},
		}, cookies)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())

	res := decode(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, "Some files could not be uploaded.", res.Message)
	assert.Equal(t, []string{"The file is larger than the allowed size."}, res.Errors["big.txt"])

	var result uploaddomain.Result
	decodeData(t, res, &result)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "small.txt", result.Uploaded[0].Name)
	assert.Len(t, h.store.Keys(), 1)
}

func TestUploadAllFilesRejected(t *testing.T) {
	h := newHarness(t, smallUploads)
	cookies := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postFiles("/en/actions/upload/support",
		map[string]string{"request_id": "req_1"},
		[]testFile{{name: "big.txt", content: strings.Repeat("x", 17)}}, cookies)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "No files could be uploaded.", decode(t, rec).Message)
	assert.Empty(t, h.store.Keys())
}

func TestUploadBatchValidation(t *testing.T) {
	h := newHarness(t, smallUploads)
	cookies := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postFiles("/en/actions/upload/support", map[string]string{"request_id": "req_1"}, nil, cookies)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Errors, "files")

	rec = h.postFiles("/en/actions/upload/support", nil, []testFile{{name: "a.txt", content: "a"}}, cookies)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Errors, "request_id")

	files := []testFile{{"a", "a"}, {"b", "b"}, {"c", "c"}, {"d", "d"}}
	rec = h.postFiles("/en/actions/upload/support", map[string]string{"request_id": "req_1"}, files, cookies)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"Too many files selected."}, decode(t, rec).Errors["files"])
	assert.Empty(t, h.store.Keys())
}

func TestUploadServiceRecordsStorageUsage(t *testing.T) {
	h := newHarness(t, smallUploads)
	cookies := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postFiles("/en/actions/upload/service",
		map[string]string{"file_type": "csv", "processing_history_id": "ph_1", "policy_id": "pol_1"},
		[]testFile{{name: "data.csv", content: "a,b,c"}}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.getJSON("/en/api/usage/monthly", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		StorageBytes int64 `json:"storage_bytes"`
	}
	decodeData(t, decode(t, rec), &summary)
	assert.Equal(t, int64(5), summary.StorageBytes)
}

func TestUploadRequiresCompany(t *testing.T) {
	h := newHarness(t)
	_, err := h.idp.Seed("new@acme.test", testPassword, nil)
	require.NoError(t, err)
	cookies := h.signIn("new@acme.test")

	rec := h.postFiles("/en/actions/upload/support",
		map[string]string{"request_id": "req_1"},
		[]testFile{{name: "a.txt", content: "a"}}, cookies)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Register your company first.", decode(t, rec).Message)
}

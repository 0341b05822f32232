package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	deletiondomain "github.com/smallbiznis/portal/internal/deletion/domain"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateView struct {
	Decision deletiondomain.GateDecision `json:"decision"`
	Banner   map[string]string           `json:"banner"`
}

func (h *harness) gate(page string, cookies []*http.Cookie) gateView {
	h.t.Helper()
	rec := h.getJSON("/en/gate/"+page, cookies)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	var view gateView
	decodeData(h.t, decode(h.t, rec), &view)
	return view
}

func (h *harness) requestedDaysAgo(days int) map[string]string {
	stamp := h.clock.Now().Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	return map[string]string{identitydomain.AttrDeletionRequestedAt: stamp}
}

func TestGateNormalWithoutDeletionRequest(t *testing.T) {
	h := newHarness(t)
	admin := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)
	member := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	adminView := h.gate("dashboard", admin)
	assert.Equal(t, deletiondomain.ViewNormal, adminView.Decision.View)
	assert.True(t, adminView.Decision.CanRequestDeletion)
	assert.True(t, adminView.Decision.MutationsAllowed)
	assert.Equal(t, "Delete account", adminView.Banner["action"])

	memberView := h.gate("dashboard", member)
	assert.Equal(t, deletiondomain.ViewNormal, memberView.Decision.View)
	assert.False(t, memberView.Decision.CanRequestDeletion)
	assert.True(t, memberView.Decision.PageAccessible)

	rec := h.postJSON("/en/actions/profile", map[string]string{"department": "Ops"}, member)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGateSuspendsNonAdminOfDeletedTenant(t *testing.T) {
	h := newHarness(t)
	member := h.seedTenant("member@acme.test", identitydomain.RoleUser, h.requestedDaysAgo(95))

	view := h.gate("dashboard", member)
	assert.Equal(t, deletiondomain.ViewServiceSuspended, view.Decision.View)
	assert.True(t, view.Decision.Status.IsDeleted)
	assert.Equal(t, 0, view.Decision.Status.DaysRemaining)
	assert.False(t, view.Decision.CanRestore)
	assert.False(t, view.Decision.MutationsAllowed)
	assert.Equal(t, "Service suspended", view.Banner["title"])

	rec := h.postJSON("/en/actions/profile", map[string]string{"department": "Ops"}, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	res := decode(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, "This account is scheduled for deletion. Changes are disabled.", res.Message)

	rec = h.postFiles("/en/actions/upload/service",
		map[string]string{"file_type": "csv", "processing_history_id": "ph_1"},
		[]testFile{{name: "a.csv", content: "a,b"}}, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.store.Keys())

	rec = h.postForm("/en/actions/deletion/restore", nil, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.getJSON("/en/api/deletion/status", member)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateOffersRestoreToAdminAndRestoreClearsTenant(t *testing.T) {
	h := newHarness(t)
	deleted := h.requestedDaysAgo(95)
	admin := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, deleted)
	member := h.seedTenant("member@acme.test", identitydomain.RoleUser, deleted)

	view := h.gate("dashboard", admin)
	assert.Equal(t, deletiondomain.ViewDeletionPending, view.Decision.View)
	assert.True(t, view.Decision.CanRestore)
	assert.False(t, view.Decision.PageAccessible)
	assert.Equal(t, deletiondomain.AccountPath, view.Decision.Redirect)
	assert.Equal(t, "Restore account", view.Banner["action"])

	account := h.gate("account", admin)
	assert.True(t, account.Decision.PageAccessible)

	rec := h.postJSON("/en/actions/usage-limits", map[string]any{
		"usage_limit_value": 100,
		"usage_unit":        "MB",
		"exceed_action":     "notify",
	}, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.postForm("/en/actions/deletion/restore", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "Your account has been restored.", res.Message)
	var restored deletiondomain.RestoreResult
	decodeData(t, res, &restored)
	assert.True(t, restored.Restored)
	assert.Equal(t, 2, restored.AffectedUsers)
	assert.Equal(t, "/en/account", restored.Redirect)

	rec = h.getJSON("/en/api/deletion/status", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var status deletiondomain.DeletionStatus
	decodeData(t, decode(t, rec), &status)
	assert.False(t, status.IsDeleted)

	assert.Equal(t, deletiondomain.ViewNormal, h.gate("dashboard", member).Decision.View)
	assert.Empty(t, h.idp.Attributes("member@acme.test")[identitydomain.AttrDeletionRequestedAt])

	rec = h.postForm("/en/actions/deletion/restore", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, decode(t, rec), &restored)
	assert.False(t, restored.Restored)
}

func TestRestoreRejectsStaleExpectation(t *testing.T) {
	h := newHarness(t)
	admin := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, h.requestedDaysAgo(3))

	rec := h.postForm("/en/actions/deletion/restore", map[string][]string{"expected": {"2000-01-01T00:00:00Z"}}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, h.idp.Attributes("admin@acme.test")[identitydomain.AttrDeletionRequestedAt])
}

func TestRequestDeletionSuspendsMembers(t *testing.T) {
	h := newHarness(t)
	admin := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)
	member := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postJSON("/en/actions/deletion/request", nil, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.postJSON("/en/actions/deletion/request", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status deletiondomain.DeletionStatus
	decodeData(t, decode(t, rec), &status)
	assert.True(t, status.IsDeleted)
	assert.Equal(t, 90, status.DaysRemaining)
	assert.Equal(t, 2, status.AffectedUsers)

	assert.Equal(t, deletiondomain.ViewServiceSuspended, h.gate("upload", member).Decision.View)
}

func TestDeletionStatusCountsDaysUp(t *testing.T) {
	h := newHarness(t)
	stamp := h.clock.Now().Add(-(10*24 + 1) * time.Hour).Format(time.RFC3339)
	admin := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, map[string]string{
		identitydomain.AttrDeletionRequestedAt: stamp,
	})

	rec := h.getJSON("/en/api/deletion/status", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var status deletiondomain.DeletionStatus
	decodeData(t, decode(t, rec), &status)
	assert.Equal(t, 80, status.DaysRemaining)

	view := h.gate("account", admin)
	assert.Contains(t, view.Banner["body"], "80 days")
}

func TestDeletionIgnoresProfileWithoutUser(t *testing.T) {
	h := newHarness(t)
	admin := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)
	_, err := h.profiles.Create(context.Background(), profiledomain.CreateProfileRequest{
		UserID:     "ghost-user",
		UserName:   "ghost",
		Email:      "ghost@acme.test",
		CustomerID: "cus_1",
		Role:       identitydomain.RoleUser,
		Locale:     "en",
	})
	require.NoError(t, err)
	member := h.seedTenant("member@acme.test", identitydomain.RoleUser, nil)

	rec := h.postJSON("/en/actions/deletion/request", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status deletiondomain.DeletionStatus
	decodeData(t, decode(t, rec), &status)
	assert.Equal(t, 2, status.AffectedUsers)
	assert.Equal(t, deletiondomain.ViewServiceSuspended, h.gate("dashboard", member).Decision.View)

	rec = h.postForm("/en/actions/deletion/restore", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, deletiondomain.ViewNormal, h.gate("dashboard", member).Decision.View)
}

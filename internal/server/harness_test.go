package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/portal/internal/authorization"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	deletionservice "github.com/smallbiznis/portal/internal/deletion/service"
	"github.com/smallbiznis/portal/internal/dictionary"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/memory"
	"github.com/smallbiznis/portal/internal/identity/session"
	"github.com/smallbiznis/portal/internal/locale"
	paymentdomain "github.com/smallbiznis/portal/internal/payment/domain"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	profilerepository "github.com/smallbiznis/portal/internal/profile/repository"
	profileservice "github.com/smallbiznis/portal/internal/profile/service"
	"github.com/smallbiznis/portal/internal/ratelimit"
	"github.com/smallbiznis/portal/internal/upload/memstore"
	uploadservice "github.com/smallbiznis/portal/internal/upload/service"
	usagedomain "github.com/smallbiznis/portal/internal/usage/domain"
	usagerepository "github.com/smallbiznis/portal/internal/usage/repository"
	usageservice "github.com/smallbiznis/portal/internal/usage/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testPassword      = "Passw0rd!"
	testCode          = "123456"
	testInternalToken = "internal-secret"
)

type fakeGateway struct {
	mu          sync.Mutex
	customers   int
	attached    []string
	subscribed  []paymentdomain.SubscribeInput
	customerErr error
}

func (f *fakeGateway) CreateCustomer(_ context.Context, in paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	f.customers++
	return &paymentdomain.Customer{ID: fmt.Sprintf("cus_%d", f.customers), Name: in.Name, Email: in.BillingEmail}, nil
}

func (f *fakeGateway) CreateSetupIntent(_ context.Context, customerID string) (*paymentdomain.SetupIntent, error) {
	return &paymentdomain.SetupIntent{ID: "seti_" + customerID, ClientSecret: "secret"}, nil
}

func (f *fakeGateway) AttachDefaultPaymentMethod(_ context.Context, _ string, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, paymentMethodID)
	return nil
}

func (f *fakeGateway) Subscribe(_ context.Context, in paymentdomain.SubscribeInput) (*paymentdomain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, in)
	return &paymentdomain.Subscription{ID: "sub_1", Status: "active", BillingCycleAnchor: in.Anchor}, nil
}

func (f *fakeGateway) ListInvoices(context.Context, string, int) ([]paymentdomain.Invoice, error) {
	return []paymentdomain.Invoice{}, nil
}

func (f *fakeGateway) ListPaymentMethods(context.Context, string) ([]paymentdomain.PaymentMethod, error) {
	return []paymentdomain.PaymentMethod{}, nil
}

type harness struct {
	t        *testing.T
	srv      *Server
	idp      *memory.Provider
	clock    *clock.FakeClock
	payments *fakeGateway
	profiles profiledomain.Service
	usage    usagedomain.Service
	store    *memstore.Store
}

func newHarness(t *testing.T, tweaks ...func(*config.Policy)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	policy := config.DefaultPolicy()
	for _, tweak := range tweaks {
		tweak(&policy)
	}
	holder := config.NewStaticPolicyHolder(policy)
	log := zap.NewNop()

	idp := memory.New(clk, memory.WithCodes(func() string { return testCode }))
	sessions := session.NewManager(config.Config{})
	accessor := session.NewAccessor(session.Params{Provider: idp, Sessions: sessions, Clock: clk, Log: log})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	profiles := profileservice.New(profileservice.Params{DB: db, Log: log, Repo: profilerepository.Provide(), Clock: clk})
	usage := usageservice.New(usageservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Repo:   usagerepository.Provide(),
		Clock:  clk,
		Policy: holder,
	})
	store := memstore.New()
	uploads := uploadservice.New(uploadservice.Params{Log: log, Store: store, Usage: usage, Policy: holder})
	deletions := deletionservice.New(deletionservice.Params{
		Log:      log,
		Identity: idp,
		Profiles: profiles,
		Locker:   ratelimit.NewLocalLocker(clk.Now),
		Clock:    clk,
		Policy:   holder,
	})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	locales, err := locale.New("en")
	require.NoError(t, err)
	dict, err := dictionary.NewDefault()
	require.NoError(t, err)

	payments := &fakeGateway{}
	srv := NewServer(ServerParams{
		Gin:         gin.New(),
		Cfg:         config.Config{InternalAPIToken: testInternalToken},
		Log:         log,
		Clock:       clk,
		Policy:      holder,
		Locales:     locales,
		Dict:        dict,
		Identity:    idp,
		Sessions:    sessions,
		Accessor:    accessor,
		Payments:    payments,
		ProfileSvc:  profiles,
		UsageSvc:    usage,
		UploadSvc:   uploads,
		DeletionSvc: deletions,
		AuthzSvc:    authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
	})

	return &harness{
		t:        t,
		srv:      srv,
		idp:      idp,
		clock:    clk,
		payments: payments,
		profiles: profiles,
		usage:    usage,
		store:    store,
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&profiledomain.UserProfile{},
		&usagedomain.UsageLimit{},
		&usagedomain.DataUsage{},
	))
	return db
}

// seedTenant registers a signed-in user of customer cus_1 with a profile so
// tenant-wide operations reach it.
func (h *harness) seedTenant(email, role string, extra map[string]string) []*http.Cookie {
	h.t.Helper()
	attrs := map[string]string{
		identitydomain.AttrCustomerID:      "cus_1",
		identitydomain.AttrRole:            role,
		identitydomain.AttrPaymentMethodID: "pm_1",
	}
	for k, v := range extra {
		attrs[k] = v
	}
	username, err := h.idp.Seed(email, testPassword, attrs)
	require.NoError(h.t, err)

	stored := h.idp.Attributes(username)
	_, err = h.profiles.Create(context.Background(), profiledomain.CreateProfileRequest{
		UserID:     stored[identitydomain.AttrSub],
		UserName:   strings.Split(email, "@")[0],
		Email:      email,
		CustomerID: "cus_1",
		Role:       role,
		Locale:     "en",
	})
	require.NoError(h.t, err)
	return h.signIn(email)
}

func (h *harness) signIn(email string) []*http.Cookie {
	h.t.Helper()
	res, err := h.idp.SignIn(context.Background(), email, testPassword)
	require.NoError(h.t, err)
	require.NotNil(h.t, res.Tokens)
	return []*http.Cookie{
		{Name: session.AccessTokenCookie, Value: res.Tokens.AccessToken},
		{Name: session.RefreshTokenCookie, Value: res.Tokens.RefreshToken},
	}
}

func (h *harness) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func (h *harness) getJSON(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

func (h *harness) postJSON(path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, cookies)
}

func (h *harness) postForm(path string, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req, cookies)
}

type testFile struct {
	name    string
	content string
}

func (h *harness) postFiles(path string, fields map[string]string, files []testFile, cookies []*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(h.t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(uploadFormField, f.name)
		require.NoError(h.t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(h.t, err)
	}
	require.NoError(h.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return h.do(req, cookies)
}

type testResult struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Data    json.RawMessage     `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testResult {
	t.Helper()
	var out testResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeData(t *testing.T, res testResult, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Data, dst), string(res.Data))
}

func cookieValue(rec *httptest.ResponseRecorder, name string) (string, bool) {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}

func responseCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Value != "" {
			out = append(out, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
		}
	}
	return out
}

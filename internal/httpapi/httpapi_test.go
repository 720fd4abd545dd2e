package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-bot/internal/config"
	"giveaway-bot/internal/model"
	"giveaway-bot/internal/repository"
	"giveaway-bot/internal/service"
)

const testToken = "123456:test-token"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeGiveaways struct {
	created    []service.CreateParams
	createErr  error
	createCtxs []error
	items      map[int64]*model.Giveaway
}

func (f *fakeGiveaways) Create(ctx context.Context, params service.CreateParams) (*service.CreateResult, error) {
	f.created = append(f.created, params)
	f.createCtxs = append(f.createCtxs, ctx.Err())
	if f.createErr != nil {
		return nil, f.createErr
	}
	g := &model.Giveaway{
		ID:              int64(len(f.created)),
		Title:           params.Title,
		Prize:           params.Prize,
		DurationSeconds: params.DurationSeconds,
		WinnerCount:     params.WinnerCount,
		Participants:    []model.Participant{},
		Status:          model.StatusOpen,
		AnnouncementRef: "77",
	}
	return &service.CreateResult{Giveaway: g, Announced: true}, nil
}

func (f *fakeGiveaways) Get(id int64) (*model.Giveaway, error) {
	if g, ok := f.items[id]; ok {
		return g, nil
	}
	return nil, service.ErrGiveawayNotFound
}

func (f *fakeGiveaways) List() []*model.Giveaway {
	out := make([]*model.Giveaway, 0, len(f.items))
	for _, g := range f.items {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Bot:   config.BotConfig{Token: testToken},
		Admin: config.AdminConfig{ID: 42},
		HTTP:  config.HTTPConfig{CORSOrigins: []string{"*"}},
	}
}

func do(t *testing.T, router http.Handler, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var payload map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func TestCreateGiveaway(t *testing.T) {
	fake := &fakeGiveaways{}
	router := NewRouter(testConfig(), fake)

	w, body := do(t, router, http.MethodPost, "/create-giveaway",
		`{"title":"Summer","prize":"Phone","duration":3600,"winners":2}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["announced"])
	giveaway, ok := body["giveaway"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Summer", giveaway["title"])
	assert.EqualValues(t, 1, giveaway["id"])

	require.Len(t, fake.created, 1)
	assert.Equal(t, service.CreateParams{Title: "Summer", Prize: "Phone", DurationSeconds: 3600, WinnerCount: 2}, fake.created[0])
}

func TestCreateGiveaway_NumericStrings(t *testing.T) {
	fake := &fakeGiveaways{}
	router := NewRouter(testConfig(), fake)

	w, _ := do(t, router, http.MethodPost, "/create-giveaway",
		`{"title":"Summer","prize":"Phone","duration":"60","winners":"1"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.created, 1)
	assert.EqualValues(t, 60, fake.created[0].DurationSeconds)
	assert.Equal(t, 1, fake.created[0].WinnerCount)
}

func TestCreateGiveaway_SurvivesClientDisconnect(t *testing.T) {
	fake := &fakeGiveaways{}
	router := NewRouter(testConfig(), fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/create-giveaway",
		strings.NewReader(`{"title":"Summer","prize":"Phone","duration":60,"winners":1}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.createCtxs, 1)
	assert.NoError(t, fake.createCtxs[0])
}

func TestCreateGiveaway_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantMsg    string
		wantField  interface{}
	}{
		{
			name:       "malformed body",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid request body",
		},
		{
			name:       "non numeric duration",
			body:       `{"title":"a","prize":"b","duration":"soon","winners":1}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid request body",
		},
		{
			name:       "validation error",
			body:       `{"title":"","prize":"b","duration":60,"winners":1}`,
			createErr:  &service.ValidationError{Field: "title", Reason: "is required"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid title: is required",
			wantField:  "title",
		},
		{
			name:       "persistence failure",
			body:       `{"title":"a","prize":"b","duration":60,"winners":1}`,
			createErr:  fmt.Errorf("commit giveaway 1: %w", repository.ErrPersistence),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(testConfig(), &fakeGiveaways{createErr: tt.createErr})

			w, body := do(t, router, http.MethodPost, "/create-giveaway", tt.body, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantMsg, body["msg"])
			assert.Equal(t, tt.wantField, body["field"])
		})
	}
}

func TestGiveawayReads(t *testing.T) {
	fake := &fakeGiveaways{items: map[int64]*model.Giveaway{
		1: {ID: 1, Title: "First", Status: model.StatusOpen, Participants: []model.Participant{}},
		2: {ID: 2, Title: "Second", Status: model.StatusFinalized, Participants: []model.Participant{}},
	}}
	router := NewRouter(testConfig(), fake)

	w, body := do(t, router, http.MethodGet, "/giveaways", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list, ok := body["giveaways"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 2)

	w, body = do(t, router, http.MethodGet, "/giveaways/2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Second", body["giveaway"].(map[string]interface{})["title"])

	w, body = do(t, router, http.MethodGet, "/giveaways/9", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Giveaway not found", body["msg"])

	w, _ = do(t, router, http.MethodGet, "/giveaways/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := NewRouter(testConfig(), &fakeGiveaways{})

	w, body := do(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRequestID(t *testing.T) {
	router := NewRouter(testConfig(), &fakeGiveaways{})

	w, _ := do(t, router, http.MethodGet, "/health", "", map[string]string{requestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Header().Get(requestIDHeader))

	w, _ = do(t, router, http.MethodGet, "/health", "", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.CORSOrigins = []string{"https://admin.example.com"}
	router := NewRouter(cfg, &fakeGiveaways{})

	w, _ := do(t, router, http.MethodGet, "/health", "", map[string]string{"Origin": "https://admin.example.com"})
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = do(t, router, http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>giveaways</h1>"), 0o644))

	cfg := testConfig()
	cfg.HTTP.StaticDir = dir
	router := NewRouter(cfg, &fakeGiveaways{})

	w, _ := do(t, router, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>giveaways</h1>")

	w, _ = do(t, router, http.MethodPost, "/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// signInitData produces Mini App init data signed the way Telegram signs it.
func signInitData(token string, userID int64, authDate time.Time) string {
	user := fmt.Sprintf(`{"id":%d,"first_name":"Admin","username":"admin"}`, userID)
	fields := map[string]string{
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":      user,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func TestInitDataAuth(t *testing.T) {
	cfg := testConfig()
	cfg.WebApp = config.WebAppConfig{RequireInitData: true, InitDataTTL: time.Hour}
	body := `{"title":"a","prize":"b","duration":60,"winners":1}`

	tests := []struct {
		name       string
		header     map[string]string
		query      string
		wantStatus int
	}{
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{
			name:       "bad signature",
			header:     map[string]string{initDataHeader: signInitData("999:other", 42, time.Now())},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired",
			header:     map[string]string{initDataHeader: signInitData(testToken, 42, time.Now().Add(-2*time.Hour))},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not the admin",
			header:     map[string]string{initDataHeader: signInitData(testToken, 7, time.Now())},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin via header",
			header:     map[string]string{initDataHeader: signInitData(testToken, 42, time.Now())},
			wantStatus: http.StatusOK,
		},
		{
			name:       "admin via query",
			query:      "?init_data=" + url.QueryEscape(signInitData(testToken, 42, time.Now())),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGiveaways{}
			router := NewRouter(cfg, fake)

			w, _ := do(t, router, http.MethodPost, "/create-giveaway"+tt.query, body, tt.header)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Len(t, fake.created, 1)
			} else {
				assert.Empty(t, fake.created)
			}
		})
	}
}

func TestInitDataAuth_HealthStaysOpen(t *testing.T) {
	cfg := testConfig()
	cfg.WebApp = config.WebAppConfig{RequireInitData: true, InitDataTTL: time.Hour}
	router := NewRouter(cfg, &fakeGiveaways{})

	w, _ := do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNumberUnmarshal(t *testing.T) {
	var n number
	require.NoError(t, json.Unmarshal([]byte(`15`), &n))
	assert.EqualValues(t, 15, n)
	require.NoError(t, json.Unmarshal([]byte(`" 20 "`), &n))
	assert.EqualValues(t, 20, n)
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &n))
}

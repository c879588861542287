package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/campusbbs/config"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/store"
	"github.com/cppla/campusbbs/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	router   http.Handler
	mailer   *utils.LogMailer
	captchas *utils.CaptchaStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return buildHarness(t, false)
}

// newCaptchaHarness requires a solved captcha before send-code.
func newCaptchaHarness(t *testing.T) *harness {
	t.Helper()
	return buildHarness(t, true)
}

func buildHarness(t *testing.T, captcha bool) *harness {
	t.Helper()
	mailer := &utils.LogMailer{}
	verifier := utils.NewVerifier(utils.NewCodeStore(nil), mailer, time.Minute, 0, nil)
	forum := services.New(store.NewMemoryLoader(false, nil), utils.PBKDF2Hasher{Iterations: 10}, verifier, nil, nil, services.Options{
		AdminStudentIDs: []string{"ADMIN01"},
	})
	forum.Load()

	captchas := utils.NewCaptchaStore(nil, time.Minute)
	cfg := config.AppConfig{GinMode: "test", RateLimitPerMinute: 1000, LogLevel: "error", RegisterCaptchaEnabled: captcha}
	r := SetupRouter(cfg, Deps{
		Forum:     forum,
		Cache:     utils.NewResponseCache(nil, time.Minute, nil),
		Issuer:    utils.NewTokenIssuer("test-secret", time.Hour),
		Blacklist: utils.NewTokenBlacklist(nil),
		Captcha:   utils.NewCaptcha(captchas),
	})
	return &harness{router: r, mailer: mailer, captchas: captchas}
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

var sixDigits = regexp.MustCompile(`\d{6}`)

// register walks send-code and register and returns the bearer token.
func (h *harness) register(t *testing.T, studentID, nickname string) string {
	t.Helper()
	status, _ := h.do(t, http.MethodPost, "/api/v1/auth/send-code", "", map[string]string{"email": studentID})
	require.Equal(t, http.StatusOK, status)
	sent := h.mailer.Sent()
	require.NotEmpty(t, sent)
	code := sixDigits.FindString(sent[len(sent)-1].Body)
	require.NotEmpty(t, code)

	status, env := h.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"student_id":       studentID,
		"nickname":         nickname,
		"email":            studentID,
		"code":             code,
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestHealthAndCategories(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)

	status, env = h.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	assert.Equal(t, http.StatusOK, status)
	var cats struct {
		List []struct {
			Key      string `json:"key"`
			Postable bool   `json:"postable"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	assert.Len(t, cats.List, 7)
}

func TestNoRoute(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}

func TestPostFlow(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "20231234", "小明")

	status, env := h.do(t, http.MethodPost, "/api/v1/posts", "", map[string]interface{}{
		"title": "x", "content": "y", "category": "learning",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40101, env.Code)

	status, env = h.do(t, http.MethodPost, "/api/v1/posts", token, map[string]interface{}{
		"title":    "<b>期末复习</b>",
		"content":  "一起复习<script>alert(1)</script>高数",
		"category": "learning",
		"publish":  true,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var post struct {
		ID      string `json:"post_id"`
		Title   string `json:"title"`
		Content string `json:"full_content"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))
	assert.Equal(t, "期末复习", post.Title)
	assert.NotContains(t, post.Content, "script")

	status, env = h.do(t, http.MethodGet, "/api/v1/posts?sort=latest", "", nil)
	require.Equal(t, http.StatusOK, status)
	var feed struct {
		List       []struct{ ID string `json:"post_id"` } `json:"list"`
		Pagination utils.Pagination                        `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.Len(t, feed.List, 1)
	assert.Equal(t, post.ID, feed.List[0].ID)
	assert.Equal(t, 1, feed.Pagination.Total)

	status, _ = h.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = h.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", token, map[string]string{"content": "沙发"})
	assert.Equal(t, http.StatusCreated, status, env.Message)

	status, env = h.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", token, nil)
	assert.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.do(t, http.MethodGet, "/api/v1/posts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40410, env.Code)
}

func TestRegisterWithWrongCode(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, http.MethodPost, "/api/v1/auth/send-code", "", map[string]string{"email": "20230001"})
	require.Equal(t, http.StatusOK, status)

	status, env := h.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"student_id":       "20230001",
		"nickname":         "阿强",
		"email":            "20230001",
		"code":             "000000",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	if sixDigits.FindString(h.mailer.Sent()[0].Body) == "000000" {
		t.Skip("generated code collided with the wrong guess")
	}
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40030, env.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "20239999", "小红")

	status, _ := h.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := h.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40104, env.Code)
}

func TestModerationRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "20235555", "普通用户")
	admin := h.register(t, "ADMIN01", "管理员")

	status, env := h.do(t, http.MethodGet, "/api/v1/reports", user, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 40310, env.Code)

	status, _ = h.do(t, http.MethodGet, "/api/v1/reports", admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCaptchaDisabledByDefault(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, http.MethodGet, "/api/v1/auth/captcha", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}

func TestSendCodeRequiresCaptchaWhenEnabled(t *testing.T) {
	h := newCaptchaHarness(t)
	const email = "20237777"

	status, env := h.do(t, http.MethodPost, "/api/v1/auth/send-code", "", map[string]string{"email": email})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40042, env.Code)
	assert.Empty(t, h.mailer.Sent())

	fresh := func() (string, string) {
		status, env := h.do(t, http.MethodGet, "/api/v1/auth/captcha", "", nil)
		require.Equal(t, http.StatusOK, status, env.Message)
		var data struct {
			ID    string `json:"captcha_id"`
			Image string `json:"captcha_image"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.NotEmpty(t, data.ID)
		assert.Contains(t, data.Image, "data:image/")
		answer := h.captchas.Get(data.ID, false)
		require.NotEmpty(t, answer)
		return data.ID, answer
	}

	id, answer := fresh()
	status, env = h.do(t, http.MethodPost, "/api/v1/auth/send-code", "", map[string]string{
		"email": email, "captcha_id": id, "captcha_answer": answer + "0",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40042, env.Code)

	id, answer = fresh()
	body := map[string]string{"email": email, "captcha_id": id, "captcha_answer": answer}
	status, env = h.do(t, http.MethodPost, "/api/v1/auth/send-code", "", body)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Len(t, h.mailer.Sent(), 1)

	status, env = h.do(t, http.MethodPost, "/api/v1/auth/send-code", "", body)
	assert.Equal(t, http.StatusBadRequest, status, "a solved captcha cannot be replayed")
	assert.Equal(t, 40042, env.Code)
}

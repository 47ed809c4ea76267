package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"citymonitor/internal/config"
	"citymonitor/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLoginHandler(t *testing.T) {
	h := LoginHandler(&config.Config{Password: "secret"}, testLogger())

	rec := postForm(h, url.Values{"password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = postForm(h, url.Values{"password": {"secret"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.AuthCookie, cookies[0].Name)
	assert.Equal(t, "true", cookies[0].Value)
}

func TestLogoutHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestShowLogsHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.log"), []byte("started\n"), 0644))

	r := chi.NewRouter()
	r.Get("/logs/{level}", ShowLogsHandler(&config.Config{LogDirectory: dir}))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/logs/info")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "started\n", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, get("/logs/error").Code)
	assert.Equal(t, http.StatusNotFound, get("/logs/debug").Code)
}

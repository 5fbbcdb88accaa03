package config

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrigins(t *testing.T) {
	t.Setenv("APP_ORIGIN", "")
	assert.Equal(t, []string{"http://localhost:3000"}, Origins())

	t.Setenv("APP_ORIGIN", "https://ops.example.com, http://localhost:5173")
	assert.Equal(t, []string{"https://ops.example.com", "http://localhost:5173"}, Origins())
}

func TestCustomLoggerMiddlewarePassesThrough(t *testing.T) {
	h := CustomLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCreateUniqueInstance(t *testing.T) {
	id := CreateUniqueInstance("test")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetInstanceId())
}

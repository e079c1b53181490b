package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type noUserFinder struct{}

func (noUserFinder) FindByAPIKey(context.Context, string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func testRouter() http.Handler {
	return NewRouter(NewRouterParams{
		Config: &config.Config{App: config.AppConfig{Env: "test"}},
		Logger: logger.New(logger.Options{ServiceName: "router-test"}),
		Users:  noUserFinder{},
	})
}

func TestHealthLive(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := rec.Header().Get("X-Apitaxi-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestProtectedRoutesRequireAPIKey(t *testing.T) {
	router := testRouter()

	for _, path := range []string{"/hails", "/hails/abc123/log", "/taxis", "/geotaxi"} {
		method := http.MethodGet
		if path == "/geotaxi" {
			method = http.MethodPost
		}
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", method, path, rec.Code)
		}
	}
}

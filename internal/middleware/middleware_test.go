package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/pkg/models"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(*models.JWTClaims)
	return claims, args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		subject, role := GetCallerFromContext(c)
		c.JSON(http.StatusOK, gin.H{"subject": subject, "role": role})
	})
	router.GET("/protected", handlers...)
	return router
}

func TestAuth(t *testing.T) {
	validator := new(MockTokenValidator)
	validator.On("ValidateToken", "good").Return(&models.JWTClaims{Subject: "ops", Role: "editor"}, nil)
	validator.On("ValidateToken", "bad").Return(nil, errors.New("expired"))

	router := newRouter(Auth(validator, quietLogger()))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_AUTHORIZATION"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT"},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid token", "Bearer good", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			} else {
				assert.JSONEq(t, `{"subject":"ops","role":"editor"}`, w.Body.String())
			}
		})
	}
	validator.AssertExpectations(t)
}

func TestRequireRole(t *testing.T) {
	validator := new(MockTokenValidator)
	validator.On("ValidateToken", "editor").Return(&models.JWTClaims{Subject: "e", Role: "editor"}, nil)
	validator.On("ValidateToken", "admin").Return(&models.JWTClaims{Subject: "a", Role: "admin"}, nil)

	router := newRouter(Auth(validator, quietLogger()), RequireRole("admin"))

	for token, want := range map[string]int{"editor": http.StatusForbidden, "admin": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, token)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(quietLogger()))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	router := gin.New()
	router.Use(Metrics(metrics.New(reg)))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "endpoint" {
					counts[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 2.0, counts["/items/:id"])
	assert.Equal(t, 1.0, counts["unmatched"])
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://admin.example.com"}}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

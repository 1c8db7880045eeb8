package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/pkg/utils"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", AuthMiddleware(), func(c *gin.Context) {
		c.JSON(200, gin.H{
			"userId":   c.GetUint("userId"),
			"userType": c.GetString("userType"),
		})
	})
	return r
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter()

	user := &models.User{Model: gorm.Model{ID: 7}, Email: "driver@example.com", UserType: "driver"}
	token, err := utils.GenerateToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":7`)
	assert.Contains(t, w.Body.String(), `"userType":"driver"`)
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter()

	user := &models.User{Model: gorm.Model{ID: 3}, Email: "shipper@example.com", UserType: "shipper"}
	token, err := utils.GenerateToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"userType":"shipper"`)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}

func TestAuthMiddlewareRejectsMissingClaims(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter()

	// Validly signed but lacking userType. Must 401, not panic.
	token := signToken(t, jwt.MapClaims{
		"id":  float64(7),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}

func TestAuthMiddlewareRejectsWrongClaimType(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter()

	token := signToken(t, jwt.MapClaims{
		"id":       "seven",
		"userType": "driver",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}

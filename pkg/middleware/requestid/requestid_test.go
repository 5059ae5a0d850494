package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromCtx = FromContext(c.Request.Context())
		assert.Equal(t, Value(c), fromCtx)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Header().Get(Header), fromCtx
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	echoed, fromCtx := serve(t, "trace-42")
	assert.Equal(t, "trace-42", echoed)
	assert.Equal(t, "trace-42", fromCtx)
}

func TestMiddlewareReplacesMalformedID(t *testing.T) {
	for _, header := range []string{"", "has space", strings.Repeat("x", 200)} {
		echoed, fromCtx := serve(t, header)
		_, err := uuid.Parse(echoed)
		assert.NoError(t, err, header)
		assert.Equal(t, echoed, fromCtx)
	}
}

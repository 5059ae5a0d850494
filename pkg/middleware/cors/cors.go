package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/pkg/middleware/requestid"
)

// Options configures the CORS middleware. An empty AllowedOrigins list
// reflects any origin.
type Options struct {
	AllowedOrigins []string
	ExposeHeaders  []string
	MaxAge         time.Duration
}

var (
	allowHeaders  = strings.Join([]string{"Authorization", "Content-Type", "X-Requested-With", requestid.Header}, ", ")
	allowMethods  = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}, ", ")
	defaultExpose = []string{"Content-Disposition", requestid.Header}
)

// New returns the CORS middleware. Preflight requests end with 204.
func New(opts Options) gin.HandlerFunc {
	allowAll := len(opts.AllowedOrigins) == 0
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		origins[strings.TrimRight(origin, "/")] = struct{}{}
	}
	expose := opts.ExposeHeaders
	if len(expose) == 0 {
		expose = defaultExpose
	}
	exposeHeader := strings.Join(expose, ", ")
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	maxAgeHeader := strconv.Itoa(int(maxAge / time.Second))

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := origins[strings.TrimRight(origin, "/")]; !ok && !allowAll {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Expose-Headers", exposeHeader)

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Max-Age", maxAgeHeader)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

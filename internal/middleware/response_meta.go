package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "request_start"
	processingTimeMS = "processing_time_ms"
	cacheHitMeta     = "cache_hit"
)

// WithResponseMeta records when the request started so ExtractMeta can
// report the processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// SetMeta adds one entry to the meta block of the response envelope.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta, _ := c.Get(responseMetaKey)
	typed, ok := meta.(map[string]interface{})
	if !ok {
		typed = make(map[string]interface{})
		c.Set(responseMetaKey, typed)
	}
	typed[key] = value
}

// SetCacheHit flags whether the payload came from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitMeta, hit)
}

// ExtractMeta returns a copy of the meta entries set so far, stamped with
// the processing time when WithResponseMeta ran.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	out := make(map[string]interface{})
	if meta, ok := c.Get(responseMetaKey); ok {
		for k, v := range meta.(map[string]interface{}) {
			out[k] = v
		}
	}
	if start, ok := c.Get(requestStartKey); ok {
		out[processingTimeMS] = time.Since(start.(time.Time)).Milliseconds()
	}
	return out
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// responseMeta collects envelope metadata while a handler runs.
type responseMeta struct {
	startedAt time.Time
	cacheHit  *bool
}

// WithResponseMeta enables the meta block of the response envelope for a
// route. Handlers fill it through SetCacheHit and read it with ExtractMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{startedAt: time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the payload came from cache. It is a no-op on
// routes without WithResponseMeta.
func SetCacheHit(c *gin.Context, hit bool) {
	if meta := lookupMeta(c); meta != nil {
		meta.cacheHit = &hit
	}
}

// ExtractMeta renders the metadata collected so far, or nil when the route
// does not carry any.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := lookupMeta(c)
	if meta == nil {
		return nil
	}
	out := map[string]interface{}{
		"processing_time_ms": time.Since(meta.startedAt).Milliseconds(),
	}
	if meta.cacheHit != nil {
		out["cache_hit"] = *meta.cacheHit
	}
	return out
}

func lookupMeta(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(*responseMeta)
	return meta
}

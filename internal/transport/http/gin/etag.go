package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// writeCached writes v as JSON with a weak content ETag and a public
// Cache-Control of maxAge. A matching If-None-Match yields 304.
func writeCached(c *gin.Context, v any, maxAge time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	sum := sha256.Sum256(b)
	tag := `W/"` + hex.EncodeToString(sum[:16]) + `"`

	c.Header("ETag", tag)
	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))

	if c.GetHeader("If-None-Match") == tag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

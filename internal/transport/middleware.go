package transport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	portidem "github.com/alanyang/lead-pipeline/internal/port/idempotency"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

// IdempotencyHeader names the client-chosen key for a retryable write.
const IdempotencyHeader = "Idempotency-Key"

// noisyPaths are high-frequency read paths logged at Debug to keep Info clean.
var noisyPaths = map[string]bool{
	"/api/leads":  true,
	"/api/stages": true,
	"/api/ws":     true,
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == http.MethodOptions {
			return
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Request.Method == http.MethodGet && noisyPaths[c.Request.URL.Path] {
			slog.Debug("request", attrs...)
			return
		}
		slog.Info("request", attrs...)
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS, PUT")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+IdempotencyHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// storedResponse is what a replayed request gets back.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// captureWriter tees the response body so it can be stored after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated write
// carrying the same Idempotency-Key within one tenant. It must run after the
// auth middleware; requests without a tenant or a key pass through. Server
// errors are not stored so the client can retry them.
func IdempotencyMiddleware(store portidem.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodPut:
		default:
			c.Next()
			return
		}
		key := c.GetHeader(IdempotencyHeader)
		tenantID, ok := auth.TenantID(c)
		if key == "" || !ok {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if raw, found, err := store.Check(ctx, tenantID, key); err != nil {
			slog.WarnContext(ctx, "idempotency check failed, executing request", "key", key, "error", err)
		} else if found {
			var resp storedResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				c.Header("Idempotent-Replay", "true")
				c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
				c.Abort()
				return
			}
			slog.WarnContext(ctx, "idempotency record unreadable, executing request", "key", key)
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		raw, err := json.Marshal(storedResponse{Status: status, Body: json.RawMessage(orNull(w.buf.Bytes()))})
		if err != nil {
			slog.ErrorContext(ctx, "idempotency marshal failed", "key", key, "error", err)
			return
		}
		op := c.Request.Method + " " + c.FullPath()
		if err := store.Save(ctx, tenantID, key, op, raw); err != nil {
			slog.ErrorContext(ctx, "idempotency save failed", "key", key, "error", err)
		}
	}
}

func orNull(b []byte) []byte {
	if len(bytes.TrimSpace(b)) == 0 {
		return []byte("null")
	}
	return b
}

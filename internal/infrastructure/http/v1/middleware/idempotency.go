package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/infrastructure/storage/postgres"
	"medcore/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore claims keys and records the response served for them.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, tenantID id.ID, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, tenantID id.ID, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, tenantID id.ID, key string, statusCode int, contentType string, response any) error
}

type idempotencyClaim struct {
	store    IdempotencyStore
	tenantID id.ID
	key      string
}

// Idempotency makes a retried mutating request (same X-Idempotency-Key,
// same tenant) replay the first response instead of running again.
// It must run after TenantContext.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch &&
			c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		tc, ok := CallerFrom(c)
		if !ok {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		// Route template plus the concrete path so one key cannot post two documents.
		operation := c.Request.Method + " " + c.FullPath() + " " + c.Request.URL.Path

		replay, err := store.AcquireKey(c.Request.Context(), tc.TenantID, key, tc.UserID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replay", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, &idempotencyClaim{store: store, tenantID: tc.TenantID, key: key})

		c.Next()
	}
}

func claimFrom(c *gin.Context) *idempotencyClaim {
	v, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return nil
	}
	claim, _ := v.(*idempotencyClaim)
	return claim
}

// CompleteIdempotency records a successful response for replay.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	claim := claimFrom(c)
	if claim == nil {
		return
	}
	if err := claim.store.CompleteKey(c.Request.Context(), claim.tenantID, claim.key, statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "idempotency completion failed", "key", claim.key, "error", err)
	}
}

// failIdempotency records an error response (best-effort).
func failIdempotency(c *gin.Context, statusCode int, body any) {
	claim := claimFrom(c)
	if claim == nil {
		return
	}
	if err := claim.store.FailKey(c.Request.Context(), claim.tenantID, claim.key, statusCode, "application/json", body); err != nil {
		logger.Warn(c.Request.Context(), "idempotency failure record failed", "key", claim.key, "error", err)
	}
}

package web

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/device"
	"github.com/Zachkp/folio/internal/store"
)

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("panic recovered", zap.String("path", c.Request.URL.Path), zap.Any("panic", err))
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

const capsKey = "device"

// capabilities returns the visitor's device capabilities, detected once per
// request.
func capabilities(c *gin.Context) device.Capabilities {
	if v, ok := c.Get(capsKey); ok {
		return v.(device.Capabilities)
	}
	caps := device.Detect(c.Request.Header)
	c.Set(capsKey, caps)
	return caps
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// untracked paths never create a visit.
var untracked = []string{"/static/", "/images/", "/admin/", "/favicon", "/privacy", "/healthz", "/carousel/", "/contact"}

// tracker records privacy-conscious page views: the client IP is hashed with
// a per-process salt and requests carrying DNT: 1 are ignored. Visits are
// queued so the database write never delays a response.
type tracker struct {
	store  *store.Store
	salt   string
	logger *zap.Logger
	visits chan store.Visit
}

func newTracker(st *store.Store, salt string, logger *zap.Logger) *tracker {
	return &tracker{store: st, salt: salt, logger: logger, visits: make(chan store.Visit, 128)}
}

// hashIP is stable for one process so unique visitors can be counted.
func (t *tracker) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + t.salt))
	return hex.EncodeToString(sum[:])[:16]
}

func (t *tracker) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" || skipTracking(path) {
			c.Next()
			return
		}

		v := store.Visit{
			HashedIP:  t.hashIP(c.ClientIP()),
			UserAgent: c.GetHeader("User-Agent"),
			Path:      path,
		}
		select {
		case t.visits <- v:
		default:
			t.logger.Debug("visit queue full, dropping", zap.String("path", path))
		}
		c.Next()
	}
}

func skipTracking(path string) bool {
	for _, p := range untracked {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// run writes queued visits until ctx is cancelled, then flushes what is
// left.
func (t *tracker) run(ctx context.Context) error {
	for {
		select {
		case v := <-t.visits:
			t.write(ctx, v)
		case <-ctx.Done():
			for {
				select {
				case v := <-t.visits:
					t.write(context.Background(), v)
				default:
					return nil
				}
			}
		}
	}
}

func (t *tracker) write(ctx context.Context, v store.Visit) {
	if t.store == nil {
		return
	}
	if err := t.store.RecordVisit(ctx, v); err != nil {
		t.logger.Warn("record visit", zap.Error(err))
	}
}

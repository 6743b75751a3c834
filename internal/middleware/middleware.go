// Package middleware provides the gin middleware stack of the HTTP API.
package middleware

import (
	"compress/gzip"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/moviematch/pkg/logger"
	"github.com/amaumene/moviematch/pkg/ratelimiter"
)

// gzipResponseWriter starts compressing on the first body write. Statuses
// that carry no body are passed through untouched.
type gzipResponseWriter struct {
	gin.ResponseWriter
	gzipWriter *gzip.Writer
	bodyless   bool
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	w.bodyless = code == http.StatusNoContent || code == http.StatusNotModified
	w.ResponseWriter.WriteHeader(code)
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	if w.bodyless {
		return w.ResponseWriter.Write(data)
	}
	if w.gzipWriter == nil {
		header := w.Header()
		header.Set("Content-Encoding", "gzip")
		header.Add("Vary", "Accept-Encoding")
		header.Del("Content-Length")
		w.gzipWriter = gzip.NewWriter(w.ResponseWriter)
	}
	return w.gzipWriter.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Gzip compresses responses for clients that accept it. Paths starting with
// one of skipPrefixes are sent as-is.
func Gzip(log logger.Logger, skipPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		gw := &gzipResponseWriter{ResponseWriter: c.Writer}
		c.Writer = gw
		defer func() {
			if gw.gzipWriter == nil {
				return
			}
			if err := gw.gzipWriter.Close(); err != nil {
				log.Errorf("[HTTP] failed to close gzip writer: %v", err)
			}
		}()

		c.Next()
	}
}

// CORS answers for the front-end origins in allowed. Browsers in some
// webviews send no origin or "null"; those pass silently. Unknown origins
// are logged and still served.
func CORS(allowed []string, log logger.Logger) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowedSet[strings.TrimRight(origin, "/")]; !ok && origin != "null" {
				log.Warnf("[CORS] unlisted origin: %s", origin)
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		switch {
		case statusCode >= 500:
			log.Errorf("[HTTP] %s %s %d %v %s", clientIP, method, statusCode, latency, path)
		case statusCode >= 400:
			log.Warnf("[HTTP] %s %s %d %v %s", clientIP, method, statusCode, latency, path)
		default:
			log.Infof("[HTTP] %s %s %d %v %s", clientIP, method, statusCode, latency, path)
		}
	}
}

type clientEntry struct {
	bucket   ratelimiter.RateLimiter
	lastSeen time.Time
}

// ClientLimiter gives every client IP its own token bucket of burst tokens
// refilled at perSecond. Buckets idle for longer than idleTTL are evicted.
type ClientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	perSecond int64
	burst     int64
	idleTTL   time.Duration
	now       func() time.Time
}

func NewClientLimiter(perSecond, burst int64, idleTTL time.Duration) *ClientLimiter {
	return &ClientLimiter{
		clients:   make(map[string]*clientEntry),
		perSecond: perSecond,
		burst:     burst,
		idleTTL:   idleTTL,
		now:       time.Now,
	}
}

func (l *ClientLimiter) bucket(ip string) ratelimiter.RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[ip]
	if !ok {
		entry = &clientEntry{bucket: ratelimiter.NewTokenBucket(l.burst, l.perSecond)}
		l.clients[ip] = entry
	}
	entry.lastSeen = l.now()
	return entry.bucket
}

// Evict drops buckets not seen within idleTTL and returns how many went.
func (l *ClientLimiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	evicted := 0
	for ip, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			evicted++
		}
	}
	return evicted
}

func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// StartCleanup evicts idle buckets every interval until ctx is done.
func (l *ClientLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Evict()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Handler rejects requests from clients that ran out of tokens.
func (l *ClientLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.bucket(c.ClientIP()).TakeToken() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"product-composite/internal/logger"
	"product-composite/internal/reqctx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(reqctx.HeaderRequestID)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(reqctx.HeaderRequestID))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2, logger.Nop())(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/aggregate/1", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodGet, "/aggregate/1", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	assert.Equal(t, http.StatusOK, rr.Code, "clients have separate buckets")
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, 0, logger.Nop())(okHandler)

	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestLimiterStoreEvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newLimiterStore(1, 1)
	s.now = func() time.Time { return now }
	s.lastSweep = now

	for i := 0; i < 100; i++ {
		s.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	assert.Equal(t, 100, s.size())

	now = now.Add(s.idleTTL - time.Minute)
	active := s.get("10.0.0.1")

	now = now.Add(2 * time.Minute)
	assert.Same(t, active, s.get("10.0.0.1"), "a recently seen client keeps its bucket")
	assert.Equal(t, 1, s.size(), "idle clients are swept")
}

package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// DenyObserver is told about every rejected request.
type DenyObserver interface {
	RateLimited(route string)
}

// RateLimiter caps requests per authenticated user. It must run after JWTAuth.
type RateLimiter struct {
	limiter  *limiter.Limiter
	route    string
	observer DenyObserver
	logr     *zap.Logger
}

// NewRateLimiter builds a limiter from a formatted rate such as "10-M".
// A nil store keeps counters in process memory.
func NewRateLimiter(rate, route string, store limiter.Store, observer DenyObserver, logr *zap.Logger) (*RateLimiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	if store == nil {
		store = memory.NewStore()
	}
	return &RateLimiter{
		limiter:  limiter.New(store, parsed),
		route:    route,
		observer: observer,
		logr:     logr,
	}, nil
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := l.route + ":" + identity.UserID.String()
		lctx, err := l.limiter.Get(r.Context(), key)
		if err != nil {
			// fail open
			l.logr.Warn("rate limiter unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retry := time.Until(time.Unix(lctx.Reset, 0))
			if retry < time.Second {
				retry = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			if l.observer != nil {
				l.observer.RateLimited(l.route)
			}
			l.logr.Warn("rate limit reached",
				zap.String("route", l.route),
				zap.String("user_id", identity.UserID.String()))
			writeError(w, http.StatusTooManyRequests, "too many requests, retry later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

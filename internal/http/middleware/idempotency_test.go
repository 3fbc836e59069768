package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, inspect func(*gin.Context)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(opts, lookup))
	r.POST("/", func(c *gin.Context) {
		if inspect != nil {
			inspect(c)
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestIdempotencyValidator_NoHeaderIsNoOp(t *testing.T) {
	var sawKey bool
	r := idemRouter(IdempotencyOptions{Scope: "summarize"}, nil, func(c *gin.Context) {
		_, sawKey = GetIdempotencyKey(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if sawKey {
		t.Fatalf("no header must mean no stashed key")
	}
}

func TestIdempotencyValidator_RejectsMalformedKey(t *testing.T) {
	r := idemRouter(IdempotencyOptions{Scope: "summarize"}, nil, nil)

	for _, bad := range []string{"has space", "emoji😊", "semi;colon"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(HeaderIdempotencyKey, bad)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q status = %d; want 400", bad, w.Code)
		}
	}
}

func TestIdempotencyValidator_RejectsOverlongKey(t *testing.T) {
	r := idemRouter(IdempotencyOptions{Scope: "summarize", MaxLen: 8}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "123456789")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400 for overlong key", w.Code)
	}
}

func TestIdempotencyValidator_StashesValidKey(t *testing.T) {
	var got string
	r := idemRouter(IdempotencyOptions{Scope: "summarize"}, nil, func(c *gin.Context) {
		got, _ = GetIdempotencyKey(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-abc.123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if got != "retry-abc.123" {
		t.Fatalf("stashed key = %q; want retry-abc.123", got)
	}
}

func TestIdempotencyValidator_ReplaySetsFlags(t *testing.T) {
	var lookupScope, lookupUser string
	lookup := func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		lookupUser, lookupScope = userID, scope
		return true, nil
	}

	var replay, bypass bool
	r := idemRouter(IdempotencyOptions{Scope: "summarize"}, lookup, func(c *gin.Context) {
		replay = IsReplay(c)
		bypass = IsRateBypass(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	req.Header.Set("X-User-ID", "u42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if !replay || !bypass {
		t.Fatalf("replay=%v bypass=%v; want both true", replay, bypass)
	}
	if lookupScope != "summarize" || lookupUser != "u42" {
		t.Fatalf("lookup args = (%q,%q)", lookupUser, lookupScope)
	}
}

func TestIdempotencyValidator_MissDoesNotFlag(t *testing.T) {
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		return false, nil
	}

	var replay bool
	r := idemRouter(IdempotencyOptions{Scope: "summarize"}, lookup, func(c *gin.Context) {
		replay = IsReplay(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "key-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if replay {
		t.Fatalf("miss must not mark replay")
	}
}

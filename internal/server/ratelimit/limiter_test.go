package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(5, 5)
	defer l.Close()

	for i := range 5 {
		result := l.Allow("ip:1.2.3.4:write")
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if result.Limit != 5 {
			t.Errorf("expected Limit=5, got %d", result.Limit)
		}
		if result.RetryAfter != 0 {
			t.Errorf("RetryAfter should be 0 for allowed requests, got %v", result.RetryAfter)
		}
	}

	result := l.Allow("ip:1.2.3.4:write")
	if result.Allowed {
		t.Error("6th request should be rate limited")
	}
	if result.Remaining != 0 {
		t.Errorf("expected Remaining=0, got %d", result.Remaining)
	}
	if result.RetryAfter < time.Second {
		t.Errorf("expected RetryAfter >= 1s, got %v", result.RetryAfter)
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	l := NewLimiter(2, 2)
	defer l.Close()

	for range 2 {
		l.Allow("key1")
	}
	if l.Allow("key1").Allowed {
		t.Error("key1 should be rate limited")
	}
	if !l.Allow("key2").Allowed {
		t.Error("key2 should not be rate limited")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(60, 10)
	defer l.Close()
	l.Allow("a")
	l.cleanup(time.Now().Add(2 * staleAfter))
	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("%d buckets left after cleanup", n)
	}
}

func TestNewConfig(t *testing.T) {
	c := NewConfig(5, 0, 600)
	defer c.Close()
	if c.Auth == nil || c.Auth.Limiter.burst != 5 {
		t.Errorf("auth tier = %+v", c.Auth)
	}
	if c.Write != nil {
		t.Error("zero rate should disable the tier")
	}
	if c.Read == nil || c.Read.Limiter.burst != 60 {
		t.Errorf("read tier = %+v", c.Read)
	}
	c.Close()
}

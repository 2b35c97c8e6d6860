package security

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestKeySet_Valid(t *testing.T) {
	ks := NewKeySet([]string{"alpha", " beta ", ""})

	tests := []struct {
		name     string
		key      string
		expected bool
	}{
		{"第一个密钥", "alpha", true},
		{"去除空白后的密钥", "beta", true},
		{"未配置的密钥", "gamma", false},
		{"前缀不算匹配", "alph", false},
		{"空密钥", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := ks.Valid(tt.key); result != tt.expected {
				t.Errorf("Valid(%q) = %v, expected %v", tt.key, result, tt.expected)
			}
		})
	}
}

func TestKeySet_Enabled(t *testing.T) {
	if NewKeySet(nil).Enabled() {
		t.Error("空集合不应启用")
	}
	if NewKeySet([]string{"  "}).Enabled() {
		t.Error("只有空白项时不应启用")
	}
	if !NewKeySet([]string{"k"}).Enabled() {
		t.Error("配置密钥后应启用")
	}

	var nilSet *KeySet
	if nilSet.Valid("k") {
		t.Error("nil 集合不应通过任何密钥")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	// 前5次应该允许
	for i := 0; i < 5; i++ {
		if !limiter.Allow("client1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 第6次应该拒绝
	if limiter.Allow("client1") {
		t.Error("Request 6 should be denied")
	}

	// 不同客户端应该允许
	if !limiter.Allow("client2") {
		t.Error("Different client should be allowed")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.Allow("c")
	limiter.Allow("c")
	if limiter.Allow("c") {
		t.Fatal("窗口内第3次应拒绝")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("c") {
		t.Error("窗口滑过后应允许")
	}

	now = now.Add(2 * time.Minute)
	limiter.cleanup()
	if got := limiter.Tracked(); got != 0 {
		t.Errorf("Tracked() = %d after cleanup, expected 0", got)
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	limiter := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("c") {
			t.Fatal("limit 为 0 时不限流")
		}
	}
}

func TestRateLimiter_RunStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewRateLimiter(1, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run 未在 ctx 取消后退出")
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		value    string
		target   string
		expected string
	}{
		{"从Bearer提取", "Authorization", "Bearer test_key", "/test", "test_key"},
		{"从X-API-Key提取", "X-API-Key", "api_key_123", "/test", "api_key_123"},
		{"从query参数提取", "", "", "/test?api_key=query_key", "query_key"},
		{"非Bearer授权头忽略", "Authorization", "Basic abc", "/test", ""},
		{"无密钥", "", "", "/test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			if result := ExtractAPIKey(req); result != tt.expected {
				t.Errorf("ExtractAPIKey() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

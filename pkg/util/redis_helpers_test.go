package util

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// closedClient 返回一个已关闭的客户端，所有命令都会失败
func closedClient(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	_ = rdb.Close()
	return rdb
}

func TestDeduper_FailOpenWhenRedisUnavailable(t *testing.T) {
	d := NewDeduper(closedClient(t), time.Minute, nil)
	if !d.AcquireOnce(context.Background(), "notification_email", "42") {
		t.Fatalf("expected processing to be allowed when redis is unavailable")
	}
	d.Release(context.Background(), "notification_email", "42")
}

func TestRetryCounter_ErrorsWhenRedisUnavailable(t *testing.T) {
	rc := NewRetryCounter(closedClient(t), time.Minute)
	if _, err := rc.IncrementAndGet(context.Background(), FormatRetryKey("h", "1")); err == nil {
		t.Fatalf("expected error from closed client")
	}
}

func TestKeyFormats(t *testing.T) {
	if got := FormatDedupKey("notification_email", "abc"); got != "dedup:notification_email:abc" {
		t.Fatalf("unexpected dedup key %q", got)
	}
	if got := FormatRetryKey("notification_email", "abc"); got != "retry:notification_email:abc" {
		t.Fatalf("unexpected retry key %q", got)
	}
}

package otel

import "testing"

func TestMQHeaderCarrier(t *testing.T) {
	headers := map[string]interface{}{"x-other": 3}
	c := MQHeaderCarrier(headers)
	c.Set("traceparent", "00-abc-def-01")

	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("unexpected traceparent %q", got)
	}
	if got := c.Get("x-other"); got != "" {
		t.Fatalf("non-string header must read as empty, got %q", got)
	}
	if headers["traceparent"] != "00-abc-def-01" {
		t.Fatalf("carrier must write through to the header table")
	}
	if len(c.Keys()) != 2 {
		t.Fatalf("expected 2 keys, got %v", c.Keys())
	}
}

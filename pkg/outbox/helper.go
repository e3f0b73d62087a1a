package outbox

import "encoding/json"

// traceIDFromPayload 从 payload 中提取 trace_id（如果存在）
func traceIDFromPayload(payload json.RawMessage) string {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.TraceID
}

// Package analyzer turns a contact's raw message payload into a structured
// AnalysisRecord.
package analyzer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sells-group/funnel-cli/internal/model"
)

// Analyzer produces an AnalysisRecord from a claimed job and the raw
// message payload fetched for its contact.
type Analyzer interface {
	Analyze(ctx context.Context, job model.Job, raw json.RawMessage) (*model.AnalysisRecord, error)
}

// maxTranscriptChars bounds the flattened conversation so prompts stay a
// sane size.
const maxTranscriptChars = 120_000

// PayloadShape identifies which container the message payload used.
type PayloadShape string

const (
	ShapeMessages     PayloadShape = "messages"
	ShapeData         PayloadShape = "data"
	ShapeArray        PayloadShape = "array"
	ShapeUnrecognized PayloadShape = "unrecognized"
)

// Conversation is the normalized view of a raw message payload.
type Conversation struct {
	Shape         PayloadShape
	Transcript    string
	MessageCount  int
	LastMessageTS string
}

// Flatten normalizes a raw payload into a Conversation. The upstream API
// does not document its envelope, so three shapes are accepted: an object
// with a "messages" array, an object with a "data" array, and a bare
// array. Anything else yields an empty conversation rather than an error.
func Flatten(raw json.RawMessage) Conversation {
	msgs, shape := extractMessages(raw)

	conv := Conversation{Shape: shape, MessageCount: len(msgs)}

	var lines []string
	total := 0
	for _, m := range msgs {
		who := firstString(m, "from", "role", "sender")
		if who == "" {
			who = "unknown"
		}
		text := strings.TrimSpace(strings.ReplaceAll(firstString(m, "text", "message", "content"), "\n", " "))
		ts := firstString(m, "created_at", "timestamp", "date")
		if ts != "" {
			conv.LastMessageTS = ts
		}
		if text == "" {
			continue
		}
		line := "[" + ts + "] " + who + ": " + text
		if total+len(line) > maxTranscriptChars {
			break
		}
		total += len(line) + 1
		lines = append(lines, line)
	}

	conv.Transcript = strings.Join(lines, "\n")
	return conv
}

func extractMessages(raw json.RawMessage) ([]map[string]any, PayloadShape) {
	if len(raw) == 0 {
		return nil, ShapeUnrecognized
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if msgs, ok := decodeArray(envelope["messages"]); ok {
			return msgs, ShapeMessages
		}
		if msgs, ok := decodeArray(envelope["data"]); ok {
			return msgs, ShapeData
		}
		return nil, ShapeUnrecognized
	}

	if msgs, ok := decodeArray(raw); ok {
		return msgs, ShapeArray
	}
	return nil, ShapeUnrecognized
}

func decodeArray(raw json.RawMessage) ([]map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	msgs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		var m map[string]any
		if err := json.Unmarshal(item, &m); err != nil {
			continue // non-object entries are skipped
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// firstString returns the first of the named keys that holds a non-empty
// string. Numeric timestamps are not converted.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

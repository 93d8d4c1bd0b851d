package analyzer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-cli/internal/model"
)

func TestRulesNoMessages(t *testing.T) {
	job := model.Job{ContactKey: "5215512345678", Name: "Ana", Email: "ana@example.com"}

	rec, err := Rules{}.Analyze(context.Background(), job, json.RawMessage(`{"messages":[]}`))
	require.NoError(t, err)

	assert.Equal(t, "5215512345678", rec.ApplicantID)
	assert.Equal(t, "5215512345678", rec.Contact.Phone)
	assert.Equal(t, "Ana", rec.Contact.Name)
	assert.Equal(t, model.OutcomeNotApplied, rec.Funnel.Outcome)
	assert.Equal(t, "NO_RESPONSE", rec.Reasoning.PrimaryReasonCode)
	assert.Equal(t, 0.6, rec.Quality.Confidence)
	assert.True(t, rec.Quality.ReviewRequired())
	assert.Zero(t, rec.Conversation.MessageCount)
	assert.Empty(t, rec.Conversation.LastMessageTS)
	assert.Equal(t, "fallback-rules", rec.Meta.Model)
	assert.NotEmpty(t, rec.Meta.AnalysisTS)
}

func TestRulesWithMessages(t *testing.T) {
	raw := json.RawMessage(`{"messages":[{"from":"contact","text":"hola","created_at":"2026-05-01T10:00:00Z"}]}`)

	rec, err := Rules{}.Analyze(context.Background(), model.Job{ContactKey: "52155"}, raw)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeUnknown, rec.Funnel.Outcome)
	assert.Equal(t, "UNKNOWN", rec.Reasoning.PrimaryReasonCode)
	assert.Equal(t, 0.2, rec.Quality.Confidence)
	assert.True(t, rec.Quality.ReviewRequired())
	assert.Equal(t, 1, rec.Conversation.MessageCount)
	assert.Equal(t, "2026-05-01T10:00:00Z", rec.Conversation.LastMessageTS)
}

func TestRulesRecordMarshals(t *testing.T) {
	rec, err := Rules{}.Analyze(context.Background(), model.Job{ContactKey: "1"}, nil)
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"secondary_reason_codes":[]`)
}

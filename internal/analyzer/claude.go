package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/model"
	"github.com/sells-group/funnel-cli/internal/resilience"
	"github.com/sells-group/funnel-cli/pkg/anthropic"
)

const systemPrompt = "You are an HR funnel analyst. Extract information ONLY from the " +
	"conversation transcript. Do NOT invent facts. When evidence is insufficient, use " +
	"\"unknown\" (or \"UNKNOWN\" for reason codes) and set needs_human_review to true. " +
	"Conversations may be in Spanish or English. Respond with ONLY a valid JSON object, " +
	"no prose before or after it."

// Claude analyzes conversations with the Anthropic API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// NewClaude builds a Claude analyzer. maxTokens <= 0 selects a default
// large enough for the full record.
func NewClaude(client anthropic.Client, modelID string, maxTokens int64) *Claude {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "create message")
	return &Claude{client: client, model: modelID, maxTokens: maxTokens, retry: retry}
}

// promptInput is the user-turn payload sent to the model.
type promptInput struct {
	ContactKey         string   `json:"contact_key"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	RunID              string   `json:"run_id"`
	ConversationText   string   `json:"conversation_text"`
	MessageCountHint   int      `json:"message_count_hint"`
	LastMessageTSHint  string   `json:"last_message_ts_hint,omitempty"`
	AllowedReasonCodes []string `json:"allowed_primary_reason_codes"`
	AllowedOutcomes    []string `json:"allowed_outcome"`
	AllowedStages      []string `json:"allowed_stages"`
}

func (c *Claude) Analyze(ctx context.Context, job model.Job, raw json.RawMessage) (*model.AnalysisRecord, error) {
	conv := Flatten(raw)

	input := promptInput{
		ContactKey:         job.ContactKey,
		Name:               job.Name,
		Email:              job.Email,
		RunID:              job.RunID,
		ConversationText:   conv.Transcript,
		MessageCountHint:   conv.MessageCount,
		LastMessageTSHint:  conv.LastMessageTS,
		AllowedReasonCodes: model.PrimaryReasonCodes,
		AllowedOutcomes:    []string{string(model.OutcomeApplied), string(model.OutcomeNotApplied), string(model.OutcomeUnknown)},
		AllowedStages: []string{
			string(model.StageNew), string(model.StageEngaged), string(model.StageScreening),
			string(model.StageScheduled), string(model.StageApplied), string(model.StageHired),
			string(model.StageUnknown),
		},
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: marshal prompt input")
	}

	temp := 0.2
	req := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      systemPrompt + "\n\nThe record schema is:\n" + recordSchema,
		Messages:    []anthropic.Message{{Role: "user", Content: string(payload)}},
		Temperature: &temp,
	}

	// Overloaded-API blips are retried here; anything that survives the
	// backoff is charged against the job's attempt budget instead.
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: claude request")
	}

	resp.Usage.LogUsage(c.model, "analysis")

	text := resp.Text()
	if text == "" {
		return nil, eris.New("analyzer: empty claude response")
	}

	rec, err := decodeRecord(text)
	if err != nil {
		return nil, err
	}

	normalize(rec, job, conv, c.model)
	return rec, nil
}

// decodeRecord extracts the JSON object from model output, tolerating
// surrounding prose.
func decodeRecord(text string) (*model.AnalysisRecord, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("analyzer: no JSON in response: %.120s", text)
	}

	var rec model.AnalysisRecord
	if err := json.Unmarshal([]byte(text[start:end+1]), &rec); err != nil {
		return nil, eris.Wrap(err, "analyzer: parse response JSON")
	}
	return &rec, nil
}

// normalize backfills identity and meta fields, snaps out-of-catalog
// values to their unknown sentinels, and clamps confidence to [0, 1].
// Out-of-catalog input flags the record for human review.
func normalize(rec *model.AnalysisRecord, job model.Job, conv Conversation, modelID string) {
	if rec.ApplicantID == "" {
		rec.ApplicantID = job.ContactKey
	}
	if rec.Contact.Name == "" {
		rec.Contact.Name = job.Name
	}
	if rec.Contact.Phone == "" {
		rec.Contact.Phone = job.ContactKey
	}
	if rec.Contact.Email == "" {
		rec.Contact.Email = job.Email
	}

	if !validOutcome(rec.Funnel.Outcome) {
		zap.L().Warn("analyzer: outcome outside catalog",
			zap.String("contact_key", job.ContactKey),
			zap.String("outcome", string(rec.Funnel.Outcome)))
		rec.Funnel.Outcome = model.OutcomeUnknown
		rec.Quality.NeedsHumanReview = model.Bool(true)
	}
	if !validStage(rec.Funnel.StageReached) {
		rec.Funnel.StageReached = model.StageUnknown
		rec.Quality.NeedsHumanReview = model.Bool(true)
	}
	if rec.Funnel.DropoffStage != "" && !validStage(rec.Funnel.DropoffStage) {
		rec.Funnel.DropoffStage = model.StageUnknown
	}
	if !validReasonCode(rec.Reasoning.PrimaryReasonCode) {
		rec.Reasoning.PrimaryReasonCode = "UNKNOWN"
		rec.Quality.NeedsHumanReview = model.Bool(true)
	}
	if !validSentiment(rec.Conversation.Sentiment) {
		rec.Conversation.Sentiment = model.SentimentUnknown
	}

	if rec.Quality.Confidence < 0 {
		rec.Quality.Confidence = 0
	}
	if rec.Quality.Confidence > 1 {
		rec.Quality.Confidence = 1
	}
	// A record that never stated the review flag gets flagged for review.
	if rec.Quality.NeedsHumanReview == nil {
		rec.Quality.NeedsHumanReview = model.Bool(true)
	}

	if rec.Conversation.MessageCount == 0 {
		rec.Conversation.MessageCount = conv.MessageCount
	}
	if rec.Conversation.LastMessageTS == "" {
		rec.Conversation.LastMessageTS = conv.LastMessageTS
	}

	if rec.Meta.Model == "" {
		rec.Meta.Model = modelID
	}
	if rec.Meta.AnalysisTS == "" {
		rec.Meta.AnalysisTS = time.Now().UTC().Format(time.RFC3339)
	}
}

func validOutcome(o model.Outcome) bool {
	switch o {
	case model.OutcomeApplied, model.OutcomeNotApplied, model.OutcomeUnknown:
		return true
	}
	return false
}

func validStage(s model.Stage) bool {
	switch s {
	case model.StageNew, model.StageEngaged, model.StageScreening,
		model.StageScheduled, model.StageApplied, model.StageHired, model.StageUnknown:
		return true
	}
	return false
}

func validSentiment(s model.Sentiment) bool {
	switch s {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative,
		model.SentimentMixed, model.SentimentUnknown:
		return true
	}
	return false
}

func validReasonCode(code string) bool {
	for _, c := range model.PrimaryReasonCodes {
		if code == c {
			return true
		}
	}
	return false
}

// recordSchema documents the expected output shape for the model. It is a
// prompt artifact, not a validator; decode + normalize enforce the parts
// the pipeline depends on.
var recordSchema = fmt.Sprintf(`{
  "applicant_id": "string",
  "contact": {"name": "string", "phone": "string", "email": "string"},
  "campaign": {"campaign_id": "string", "source": "string", "channel": "string"},
  "funnel": {"outcome": "applied|not_applied|unknown", "stage_reached": "new|engaged|screening|scheduled|applied|hired|unknown", "dropoff_stage": "stage or empty"},
  "reasoning": {"primary_reason_code": "one of %s", "secondary_reason_codes": ["string"], "reason_text": "string"},
  "profile": {"skills_summary": "string", "skills": ["string"], "experience_level": "junior|mid|senior|unknown", "role_interest": ["string"], "availability": "immediate|2_weeks|1_month|unknown", "location": "string"},
  "conversation": {"language": "es|en|other|unknown", "sentiment": "positive|neutral|negative|mixed|unknown", "last_message_ts": "string", "message_count": 0},
  "quality": {"confidence": 0.0, "evidence_quotes": ["up to 3 short verbatim quotes"], "needs_human_review": false},
  "meta": {"model": "string", "analysis_ts": "string"}
}`, strings.Join(model.PrimaryReasonCodes, "|"))

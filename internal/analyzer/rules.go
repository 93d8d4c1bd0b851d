package analyzer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/funnel-cli/internal/model"
)

// Rules is a deterministic analyzer that classifies without an LLM. It
// exists to exercise the pipeline end to end and as a fallback when no
// API key is configured; every record it emits is flagged for human
// review.
type Rules struct{}

func (Rules) Analyze(_ context.Context, job model.Job, raw json.RawMessage) (*model.AnalysisRecord, error) {
	conv := Flatten(raw)

	outcome := model.OutcomeUnknown
	primary := "UNKNOWN"
	reasonText := "Sin evidencia suficiente para clasificar automáticamente."
	confidence := 0.2

	if conv.MessageCount == 0 {
		outcome = model.OutcomeNotApplied
		primary = "NO_RESPONSE"
		reasonText = "No hay mensajes registrados para este contacto."
		confidence = 0.6
	}

	lastTS := conv.LastMessageTS
	if lastTS == "" && conv.MessageCount > 0 {
		lastTS = time.Now().UTC().Format(time.RFC3339)
	}

	return &model.AnalysisRecord{
		ApplicantID: job.ContactKey,
		Contact: model.AnalysisContact{
			Name:  job.Name,
			Phone: job.ContactKey,
			Email: job.Email,
		},
		Campaign: model.AnalysisCampaign{Source: "maxhelper"},
		Funnel: model.AnalysisFunnel{
			Outcome:      outcome,
			StageReached: model.StageUnknown,
		},
		Reasoning: model.AnalysisReasoning{
			PrimaryReasonCode:    primary,
			SecondaryReasonCodes: []string{},
			ReasonText:           reasonText,
		},
		Profile: model.AnalysisProfile{
			Skills:          []string{},
			ExperienceLevel: "unknown",
			RoleInterest:    []string{},
		},
		Conversation: model.AnalysisConversation{
			Language:      "unknown",
			Sentiment:     model.SentimentUnknown,
			LastMessageTS: lastTS,
			MessageCount:  conv.MessageCount,
		},
		Quality: model.AnalysisQuality{
			Confidence:       confidence,
			EvidenceQuotes:   []string{},
			NeedsHumanReview: model.Bool(true),
		},
		Meta: model.AnalysisMeta{
			Model:      "fallback-rules",
			AnalysisTS: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

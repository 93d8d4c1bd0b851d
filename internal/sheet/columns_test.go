package sheet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-cli/internal/model"
)

func TestColumnsShape(t *testing.T) {
	require.Len(t, Columns, 24)
	assert.Equal(t, "applicant_id", Columns[0])
	assert.Equal(t, "analysis_ts", Columns[23])
}

func TestProjectRowFull(t *testing.T) {
	rec := &model.AnalysisRecord{
		ApplicantID: "5215512345678",
		Contact:     model.AnalysisContact{Name: "Ana", Phone: "5215512345678", Email: "ana@example.com"},
		Funnel: model.AnalysisFunnel{
			Outcome:      model.OutcomeNotApplied,
			StageReached: model.StageEngaged,
			DropoffStage: model.StageScreening,
		},
		Reasoning: model.AnalysisReasoning{
			PrimaryReasonCode:    "SALARY_MISMATCH",
			SecondaryReasonCodes: []string{"TIME_CONSTRAINT", "OTHER"},
			ReasonText:           "Pidió mayor sueldo.",
		},
		Profile: model.AnalysisProfile{
			SkillsSummary:   "ventas y atención",
			Skills:          []string{"ventas", "crm"},
			ExperienceLevel: "mid",
			RoleInterest:    []string{"sales"},
			Availability:    "immediate",
			Location:        "CDMX",
		},
		Conversation: model.AnalysisConversation{
			Sentiment:     model.SentimentNegative,
			MessageCount:  7,
			LastMessageTS: "2026-05-01T10:05:00Z",
		},
		Quality: model.AnalysisQuality{
			Confidence:       0.85,
			EvidenceQuotes:   []string{"q1", "q2", "q3 dropped"},
			NeedsHumanReview: model.Bool(false),
		},
		Meta: model.AnalysisMeta{AnalysisTS: "2026-05-01T11:00:00Z"},
	}

	row := ProjectRow(rec)
	require.Len(t, row, len(Columns))

	assert.Equal(t, "5215512345678", row[0])
	assert.Equal(t, "not_applied", row[4])
	assert.Equal(t, "screening", row[6])
	assert.Equal(t, "TIME_CONSTRAINT,OTHER", row[8])
	assert.Equal(t, "ventas,crm", row[11])
	assert.Equal(t, "7", row[17])
	assert.Equal(t, "0.85", row[19])
	assert.Equal(t, "false", row[20])
	assert.Equal(t, "q1", row[21])
	assert.Equal(t, "q2", row[22]) // third quote dropped
	assert.Equal(t, "2026-05-01T11:00:00Z", row[23])
}

func TestProjectRowDefaults(t *testing.T) {
	row := ProjectRow(&model.AnalysisRecord{})
	require.Len(t, row, len(Columns))

	assert.Equal(t, "", row[0])
	assert.Equal(t, "unknown", row[4])  // outcome
	assert.Equal(t, "unknown", row[5])  // stage_reached
	assert.Equal(t, "", row[6])         // dropoff_stage stays empty
	assert.Equal(t, "UNKNOWN", row[7])  // primary_reason_code
	assert.Equal(t, "unknown", row[12]) // experience_level
	assert.Equal(t, "unknown", row[16]) // sentiment
	assert.Equal(t, "0", row[17])
	assert.Equal(t, "0", row[19])
	assert.Equal(t, "true", row[20]) // unstated review flag means review
	assert.Equal(t, "", row[21])
}

func TestProjectRowMissingReviewFlag(t *testing.T) {
	var rec model.AnalysisRecord
	err := json.Unmarshal([]byte(`{
		"applicant_id": "5551234",
		"contact": {"name": "Ana", "phone": "5551234", "email": "ana@example.com"},
		"quality": {"confidence": 0.9, "evidence_quotes": []}
	}`), &rec)
	require.NoError(t, err)

	row := ProjectRow(&rec)
	assert.Equal(t, "true", row[20], "absent needs_human_review must project as true")

	err = json.Unmarshal([]byte(`{"quality": {"needs_human_review": false}}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, "false", ProjectRow(&rec)[20], "explicit false is kept")
}

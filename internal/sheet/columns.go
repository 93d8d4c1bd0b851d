// Package sheet projects analysis records onto the fixed applicants table
// and writes them through a row-addressable sink.
package sheet

import (
	"strconv"
	"strings"

	"github.com/sells-group/funnel-cli/internal/model"
)

// Columns is the versioned applicants header. Order is part of the sink
// contract: cached row numbers were written against it, so existing
// deployments must not reorder entries. Add new columns at the end.
var Columns = []string{
	"applicant_id", "name", "phone", "email",
	"outcome", "stage_reached", "dropoff_stage",
	"primary_reason_code", "secondary_reason_codes", "reason_text",
	"skills_summary", "skills", "experience_level", "role_interest",
	"availability", "location",
	"sentiment", "message_count", "last_message_ts",
	"confidence", "needs_human_review", "evidence_quote_1", "evidence_quote_2",
	"analysis_ts",
}

// ProjectRow flattens an AnalysisRecord into one value per column, in
// Columns order. Missing fields fall back to spreadsheet-friendly
// defaults rather than failing.
func ProjectRow(rec *model.AnalysisRecord) []string {
	quotes := rec.Quality.EvidenceQuotes
	ev1, ev2 := "", ""
	if len(quotes) > 0 {
		ev1 = quotes[0]
	}
	if len(quotes) > 1 {
		ev2 = quotes[1]
	}

	return []string{
		rec.ApplicantID,
		rec.Contact.Name,
		rec.Contact.Phone,
		rec.Contact.Email,
		stringOr(string(rec.Funnel.Outcome), "unknown"),
		stringOr(string(rec.Funnel.StageReached), "unknown"),
		string(rec.Funnel.DropoffStage),
		stringOr(rec.Reasoning.PrimaryReasonCode, "UNKNOWN"),
		strings.Join(rec.Reasoning.SecondaryReasonCodes, ","),
		rec.Reasoning.ReasonText,
		rec.Profile.SkillsSummary,
		strings.Join(rec.Profile.Skills, ","),
		stringOr(rec.Profile.ExperienceLevel, "unknown"),
		strings.Join(rec.Profile.RoleInterest, ","),
		rec.Profile.Availability,
		rec.Profile.Location,
		stringOr(string(rec.Conversation.Sentiment), "unknown"),
		strconv.Itoa(rec.Conversation.MessageCount),
		rec.Conversation.LastMessageTS,
		strconv.FormatFloat(rec.Quality.Confidence, 'f', -1, 64),
		strconv.FormatBool(rec.Quality.ReviewRequired()),
		ev1,
		ev2,
		rec.Meta.AnalysisTS,
	}
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

package model

// Funnel outcome of a contact's conversation.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeNotApplied Outcome = "not_applied"
	OutcomeUnknown    Outcome = "unknown"
)

// Stage is a step of the recruiting funnel.
type Stage string

const (
	StageNew       Stage = "new"
	StageEngaged   Stage = "engaged"
	StageScreening Stage = "screening"
	StageScheduled Stage = "scheduled"
	StageApplied   Stage = "applied"
	StageHired     Stage = "hired"
	StageUnknown   Stage = "unknown"
)

// Sentiment of the conversation overall.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
	SentimentUnknown  Sentiment = "unknown"
)

// PrimaryReasonCodes is the fixed catalog of drop-off reason codes the
// analyzer may emit.
var PrimaryReasonCodes = []string{
	"NO_RESPONSE",
	"LOST_INTEREST",
	"TIME_CONSTRAINT",
	"SALARY_MISMATCH",
	"LOCATION_MISMATCH",
	"NOT_QUALIFIED",
	"QUALIFIED_BUT_NOT_INTERESTED",
	"PROCESS_CONFUSION",
	"TECH_ISSUES",
	"DUPLICATE",
	"SPAM",
	"OTHER",
	"UNKNOWN",
}

// AnalysisRecord is the structured per-applicant result produced by the
// analysis step. The queue core treats it as opaque beyond the fields the
// row projector reads.
type AnalysisRecord struct {
	ApplicantID  string               `json:"applicant_id"`
	Contact      AnalysisContact      `json:"contact"`
	Campaign     AnalysisCampaign     `json:"campaign"`
	Funnel       AnalysisFunnel       `json:"funnel"`
	Reasoning    AnalysisReasoning    `json:"reasoning"`
	Profile      AnalysisProfile      `json:"profile"`
	Conversation AnalysisConversation `json:"conversation"`
	Quality      AnalysisQuality      `json:"quality"`
	Meta         AnalysisMeta         `json:"meta"`
}

// AnalysisContact echoes the contact identity the job carried.
type AnalysisContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// AnalysisCampaign identifies the campaign the contact came from.
type AnalysisCampaign struct {
	CampaignID string `json:"campaign_id,omitempty"`
	Source     string `json:"source"`
	Channel    string `json:"channel,omitempty"`
}

// AnalysisFunnel holds the funnel classification.
type AnalysisFunnel struct {
	Outcome      Outcome `json:"outcome"`
	StageReached Stage   `json:"stage_reached"`
	DropoffStage Stage   `json:"dropoff_stage,omitempty"`
}

// AnalysisReasoning explains the classification.
type AnalysisReasoning struct {
	PrimaryReasonCode    string   `json:"primary_reason_code"`
	SecondaryReasonCodes []string `json:"secondary_reason_codes"`
	ReasonText           string   `json:"reason_text"`
}

// AnalysisProfile captures what the conversation revealed about the
// applicant.
type AnalysisProfile struct {
	SkillsSummary   string   `json:"skills_summary"`
	Skills          []string `json:"skills"`
	ExperienceLevel string   `json:"experience_level"`
	RoleInterest    []string `json:"role_interest"`
	Availability    string   `json:"availability,omitempty"`
	Location        string   `json:"location,omitempty"`
}

// AnalysisConversation holds conversation-level statistics.
type AnalysisConversation struct {
	Language      string    `json:"language"`
	Sentiment     Sentiment `json:"sentiment"`
	LastMessageTS string    `json:"last_message_ts,omitempty"`
	MessageCount  int       `json:"message_count"`
}

// AnalysisQuality carries confidence and review flags. NeedsHumanReview is
// a pointer so an analysis that never stated the flag can be told apart
// from an explicit false.
type AnalysisQuality struct {
	Confidence       float64  `json:"confidence"`
	EvidenceQuotes   []string `json:"evidence_quotes"`
	NeedsHumanReview *bool    `json:"needs_human_review"`
}

// ReviewRequired resolves the review flag. An analysis that never stated
// it is treated as needing review.
func (q AnalysisQuality) ReviewRequired() bool {
	return q.NeedsHumanReview == nil || *q.NeedsHumanReview
}

// Bool returns a pointer to b, for optional JSON booleans.
func Bool(b bool) *bool { return &b }

// AnalysisMeta is provenance for the analysis itself.
type AnalysisMeta struct {
	Model      string `json:"model"`
	AnalysisTS string `json:"analysis_ts"`
}

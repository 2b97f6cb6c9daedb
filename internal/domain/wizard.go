package domain

import "time"

// FlowKind identifies which onboarding audience a wizard session serves.
type FlowKind string

const (
	FlowJobSeeker FlowKind = "jobseeker"
	FlowAssistant FlowKind = "assistant"
	FlowEmployer  FlowKind = "employer"
)

// ValidFlow reports whether s names a known flow.
func ValidFlow(s string) bool {
	switch FlowKind(s) {
	case FlowJobSeeker, FlowAssistant, FlowEmployer:
		return true
	}
	return false
}

// StepKind tags one screen of the wizard. Steps are elements of an ordered
// list, not numeric identifiers; the OTP sub-step is spliced into the list
// right after account info for flows that verify the email at that point.
type StepKind string

const (
	StepAccountInfo     StepKind = "account_info"
	StepOtpVerification StepKind = "otp_verification"
	StepBasicInfo       StepKind = "basic_info"
	StepCompanyInfo     StepKind = "company_info"
	StepLocation        StepKind = "location"
	StepProfile         StepKind = "profile"
	StepDocuments       StepKind = "documents"
	StepReview          StepKind = "review"
)

// StepsFor returns the ordered step list for a flow. All three flows verify
// the email between account info and the next ordinal step.
func StepsFor(flow FlowKind) []StepKind {
	switch flow {
	case FlowEmployer:
		return []StepKind{
			StepAccountInfo, StepOtpVerification, StepCompanyInfo,
			StepLocation, StepDocuments, StepReview,
		}
	case FlowAssistant:
		return []StepKind{
			StepAccountInfo, StepOtpVerification, StepBasicInfo,
			StepLocation, StepDocuments, StepReview,
		}
	default:
		return []StepKind{
			StepAccountInfo, StepOtpVerification, StepBasicInfo,
			StepLocation, StepProfile, StepDocuments, StepReview,
		}
	}
}

// WizardSession is the aggregate root for one registration attempt.
// Answers accumulate monotonically across steps and survive back-navigation;
// Errors are replaced wholesale each time a step is validated.
type WizardSession struct {
	SessionID     string              `json:"id" dynamodbav:"session_id"`
	Flow          FlowKind            `json:"flow" dynamodbav:"flow"`
	StepIndex     int                 `json:"step_index" dynamodbav:"step_index"`
	Answers       map[string]string   `json:"answers" dynamodbav:"answers"`
	ListAnswers   map[string][]string `json:"list_answers" dynamodbav:"list_answers"`
	Errors        map[string]string   `json:"errors" dynamodbav:"errors"`
	AcceptedTerms bool                `json:"accepted_terms" dynamodbav:"accepted_terms"`
	Otp           *OtpChallenge       `json:"otp,omitempty" dynamodbav:"otp"`
	Documents     []StagedDocument    `json:"documents" dynamodbav:"documents"`
	Submitted     bool                `json:"submitted" dynamodbav:"submitted"`
	AccountID     string              `json:"account_id,omitempty" dynamodbav:"account_id"`
	ExpiresAt     int64               `json:"-" dynamodbav:"expires_at"` // TTL (Unix seconds)
	CreatedAt     time.Time           `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time           `json:"updated" dynamodbav:"updated_at"`
}

// Step returns the tagged step the session currently sits on.
func (s *WizardSession) Step() StepKind {
	steps := StepsFor(s.Flow)
	if s.StepIndex < 0 || s.StepIndex >= len(steps) {
		return steps[len(steps)-1]
	}
	return steps[s.StepIndex]
}

// OnTerminalStep reports whether the session sits on the review step.
func (s *WizardSession) OnTerminalStep() bool {
	return s.StepIndex == len(StepsFor(s.Flow))-1
}

// Answer returns a scalar answer or "".
func (s *WizardSession) Answer(field string) string {
	return s.Answers[field]
}

// DocumentsOfType returns every staged document with the given type,
// preserving staging order.
func (s *WizardSession) DocumentsOfType(t DocumentType) []StagedDocument {
	var out []StagedDocument
	for _, d := range s.Documents {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

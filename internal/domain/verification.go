package domain

// Verification stores an issued OTP code.
// PK: email, SK: purpose ("registration").
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Verification struct {
	Email     string `json:"email" dynamodbav:"email"`
	Purpose   string `json:"purpose" dynamodbav:"purpose"`
	Code      string `json:"code" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// VerificationPurposeRegistration is the only purpose the wizard issues.
const VerificationPurposeRegistration = "registration"

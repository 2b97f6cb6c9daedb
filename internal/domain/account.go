package domain

import "time"

// Account is the record SubmissionAssembler writes on a successful
// registration. One account per session; a session is never submitted twice.
type Account struct {
	AccountID    string   `json:"id" dynamodbav:"account_id"`
	Flow         FlowKind `json:"flow" dynamodbav:"flow"`
	Email        string   `json:"email" dynamodbav:"email"`
	PasswordHash string   `json:"-" dynamodbav:"password_hash"`
	Phone        string   `json:"phone" dynamodbav:"phone"`

	FirstName   string `json:"first_name" dynamodbav:"first_name"`
	LastName    string `json:"last_name" dynamodbav:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth"` // YYYY-MM-DD
	CompanyName string `json:"company_name,omitempty" dynamodbav:"company_name"`

	Region     string `json:"region" dynamodbav:"region"`
	Province   string `json:"province" dynamodbav:"province"`
	City       string `json:"city" dynamodbav:"city"`
	Barangay   string `json:"barangay" dynamodbav:"barangay"`
	PostalCode string `json:"postal_code" dynamodbav:"postal_code"`
	Street     string `json:"street" dynamodbav:"street"`

	// Array-valued answers, order-preserving.
	Skills          []string `json:"skills,omitempty" dynamodbav:"skills"`
	DisabilityTypes []string `json:"disability_types,omitempty" dynamodbav:"disability_types"`
	Industries      []string `json:"industries,omitempty" dynamodbav:"industries"`
	JobTitles       []string `json:"job_titles,omitempty" dynamodbav:"job_titles"`

	// Object keys of the documents carried over from staging.
	DocumentKeys map[string][]string `json:"-" dynamodbav:"document_keys"`

	EmailConfirmed bool      `json:"email_confirmed" dynamodbav:"email_confirmed"`
	Enable         bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

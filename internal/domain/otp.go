package domain

import (
	"strings"
	"time"
	"unicode"
)

// OtpAttemptState is the challenge's position in its state machine.
type OtpAttemptState string

const (
	OtpIdle          OtpAttemptState = "idle"
	OtpSending       OtpAttemptState = "sending"
	OtpAwaitingInput OtpAttemptState = "awaiting_input"
	OtpVerifying     OtpAttemptState = "verifying"
	OtpVerified      OtpAttemptState = "verified"
	OtpFailed        OtpAttemptState = "failed"
)

// OtpCellCount is the fixed number of code-entry cells.
const OtpCellCount = 6

// OtpCooldown is how long a challenge must wait between sends.
const OtpCooldown = 60 * time.Second

// OtpChallenge is the per-verification-attempt value object. One exists only
// while the session sits on (or just before) the OTP sub-step; retreating out
// of the sub-step discards it rather than resuming it, since codes are
// time-bound.
type OtpChallenge struct {
	TargetEmail    string          `json:"target_email" dynamodbav:"target_email"`
	Cells          []string        `json:"cells" dynamodbav:"cells"` // always OtpCellCount entries
	Cursor         int             `json:"cursor" dynamodbav:"cursor"`
	AttemptState   OtpAttemptState `json:"attempt_state" dynamodbav:"attempt_state"`
	FailureMessage string          `json:"failure_message,omitempty" dynamodbav:"failure_message"`
	SentAt         time.Time       `json:"sent_at" dynamodbav:"sent_at"`
}

// NewOtpChallenge returns an idle challenge with empty cells.
func NewOtpChallenge(email string) *OtpChallenge {
	return &OtpChallenge{
		TargetEmail:  email,
		Cells:        make([]string, OtpCellCount),
		AttemptState: OtpIdle,
	}
}

// CooldownRemaining returns the whole seconds left before a resend is
// allowed, never negative.
func (c *OtpChallenge) CooldownRemaining(now time.Time) int {
	if c.SentAt.IsZero() {
		return 0
	}
	left := OtpCooldown - now.Sub(c.SentAt)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// EnterDigit writes one digit into the cursor cell and auto-advances.
// Non-digit input is ignored.
func (c *OtpChallenge) EnterDigit(r rune) {
	if !unicode.IsDigit(r) || c.Cursor >= OtpCellCount {
		return
	}
	c.Cells[c.Cursor] = string(r)
	if c.Cursor < OtpCellCount-1 {
		c.Cursor++
	}
}

// Backspace clears the cursor cell; if it is already empty the cursor
// retreats to the previous cell and clears that instead.
func (c *OtpChallenge) Backspace() {
	if c.Cells[c.Cursor] == "" && c.Cursor > 0 {
		c.Cursor--
	}
	c.Cells[c.Cursor] = ""
}

// Paste populates all cells atomically from a six-digit string. Shorter,
// longer, or non-numeric input is ignored. Pasting is idempotent: cells are
// overwritten, never appended.
func (c *OtpChallenge) Paste(code string) {
	code = strings.TrimSpace(code)
	if len(code) != OtpCellCount {
		return
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return
		}
	}
	for i, r := range code {
		c.Cells[i] = string(r)
	}
	c.Cursor = OtpCellCount - 1
}

// Code joins the cells into the candidate code.
func (c *OtpChallenge) Code() string {
	return strings.Join(c.Cells, "")
}

// Complete reports whether every cell holds a digit.
func (c *OtpChallenge) Complete() bool {
	for _, cell := range c.Cells {
		if cell == "" {
			return false
		}
	}
	return true
}

// ClearCells empties every cell and resets the cursor. Called on each resend.
func (c *OtpChallenge) ClearCells() {
	for i := range c.Cells {
		c.Cells[i] = ""
	}
	c.Cursor = 0
}

// Package rules holds the per-step validation rule sets. Every rule is a
// pure predicate over the session's accumulated answers; the engine maps a
// step to a field → message table and never touches the session itself.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/geo"
)

// Resolver is the location-cascade lookup the engine consults for
// membership checks. Satisfied by *geo.Resolver.
type Resolver interface {
	Regions() []string
	ChildrenOf(level geo.Level, parent string) []string
}

// Engine validates one step at a time. The clock is injected so the
// date-of-birth rules are deterministic under test.
type Engine struct {
	resolver Resolver
	now      func() time.Time
}

func NewEngine(resolver Resolver, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{resolver: resolver, now: now}
}

var (
	emailRe  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	nameRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z' -]*$`)
	postalRe = regexp.MustCompile(`^\d{4}$`)
	digitsRe = regexp.MustCompile(`\D`)
)

// passwordSymbols is the fixed punctuation set a password must draw from.
const passwordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?~`"

const (
	// MsgSequentialPhone is surfaced when the last ten digits are monotonic
	// end to end and contain a run of five or more consecutive digits.
	MsgSequentialPhone = "Phone number cannot contain 5 or more sequential digits"
	// MsgRepeatedPhone is surfaced when a digit repeats five or more times
	// in a row within the last ten digits.
	MsgRepeatedPhone = "Phone number cannot contain 5 or more repeated digits"
	// MsgNoIdentityDocument is the general documents-step bucket used when
	// no qualifying identity proof has been staged at all.
	MsgNoIdentityDocument = "Please upload at least one form of identification"
)

// Validate runs the rule set for the given step against the session and
// returns the complete error map for that step. The caller replaces (never
// merges) the session's error map with the result.
func (e *Engine) Validate(step domain.StepKind, s *domain.WizardSession) map[string]string {
	errs := map[string]string{}
	switch step {
	case domain.StepAccountInfo:
		e.accountInfo(s, errs)
	case domain.StepOtpVerification:
		// Gated by the challenge state machine, not by field rules.
	case domain.StepBasicInfo:
		e.basicInfo(s, errs)
	case domain.StepCompanyInfo:
		e.companyInfo(s, errs)
	case domain.StepLocation:
		e.location(s, errs)
	case domain.StepProfile:
		e.profile(s, errs)
	case domain.StepDocuments:
		e.documents(s, errs)
	case domain.StepReview:
		if !s.AcceptedTerms {
			errs["acceptedTerms"] = "You must accept the terms and conditions"
		}
	}
	return errs
}

func (e *Engine) accountInfo(s *domain.WizardSession, errs map[string]string) {
	email := strings.TrimSpace(s.Answer("email"))
	switch {
	case email == "":
		errs["email"] = "Email is required"
	case !emailRe.MatchString(email):
		errs["email"] = "Please enter a valid email address"
	}

	password := s.Answer("password")
	if msg := CheckPassword(password); msg != "" {
		errs["password"] = msg
	}
	if s.Answer("confirmPassword") != password {
		errs["confirmPassword"] = "Passwords do not match"
	}
}

// CheckPassword returns the first unmet password requirement, or "".
func CheckPassword(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters"
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	switch {
	case !upper:
		return "Password must contain at least one uppercase letter"
	case !lower:
		return "Password must contain at least one lowercase letter"
	case !digit:
		return "Password must contain at least one number"
	case !symbol:
		return "Password must contain at least one special character"
	}
	return ""
}

// CheckName validates a person or company name field: letters, spaces,
// hyphens, and apostrophes only, at least two characters.
func CheckName(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "This field is required"
	case len(name) < 2:
		return "Must be at least 2 characters"
	case !nameRe.MatchString(name):
		return "Only letters, spaces, hyphens and apostrophes are allowed"
	}
	return ""
}

func (e *Engine) basicInfo(s *domain.WizardSession, errs map[string]string) {
	if msg := CheckName(s.Answer("firstName")); msg != "" {
		errs["firstName"] = msg
	}
	if msg := CheckName(s.Answer("lastName")); msg != "" {
		errs["lastName"] = msg
	}
	if _, msg := NormalizePhone(s.Answer("phone")); msg != "" {
		errs["phone"] = msg
	}
	e.dateOfBirth(s, errs)
}

func (e *Engine) companyInfo(s *domain.WizardSession, errs map[string]string) {
	if msg := CheckName(s.Answer("companyName")); msg != "" {
		errs["companyName"] = msg
	}
	if msg := CheckName(s.Answer("firstName")); msg != "" {
		errs["firstName"] = msg
	}
	if msg := CheckName(s.Answer("lastName")); msg != "" {
		errs["lastName"] = msg
	}
	if _, msg := NormalizePhone(s.Answer("phone")); msg != "" {
		errs["phone"] = msg
	}
}

func (e *Engine) dateOfBirth(s *domain.WizardSession, errs map[string]string) {
	raw := strings.TrimSpace(s.Answer("dateOfBirth"))
	if raw == "" {
		errs["dateOfBirth"] = "Date of birth is required"
		return
	}
	dob, err := time.Parse("2006-01-02", raw)
	if err != nil {
		errs["dateOfBirth"] = "Please enter a valid date"
		return
	}
	now := e.now()
	if dob.After(now) {
		errs["dateOfBirth"] = "Date of birth cannot be in the future"
		return
	}
	age := DeriveAge(dob, now)
	switch {
	case age < 16:
		errs["dateOfBirth"] = "You must be at least 16 years old"
		return
	case age > 100:
		errs["dateOfBirth"] = "You must be at most 100 years old"
		return
	}
	// Date of birth is authoritative; a manually entered age is only checked
	// for gross disagreement (±1 year tolerance) where the field coexists.
	if manual := strings.TrimSpace(s.Answer("age")); manual != "" {
		n, err := strconv.Atoi(manual)
		if err != nil {
			errs["age"] = "Please enter a valid age"
		} else if n < age-1 || n > age+1 {
			errs["age"] = "Age does not match date of birth"
		}
	}
}

// DeriveAge computes the whole-year age at now, adjusted when the birthday
// has not yet been reached this year.
func DeriveAge(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// NormalizePhone strips non-digits and normalizes a local mobile number to
// +639XXXXXXXXX form. It returns the normalized number, or an error message.
// The sequential and repeat-run rejections are checked against the last ten
// digits before the shape check so that junk input gets the specific message
// rather than the generic one.
func NormalizePhone(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "Phone number is required"
	}
	digits := digitsRe.ReplaceAllString(raw, "")
	if len(digits) >= 10 {
		last10 := digits[len(digits)-10:]
		if sequentialWindow(last10, 5) {
			return "", MsgSequentialPhone
		}
		if hasRepeatRun(last10, 5) {
			return "", MsgRepeatedPhone
		}
	}
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "09"):
		return "+63" + digits[1:], ""
	case len(digits) == 12 && strings.HasPrefix(digits, "639"):
		return "+" + digits, ""
	case len(digits) == 10 && strings.HasPrefix(digits, "9"):
		return "+63" + digits, ""
	}
	return "", "Please enter a valid mobile number"
}

// sequentialWindow reports whether the window is monotonic end to end and
// contains a run of at least n consecutive digits. A direction reversal
// anywhere in the window clears it: "9123456789" is a real mobile number,
// "1234567899" is keyboard junk.
func sequentialWindow(digits string, n int) bool {
	asc, desc := true, true
	run, longest := 1, 1
	for i := 1; i < len(digits); i++ {
		d := int(digits[i]) - int(digits[i-1])
		if d < 0 {
			asc = false
		}
		if d > 0 {
			desc = false
		}
		if d == 1 || d == -1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return (asc || desc) && longest >= n
}

// hasRepeatRun reports the same digit repeated at least n times in a row.
func hasRepeatRun(digits string, n int) bool {
	run := 1
	for i := 1; i < len(digits); i++ {
		if digits[i] == digits[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func (e *Engine) location(s *domain.WizardSession, errs map[string]string) {
	region := s.Answer("region")
	province := s.Answer("province")
	city := s.Answer("city")
	barangay := s.Answer("barangay")

	require := func(field, label, value string) bool {
		if strings.TrimSpace(value) == "" {
			errs[field] = fmt.Sprintf("%s is required", label)
			return false
		}
		return true
	}
	member := func(field, label string, level geo.Level, parent, value string) {
		for _, c := range e.resolver.ChildrenOf(level, parent) {
			if c == value {
				return
			}
		}
		errs[field] = fmt.Sprintf("Please select a valid %s", label)
	}

	if require("region", "Region", region) {
		member("region", "region", geo.LevelRegion, "", region)
	}
	if require("province", "Province", province) && errs["region"] == "" {
		member("province", "province", geo.LevelProvince, region, province)
	}
	if require("city", "City", city) && errs["province"] == "" {
		member("city", "city", geo.LevelCity, province, city)
	}
	if require("barangay", "Barangay", barangay) && errs["city"] == "" {
		member("barangay", "barangay", geo.LevelBarangay, city, barangay)
	}
	if require("postalCode", "Postal code", s.Answer("postalCode")) {
		if !postalRe.MatchString(strings.TrimSpace(s.Answer("postalCode"))) {
			errs["postalCode"] = "Postal code must be exactly 4 digits"
		}
	}
	require("street", "Street address", s.Answer("street"))
}

func (e *Engine) profile(s *domain.WizardSession, errs map[string]string) {
	if len(s.ListAnswers["disabilityTypes"]) == 0 {
		errs["disabilityTypes"] = "Please select at least one disability type"
	}
	if len(s.ListAnswers["skills"]) == 0 {
		errs["skills"] = "Please add at least one skill"
	}
}

// documents re-checks the cross-entity invariant: at least one staged
// document from the flow's identity-proof subset. Per-slot rejections are
// surfaced at staging time and are not re-derived here.
func (e *Engine) documents(s *domain.WizardSession, errs map[string]string) {
	for _, t := range domain.IdentityProofTypes(s.Flow) {
		if len(s.DocumentsOfType(t)) > 0 {
			return
		}
	}
	errs["documents"] = MsgNoIdentityDocument
}

package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/pkg/utils"
)

var (
	// ErrNotFound means no source could produce a customer record
	ErrNotFound = errors.New("customer not found")
	// ErrIncompleteParticipant means a record was found but lacks required fields
	ErrIncompleteParticipant = errors.New("customer record incomplete")
)

// CallParticipant is the customer on the line
type CallParticipant struct {
	Name              string    `json:"name" bson:"name"`
	LoanRef           string    `json:"loan_id" bson:"loan_id"`
	OutstandingAmount float64   `json:"outstanding_amount" bson:"outstanding_amount"`
	DueDate           time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
	PreferredLanguage string    `json:"preferred_language,omitempty" bson:"preferred_language,omitempty"`
	Phone             string    `json:"phone" bson:"phone"`
	State             string    `json:"state,omitempty" bson:"state,omitempty"`
}

// Validate fails fast on the fields the conversation cannot run without
func (p *CallParticipant) Validate() error {
	if p == nil {
		return ErrNotFound
	}
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.LoanRef) == "" {
		missing = append(missing, "loan_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteParticipant, strings.Join(missing, ", "))
	}
	return nil
}

// LoanSuffix is the last four digits of the loan reference read out on the call
func (p *CallParticipant) LoanSuffix() string {
	return utils.LastDigits(p.LoanRef, 4)
}

// FirstName is the name used when greeting
func (p *CallParticipant) FirstName() string {
	if f := strings.Fields(p.Name); len(f) > 0 {
		return f[0]
	}
	return p.Name
}

// Language returns the preferred language, or fallback when unset or unknown
func (p *CallParticipant) Language(fallback language.Code) language.Code {
	if c, ok := language.Parse(p.PreferredLanguage); ok {
		return c
	}
	return fallback
}

// FromMetadata builds a participant from the stream-start custom
// parameters. ok is false when the metadata carries no customer fields.
func FromMetadata(meta map[string]string) (*CallParticipant, bool) {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(meta[k]); v != "" {
				return v
			}
		}
		return ""
	}

	p := &CallParticipant{
		Name:              get("customer_name", "name"),
		LoanRef:           get("loan_id", "loan_ref", "loanId"),
		PreferredLanguage: get("language", "preferred_language"),
		Phone:             get("phone", "customer_phone", "from"),
		State:             get("state"),
	}
	if p.Name == "" && p.LoanRef == "" {
		return nil, false
	}
	if v := get("outstanding_amount", "amount", "emi_amount"); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil {
			p.OutstandingAmount = f
		}
	}
	if v := get("due_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			p.DueDate = t
		}
	}
	return p, true
}

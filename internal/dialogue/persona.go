package dialogue

import (
	"fmt"
	"strings"

	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/utils"
)

// Persona builds the system preamble for one customer
func Persona(p *session.CallParticipant, lang language.Code) string {
	var b strings.Builder

	b.WriteString("You are Priya, a polite collections officer calling on behalf of Troika Finance. ")
	b.WriteString("You are on a live phone call, so every reply is spoken aloud: one or two short sentences, no lists, no markdown, no emojis.\n\n")

	fmt.Fprintf(&b, "Customer: %s.\n", p.Name)
	fmt.Fprintf(&b, "Loan account ending: %s.\n", p.LoanSuffix())
	if p.OutstandingAmount > 0 {
		fmt.Fprintf(&b, "Outstanding EMI: Rs %s.\n", utils.FormatINR(p.OutstandingAmount))
	}
	if !p.DueDate.IsZero() {
		fmt.Fprintf(&b, "Due date: %s.\n", p.DueDate.Format("2 January 2006"))
	}

	fmt.Fprintf(&b, "\nSpeak %s.", lang.Name())
	if lang == language.Hindi {
		b.WriteString(" Natural Hinglish is fine.")
	}
	b.WriteString(" If the customer switches language, follow them.\n\n")

	b.WriteString("Goal: get a firm commitment to pay, with a date. Understand the reason for delay, offer a partial payment if they cannot pay in full, and never threaten or shame the customer.\n\n")

	b.WriteString("End every reply with exactly one status tag:\n")
	b.WriteString("[continue] while the conversation is ongoing,\n")
	b.WriteString("[promise] only when the customer has clearly committed to a payment date or amount and you are confirming it,\n")
	b.WriteString("[escalate] when the customer asks for a human or refuses outright.\n")
	b.WriteString("Never use [promise] on a question.")

	return b.String()
}

package callflow

import (
	"strings"

	"github.com/troikatech/collections-agent/internal/language"
)

// Answer is a caller's reply to a yes/no prompt
type Answer int

const (
	Unresolved Answer = iota
	Affirmative
	Negative
)

func (a Answer) String() string {
	switch a {
	case Affirmative:
		return "affirmative"
	case Negative:
		return "negative"
	}
	return "unresolved"
}

func words(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}

var yesWords = words(
	"yes", "yeah", "yep", "yup", "yea", "sure", "correct", "right", "speaking", "absolutely",
	"haan", "han", "haa", "haanji", "bilkul", "sahi", "aama", "aamam", "aam", "avunu", "houdu", "hoodu", "hoy",
	"हाँ", "हां", "हा", "बिल्कुल", "सही", "होय", "ஆமாம்", "ஆம்", "ஆமா", "అవును", "ಹೌದು",
)

// weakYes only counts when nothing else in the reply has a polarity
var weakYes = words("ok", "okay", "ji", "जी", "mm", "hmm")

var noWords = words(
	"no", "nope", "nah", "not", "wrong", "nahi", "nahin", "nai", "illa", "illai", "ledu", "kaadu", "alla", "beda", "nako",
	"नहीं", "नही", "नाही", "नको", "இல்லை", "இல்ல", "లేదు", "కాదు", "ಇಲ್ಲ", "ಅಲ್ಲ",
)

// noPhrases are negative replies whose words are not negative on their own
var noPhrases = []string{"wrong number", "not me", "someone else", "galat number", "ग़लत नंबर", "गलत नंबर"}

// yesPhrases neutralize negative words used politely
var yesPhrases = []string{"no problem", "no worries", "no issue", "not a problem", "koi baat nahi", "कोई बात नहीं"}

// ClassifyYesNo reads a reply to a yes/no prompt. A reply carrying both
// polarities is unresolved.
func ClassifyYesNo(text string) Answer {
	norm := strings.Join(language.Tokenize(text), " ")
	if norm == "" {
		return Unresolved
	}
	for _, p := range yesPhrases {
		norm = strings.ReplaceAll(norm, p, "")
	}

	yes, no, weak := false, false, false
	for _, p := range noPhrases {
		if strings.Contains(norm, p) {
			no = true
		}
	}
	for _, w := range strings.Fields(norm) {
		switch {
		case yesWords[w]:
			yes = true
		case noWords[w]:
			no = true
		case weakYes[w]:
			weak = true
		}
	}

	switch {
	case yes && no:
		return Unresolved
	case no:
		return Negative
	case yes || weak:
		return Affirmative
	}
	return Unresolved
}

var refusalPhrases = []string{
	"cant pay", "cannot pay", "wont pay", "will not pay", "not going to pay", "not paying", "refuse to pay",
	"no money", "dont have money", "dont have the money", "unable to pay", "cant afford", "cannot afford",
	"lost my job", "no job", "stop calling", "dont call",
	"paisa nahi", "paise nahi", "nahi dunga", "nahi de sakta", "nahi de sakti", "nahi bharunga", "nahi kar sakta",
	"panam illa", "panam illai", "kattamudiyathu", "dabbulu levu", "dabbulu ledu", "hana illa", "paise nahit",
	"पैसे नहीं", "पैसा नहीं", "नहीं दूंगा", "नहीं दे सकता", "नहीं दे सकती", "पैसे नाहीत", "भरणार नाही",
	"பணம் இல்லை", "கட்ட முடியாது", "డబ్బులు లేవు", "కట్టలేను", "ಹಣ ಇಲ್ಲ", "ಕಟ್ಟಲು ಆಗಲ್ಲ",
}

var negations = words(
	"not", "no", "never", "cant", "cannot", "wont", "dont", "unable", "nahi", "nahin", "illa", "illai", "ledu", "levu",
	"beda", "nako", "mudiyathu", "नहीं", "नही", "नाही", "नको", "இல்லை", "முடியாது", "లేదు", "లేవు", "ಇಲ್ಲ", "ಆಗಲ್ಲ",
)

var paymentTerms = words(
	"pay", "paying", "payment", "money", "emi", "amount", "installment", "instalment", "dues",
	"paisa", "paise", "bharna", "bharunga", "panam", "kattu", "dabbulu", "hana",
	"पैसे", "पैसा", "भुगतान", "ईएमआई", "भरणार", "பணம்", "கட்ட", "డబ్బులు", "డబ్బు", "ಹಣ",
)

// IsRefusal reports whether the caller is declining to pay: an explicit
// refusal phrase, or a negation together with a payment term.
func IsRefusal(text string) bool {
	norm := strings.Join(language.Tokenize(text), " ")
	if norm == "" {
		return false
	}
	for _, p := range yesPhrases {
		norm = strings.ReplaceAll(norm, p, "")
	}
	for _, p := range refusalPhrases {
		if strings.Contains(norm, p) {
			return true
		}
	}

	negated, payment := false, false
	for _, w := range strings.Fields(norm) {
		if negations[w] {
			negated = true
		}
		if paymentTerms[w] {
			payment = true
		}
	}
	return negated && payment
}

// Package language decides which language a caller is speaking from a
// transcript alone. It never calls out; the same input always yields the
// same answer.
package language

import (
	"strings"
	"unicode"
)

// Code is an ISO-639-1 language code
type Code string

const (
	English   Code = "en"
	Hindi     Code = "hi"
	Tamil     Code = "ta"
	Telugu    Code = "te"
	Kannada   Code = "kn"
	Malayalam Code = "ml"
	Marathi   Code = "mr"
	Bengali   Code = "bn"
	Gujarati  Code = "gu"
	Punjabi   Code = "pa"
)

// Source records which rule decided the language
type Source string

const (
	SourceScript   Source = "script"
	SourceKeyword  Source = "keyword"
	SourceEnglish  Source = "stopwords"
	SourceResident Source = "residence"
	SourceDefault  Source = "default"
)

// Result is the outcome of Identify
type Result struct {
	Lang   Code
	Source Source
}

// Parse normalizes a code or language name ("hi", "Hindi", "hi-IN")
func Parse(s string) (Code, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	if c, ok := names[s]; ok {
		return c, true
	}
	c := Code(s)
	for _, known := range All {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// All lists every language the identifier can return
var All = []Code{English, Hindi, Tamil, Telugu, Kannada, Malayalam, Marathi, Bengali, Gujarati, Punjabi}

// Name is the English name of the language, used in model instructions
func (c Code) Name() string {
	if n, ok := displayNames[c]; ok {
		return n
	}
	return string(c)
}

var displayNames = map[Code]string{
	English: "English", Hindi: "Hindi", Tamil: "Tamil", Telugu: "Telugu", Kannada: "Kannada",
	Malayalam: "Malayalam", Marathi: "Marathi", Bengali: "Bengali", Gujarati: "Gujarati", Punjabi: "Punjabi",
}

var names = map[string]Code{
	"english": English, "hindi": Hindi, "tamil": Tamil, "telugu": Telugu,
	"kannada": Kannada, "malayalam": Malayalam, "marathi": Marathi,
	"bengali": Bengali, "bangla": Bengali, "gujarati": Gujarati, "punjabi": Punjabi,
}

var scripts = []struct {
	table *unicode.RangeTable
	lang  Code
}{
	{unicode.Tamil, Tamil},
	{unicode.Telugu, Telugu},
	{unicode.Kannada, Kannada},
	{unicode.Malayalam, Malayalam},
	{unicode.Bengali, Bengali},
	{unicode.Gujarati, Gujarati},
	{unicode.Gurmukhi, Punjabi},
	{unicode.Devanagari, Hindi},
}

// Identifier applies the precedence: unicode script, keyword vocabulary,
// English stop-word majority, state of residence, default.
type Identifier struct {
	fallback Code
}

// NewIdentifier returns an identifier with the given system default
func NewIdentifier(fallback Code) *Identifier {
	if fallback == "" {
		fallback = English
	}
	return &Identifier{fallback: fallback}
}

// Default returns the system-wide default language
func (id *Identifier) Default() Code {
	return id.fallback
}

// Identify decides the language of text. residence is the caller's state
// of residence from the customer record and may be empty.
func (id *Identifier) Identify(text, residence string) Result {
	if lang, ok := byScript(text); ok {
		// Marathi and Hindi share Devanagari; the vocabulary tells them apart.
		if lang == Hindi {
			if kw, ok := byKeyword(text); ok && kw == Marathi {
				return Result{Lang: Marathi, Source: SourceScript}
			}
		}
		return Result{Lang: lang, Source: SourceScript}
	}

	if lang, ok := byKeyword(text); ok {
		return Result{Lang: lang, Source: SourceKeyword}
	}

	if mostlyEnglish(text) {
		return Result{Lang: English, Source: SourceEnglish}
	}

	if lang, ok := ForState(residence); ok {
		return Result{Lang: lang, Source: SourceResident}
	}

	return Result{Lang: id.fallback, Source: SourceDefault}
}

// byScript returns the language of the dominant Indic script, if any.
func byScript(text string) (Code, bool) {
	counts := make(map[Code]int)
	for _, r := range text {
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[s.lang]++
				break
			}
		}
	}

	best, bestN := Code(""), 0
	for _, s := range scripts {
		if n := counts[s.lang]; n > bestN {
			best, bestN = s.lang, n
		}
	}
	return best, bestN > 0
}

// byKeyword scores each language's closed vocabulary; the highest score
// wins and ties go to the earlier language in keywordOrder.
func byKeyword(text string) (Code, bool) {
	words := Tokenize(text)
	if len(words) == 0 {
		return "", false
	}

	best, bestN := Code(""), 0
	for _, lang := range keywordOrder {
		vocab := keywords[lang]
		n := 0
		for _, w := range words {
			if vocab[w] {
				n++
			}
		}
		if n > bestN {
			best, bestN = lang, n
		}
	}
	return best, bestN > 0
}

// mostlyEnglish reports whether a strict majority of the Latin words are
// English stop words or common replies.
func mostlyEnglish(text string) bool {
	words := Tokenize(text)
	latin, hits := 0, 0
	for _, w := range words {
		if !isLatin(w) {
			continue
		}
		latin++
		if englishStopWords[w] {
			hits++
		}
	}
	return latin > 0 && hits*2 > latin
}

func isLatin(w string) bool {
	for _, r := range w {
		if r > unicode.MaxLatin1 {
			return false
		}
	}
	return true
}

// Tokenize lowercases text and splits it into words, dropping punctuation.
// Apostrophes are removed so "can't" and "cant" match the same entry.
func Tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "'", ""))
	text = strings.ReplaceAll(text, "’", "")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r)
	})
}

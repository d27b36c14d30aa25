package dialogue

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Status is the outcome the model attaches to each turn
type Status string

const (
	StatusContinue Status = "continue"
	StatusPromise  Status = "promise"
	StatusEscalate Status = "escalate"
)

var (
	tagRe   = regexp.MustCompile(`(?i)\[\s*(?:status\s*[:=]\s*)?(continue|promise|escalate)\s*\]`)
	fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	spaceRe = regexp.MustCompile(`\s+`)
)

// ParseStatus splits a model reply into the text to speak and its status.
// It accepts an inline [tag] anywhere in the text (the last one wins), the
// legacy {"response": ..., "status": ...} object, or no tag at all, which
// means continue. A promise phrased as a question is downgraded to
// continue.
func ParseStatus(raw string) (string, Status) {
	text := strings.TrimSpace(raw)
	status := StatusContinue

	if body, st, ok := parseLegacy(text); ok {
		text, status = body, st
	}

	if matches := tagRe.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		status = Status(strings.ToLower(matches[len(matches)-1][1]))
		text = tagRe.ReplaceAllString(text, " ")
	}
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))

	if status == StatusPromise && endsWithQuestion(text) {
		status = StatusContinue
	}
	return text, status
}

func parseLegacy(text string) (string, Status, bool) {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if !strings.HasPrefix(text, "{") {
		return "", "", false
	}
	var legacy struct {
		Response *string `json:"response"`
		Status   string  `json:"status"`
	}
	if err := json.Unmarshal([]byte(text), &legacy); err != nil || legacy.Response == nil {
		return "", "", false
	}
	return strings.TrimSpace(*legacy.Response), normalize(legacy.Status), true
}

func normalize(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPromise:
		return StatusPromise
	case StatusEscalate:
		return StatusEscalate
	default:
		return StatusContinue
	}
}

func endsWithQuestion(text string) bool {
	text = strings.TrimRight(text, " \"')")
	return strings.HasSuffix(text, "?") || strings.HasSuffix(text, "？")
}

package language

import "testing"

func TestIdentifier_Identify(t *testing.T) {
	id := NewIdentifier(English)

	tests := []struct {
		name      string
		text      string
		residence string
		want      Code
		source    Source
	}{
		{name: "tamil script", text: "ஆமாம், நான் தான்", want: Tamil, source: SourceScript},
		{name: "telugu script", text: "అవును", want: Telugu, source: SourceScript},
		{name: "kannada script", text: "ಹೌದು ಸರ್", want: Kannada, source: SourceScript},
		{name: "bengali script", text: "হ্যাঁ আমি", want: Bengali, source: SourceScript},
		{name: "hindi devanagari", text: "हाँ, मैं कल पैसे दूंगा", want: Hindi, source: SourceScript},
		{name: "marathi devanagari", text: "मी उद्या भरणार आहे", want: Marathi, source: SourceScript},
		{name: "script beats residence", text: "हाँ जी", residence: "Tamil Nadu", want: Hindi, source: SourceScript},
		{name: "romanized hindi", text: "haan ji, main kal paise de dunga", want: Hindi, source: SourceKeyword},
		{name: "romanized tamil", text: "aama, naalai kattuven", want: Tamil, source: SourceKeyword},
		{name: "romanized telugu", text: "avunu, repu kadutanu", want: Telugu, source: SourceKeyword},
		{name: "english majority", text: "I cannot pay this month", want: English, source: SourceEnglish},
		{name: "english yes", text: "Yes.", want: English, source: SourceEnglish},
		{name: "residence fallback", text: "Vijay", residence: "Karnataka", want: Kannada, source: SourceResident},
		{name: "residence abbreviation", text: "Ravi", residence: "TN", want: Tamil, source: SourceResident},
		{name: "default", text: "Vijay", want: English, source: SourceDefault},
		{name: "empty", text: "", want: English, source: SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := id.Identify(tt.text, tt.residence)
			if got.Lang != tt.want || got.Source != tt.source {
				t.Errorf("Identify(%q, %q) = %+v, want {%s %s}", tt.text, tt.residence, got, tt.want, tt.source)
			}
		})
	}
}

func TestIdentifier_Deterministic(t *testing.T) {
	id := NewIdentifier(Hindi)
	first := id.Identify("sari sari", "")
	for i := 0; i < 20; i++ {
		if got := id.Identify("sari sari", ""); got != first {
			t.Fatalf("Identify() not deterministic: %+v vs %+v", got, first)
		}
	}
	if first.Lang != Tamil {
		t.Errorf("tie should go to Tamil, got %s", first.Lang)
	}
}

func TestIdentifier_DefaultLanguage(t *testing.T) {
	if got := NewIdentifier("").Default(); got != English {
		t.Errorf("Default() = %s, want en", got)
	}
	if got := NewIdentifier(Hindi).Identify("Vijay", "").Lang; got != Hindi {
		t.Errorf("configured default not used: %s", got)
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Code{
		"hi":     Hindi,
		"Hindi":  Hindi,
		"hi-IN":  Hindi,
		" TAMIL": Tamil,
		"en_US":  English,
	}
	for in, want := range tests {
		got, ok := Parse(in)
		if !ok || got != want {
			t.Errorf("Parse(%q) = %q, %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := Parse("klingon"); ok {
		t.Error("Parse(klingon) should fail")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("I can't pay, sorry!")
	want := []string{"i", "cant", "pay", "sorry"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

package language

import "strings"

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// keywordOrder breaks ties between vocabularies
var keywordOrder = []Code{Hindi, Tamil, Telugu, Kannada, Malayalam, Marathi, Bengali, Gujarati, Punjabi}

// keywords are closed vocabularies of words callers actually say on
// collection calls, romanized and in native script.
var keywords = map[Code]map[string]bool{
	Hindi: set(
		"haan", "haanji", "han", "nahi", "nahin", "kya", "hai", "hain", "aap", "kal", "paisa", "paise",
		"abhi", "theek", "thik", "accha", "acha", "karunga", "karungi", "dunga", "dungi", "mera", "meri",
		"hoon", "hu", "sakta", "sakti", "baad", "bhej", "kab", "kaun", "bolo", "boliye", "namaste",
		"है", "हैं", "नहीं", "हाँ", "हां", "मैं", "आप", "कल", "क्या", "पैसा", "पैसे", "जी", "करूंगा", "दूंगा", "अभी", "ठीक",
	),
	Tamil: set(
		"aama", "aamam", "illa", "illai", "panam", "seri", "sari", "enna", "naan", "ungal", "romba",
		"vanakkam", "kadan", "naalai", "mudiyathu", "mudiyadhu", "kodukka", "kattuven", "kattren",
	),
	Telugu: set(
		"avunu", "ledu", "kaadu", "dabbulu", "nenu", "meeru", "enti", "repu", "cheyyanu", "kattanu",
		"kadutanu", "namaskaram", "sare", "ikkada", "baaki",
	),
	Kannada: set(
		"houdu", "hoodu", "beda", "hana", "naanu", "neevu", "naale", "kodalla", "kodthini", "namaskara",
		"yenu", "gottilla", "sari", "swalpa",
	),
	Malayalam: set(
		"athe", "njan", "ningal", "pattilla", "venda", "sheri", "enthu", "kashu", "naale", "tharam",
		"ariyilla", "illallo",
	),
	Marathi: set(
		"nako", "mi", "tumhi", "udya", "kay", "aahe", "bharnar", "pahije", "kasa", "barobar", "hoy",
		"आहे", "नाही", "नको", "मी", "तुम्ही", "उद्या", "काय", "भरणार", "बरोबर", "होय", "करतो",
	),
	Bengali: set(
		"ami", "apni", "taka", "korbo", "dite", "parbo", "nei", "achhe", "bhalo", "hyan", "kintu", "kobe",
	),
	Gujarati: set(
		"tame", "kale", "aapish", "nathi", "chhe", "kem", "majama", "rupiya", "bharis",
	),
	Punjabi: set(
		"tusi", "tuhada", "karanga", "sakda", "dewanga", "haanji", "sat", "sri", "akal", "kiddan",
	),
}

var englishStopWords = set(
	"the", "a", "an", "is", "are", "am", "i", "im", "you", "he", "she", "it", "we", "they", "me", "my",
	"your", "to", "of", "in", "on", "for", "with", "and", "or", "but", "not", "no", "yes", "yeah", "ok",
	"okay", "will", "can", "cant", "cannot", "wont", "do", "dont", "did", "didnt", "have", "has", "had",
	"this", "that", "what", "when", "where", "why", "how", "who", "please", "sorry", "speaking", "be",
	"was", "were", "sure", "right", "now", "tomorrow", "today", "pay", "paid", "money", "hello", "hi",
	"thank", "thanks", "just", "so", "if", "at", "by", "from", "up", "out", "about", "would", "should",
	"could", "there", "here", "all", "any", "some", "call", "later", "week", "month", "time", "next",
	"speak", "talk", "him", "her", "them", "our", "us", "need", "want", "know", "think", "wrong", "number",
	"person", "afford", "job", "salary", "amount", "loan", "emi", "again", "bye", "good", "fine", "able",
)

var stateLanguages = map[string]Code{
	"tamil nadu":        Tamil,
	"puducherry":        Tamil,
	"pondicherry":       Tamil,
	"andhra pradesh":    Telugu,
	"telangana":         Telugu,
	"karnataka":         Kannada,
	"kerala":            Malayalam,
	"maharashtra":       Marathi,
	"goa":               Marathi,
	"west bengal":       Bengali,
	"tripura":           Bengali,
	"gujarat":           Gujarati,
	"punjab":            Punjabi,
	"uttar pradesh":     Hindi,
	"madhya pradesh":    Hindi,
	"bihar":             Hindi,
	"rajasthan":         Hindi,
	"haryana":           Hindi,
	"delhi":             Hindi,
	"jharkhand":         Hindi,
	"chhattisgarh":      Hindi,
	"uttarakhand":       Hindi,
	"himachal pradesh":  Hindi,
	"chandigarh":        Hindi,
	"jammu and kashmir": Hindi,
}

var stateAbbrev = map[string]string{
	"tn": "tamil nadu", "ap": "andhra pradesh", "ts": "telangana", "tg": "telangana", "ka": "karnataka",
	"kl": "kerala", "mh": "maharashtra", "wb": "west bengal", "gj": "gujarat", "pb": "punjab",
	"up": "uttar pradesh", "mp": "madhya pradesh", "br": "bihar", "rj": "rajasthan", "hr": "haryana",
	"dl": "delhi",
}

// ForState maps an Indian state name or postal abbreviation to its
// primary language.
func ForState(state string) (Code, bool) {
	s := strings.Join(strings.Fields(strings.ToLower(state)), " ")
	if s == "" {
		return "", false
	}
	if full, ok := stateAbbrev[s]; ok {
		s = full
	}
	s = strings.ReplaceAll(s, "&", "and")
	lang, ok := stateLanguages[s]
	return lang, ok
}

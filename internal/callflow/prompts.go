package callflow

import (
	"fmt"
	"time"

	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/utils"
)

// Lines are the fixed things the agent says in one language. Confirm,
// Greeting and Reminder are format strings: %[1]s name or amount,
// %[2]s loan suffix, %[3]s due date.
type Lines struct {
	Confirm         string
	Connecting      string
	WrongPerson     string
	Unclear         string
	StillThere      string
	Apology         string
	Escalation      string
	WatchdogClose   string
	NoResponseClose string
	Greeting        string
	Reminder        string
	Transferring    string
	DeclineGoodbye  string
	DueUnknown      string
	DateLayout      string
}

var catalog = map[language.Code]Lines{
	language.English: {
		Confirm:         "Hello, this is Priya calling from Troika Finance. Am I speaking with %[1]s, regarding the loan account ending in %[2]s?",
		Connecting:      "Thank you for confirming. Let me quickly go over your account.",
		WrongPerson:     "I'm sorry for the trouble. We will update our records. Have a good day.",
		Unclear:         "Sorry, I didn't catch that. ",
		StillThere:      "Are you still there? ",
		Apology:         "I'm sorry, I had trouble hearing that. Could you please repeat?",
		Escalation:      "I understand. I'm connecting you to one of our officers who can help you further. Please stay on the line.",
		WatchdogClose:   "We have run out of time on this call. An officer will follow up with you shortly. Thank you.",
		NoResponseClose: "I'm unable to hear you. We will call you back later. Thank you.",
		Greeting:        "Hello %[1]s, this is a call from Troika Finance about your loan. How are you today?",
		Reminder:        "Your EMI of rupees %[1]s for the loan ending in %[2]s is due on %[3]s. Would you like to speak to an agent about it?",
		Transferring:    "Please hold while I transfer you to an agent.",
		DeclineGoodbye:  "No problem. Please make the payment before the due date. Thank you and goodbye.",
		DueUnknown:      "the upcoming due date",
		DateLayout:      "2 January 2006",
	},
	language.Hindi: {
		Confirm:         "नमस्ते, मैं ट्रोइका फाइनेंस से प्रिया बोल रही हूँ। क्या मेरी बात %[1]s जी से हो रही है, जिनका लोन अकाउंट %[2]s पर खत्म होता है?",
		Connecting:      "पुष्टि करने के लिए धन्यवाद। मैं आपके अकाउंट की जानकारी देती हूँ।",
		WrongPerson:     "असुविधा के लिए माफ़ी चाहती हूँ। हम अपना रिकॉर्ड अपडेट कर देंगे। आपका दिन शुभ हो।",
		Unclear:         "माफ़ कीजिए, मैं समझ नहीं पाई। ",
		StillThere:      "क्या आप लाइन पर हैं? ",
		Apology:         "माफ़ कीजिए, आवाज़ साफ़ नहीं आई। क्या आप दोबारा बोल सकते हैं?",
		Escalation:      "मैं समझती हूँ। मैं आपको हमारे एक अधिकारी से जोड़ रही हूँ, कृपया लाइन पर बने रहें।",
		WatchdogClose:   "इस कॉल का समय समाप्त हो गया है। हमारे अधिकारी जल्द ही आपसे संपर्क करेंगे। धन्यवाद।",
		NoResponseClose: "मुझे आपकी आवाज़ नहीं आ रही है। हम आपको बाद में कॉल करेंगे। धन्यवाद।",
		Greeting:        "नमस्ते %[1]s जी, ट्रोइका फाइनेंस की ओर से आपके लोन के बारे में कॉल है। आप कैसे हैं?",
		Reminder:        "आपके लोन अकाउंट %[2]s की रुपये %[1]s की EMI %[3]s को देय है। क्या आप किसी एजेंट से बात करना चाहेंगे?",
		Transferring:    "कृपया होल्ड करें, मैं आपको एजेंट से जोड़ रही हूँ।",
		DeclineGoodbye:  "कोई बात नहीं। कृपया नियत तारीख से पहले भुगतान कर दें। धन्यवाद।",
		DueUnknown:      "नियत तारीख",
		DateLayout:      "02/01/2006",
	},
	language.Tamil: {
		Confirm:         "வணக்கம், ட்ராய்கா ஃபைனான்ஸிலிருந்து பிரியா பேசுகிறேன். %[2]s இல் முடியும் கடன் கணக்கு தொடர்பாக %[1]s அவர்களிடம் பேசுகிறேனா?",
		Connecting:      "உறுதிப்படுத்தியதற்கு நன்றி. உங்கள் கணக்கு விவரங்களைச் சொல்கிறேன்.",
		WrongPerson:     "சிரமத்திற்கு மன்னிக்கவும். எங்கள் பதிவுகளைப் புதுப்பிக்கிறோம். நன்றி.",
		Unclear:         "மன்னிக்கவும், எனக்குப் புரியவில்லை. ",
		StillThere:      "நீங்கள் லைனில் இருக்கிறீர்களா? ",
		Apology:         "மன்னிக்கவும், சரியாகக் கேட்கவில்லை. மீண்டும் சொல்ல முடியுமா?",
		Escalation:      "புரிகிறது. உங்களுக்கு உதவ எங்கள் அதிகாரியுடன் இணைக்கிறேன். தயவுசெய்து லைனில் இருங்கள்.",
		WatchdogClose:   "இந்த அழைப்பின் நேரம் முடிந்துவிட்டது. எங்கள் அதிகாரி விரைவில் தொடர்பு கொள்வார். நன்றி.",
		NoResponseClose: "உங்கள் குரல் கேட்கவில்லை. பிறகு அழைக்கிறோம். நன்றி.",
		Greeting:        "வணக்கம் %[1]s, உங்கள் கடன் தொடர்பாக ட்ராய்கா ஃபைனான்ஸிலிருந்து அழைக்கிறோம். எப்படி இருக்கிறீர்கள்?",
		Reminder:        "%[2]s இல் முடியும் உங்கள் கடனுக்கான ரூபாய் %[1]s EMI %[3]s அன்று செலுத்த வேண்டும். ஒரு முகவருடன் பேச விரும்புகிறீர்களா?",
		Transferring:    "காத்திருங்கள், உங்களை ஒரு முகவருடன் இணைக்கிறேன்.",
		DeclineGoodbye:  "பரவாயில்லை. தயவுசெய்து கடைசி தேதிக்கு முன் செலுத்துங்கள். நன்றி.",
		DueUnknown:      "கடைசி தேதி",
		DateLayout:      "02/01/2006",
	},
	language.Telugu: {
		Confirm:         "నమస్కారం, ట్రోయికా ఫైనాన్స్ నుండి ప్రియ మాట్లాడుతున్నాను. %[2]s తో ముగిసే లోన్ ఖాతా గురించి నేను %[1]s గారితో మాట్లాడుతున్నానా?",
		Connecting:      "ధృవీకరించినందుకు ధన్యవాదాలు. మీ ఖాతా వివరాలు చెబుతాను.",
		WrongPerson:     "ఇబ్బందికి క్షమించండి. మా రికార్డులను సరిచేస్తాము. ధన్యవాదాలు.",
		Unclear:         "క్షమించండి, నాకు అర్థం కాలేదు. ",
		StillThere:      "మీరు లైన్‌లో ఉన్నారా? ",
		Apology:         "క్షమించండి, సరిగా వినిపించలేదు. దయచేసి మళ్ళీ చెప్పగలరా?",
		Escalation:      "అర్థమైంది. మీకు సహాయం చేయడానికి మా అధికారితో కలుపుతున్నాను. దయచేసి లైన్‌లో ఉండండి.",
		WatchdogClose:   "ఈ కాల్ సమయం ముగిసింది. మా అధికారి త్వరలో మిమ్మల్ని సంప్రదిస్తారు. ధన్యవాదాలు.",
		NoResponseClose: "మీ మాట వినిపించడం లేదు. తర్వాత కాల్ చేస్తాము. ధన్యవాదాలు.",
		Greeting:        "నమస్కారం %[1]s గారు, మీ లోన్ గురించి ట్రోయికా ఫైనాన్స్ నుండి కాల్ చేస్తున్నాము. మీరు ఎలా ఉన్నారు?",
		Reminder:        "%[2]s తో ముగిసే మీ లోన్ కు రూ. %[1]s EMI %[3]s న చెల్లించాలి. మీరు ఏజెంట్‌తో మాట్లాడాలనుకుంటున్నారా?",
		Transferring:    "దయచేసి వేచి ఉండండి, మిమ్మల్ని ఏజెంట్‌కు కలుపుతున్నాను.",
		DeclineGoodbye:  "పర్వాలేదు. దయచేసి గడువు తేదీకి ముందు చెల్లించండి. ధన్యవాదాలు.",
		DueUnknown:      "గడువు తేదీ",
		DateLayout:      "02/01/2006",
	},
	language.Kannada: {
		Confirm:         "ನಮಸ್ಕಾರ, ಟ್ರೋಯಿಕಾ ಫೈನಾನ್ಸ್‌ನಿಂದ ಪ್ರಿಯಾ ಮಾತನಾಡುತ್ತಿದ್ದೇನೆ. %[2]s ರಲ್ಲಿ ಕೊನೆಗೊಳ್ಳುವ ಸಾಲದ ಖಾತೆಯ ಬಗ್ಗೆ ನಾನು %[1]s ಅವರೊಂದಿಗೆ ಮಾತನಾಡುತ್ತಿದ್ದೇನೆಯೇ?",
		Connecting:      "ದೃಢಪಡಿಸಿದ್ದಕ್ಕೆ ಧನ್ಯವಾದಗಳು. ನಿಮ್ಮ ಖಾತೆಯ ವಿವರಗಳನ್ನು ಹೇಳುತ್ತೇನೆ.",
		WrongPerson:     "ತೊಂದರೆಗಾಗಿ ಕ್ಷಮಿಸಿ. ನಮ್ಮ ದಾಖಲೆಗಳನ್ನು ಸರಿಪಡಿಸುತ್ತೇವೆ. ಧನ್ಯವಾದಗಳು.",
		Unclear:         "ಕ್ಷಮಿಸಿ, ನನಗೆ ಅರ್ಥವಾಗಲಿಲ್ಲ. ",
		StillThere:      "ನೀವು ಲೈನ್‌ನಲ್ಲಿದ್ದೀರಾ? ",
		Apology:         "ಕ್ಷಮಿಸಿ, ಸರಿಯಾಗಿ ಕೇಳಿಸಲಿಲ್ಲ. ದಯವಿಟ್ಟು ಮತ್ತೊಮ್ಮೆ ಹೇಳುತ್ತೀರಾ?",
		Escalation:      "ಅರ್ಥವಾಯಿತು. ನಿಮಗೆ ಸಹಾಯ ಮಾಡಲು ನಮ್ಮ ಅಧಿಕಾರಿಯೊಂದಿಗೆ ಸಂಪರ್ಕಿಸುತ್ತಿದ್ದೇನೆ. ದಯವಿಟ್ಟು ಲೈನ್‌ನಲ್ಲಿರಿ.",
		WatchdogClose:   "ಈ ಕರೆಯ ಸಮಯ ಮುಗಿದಿದೆ. ನಮ್ಮ ಅಧಿಕಾರಿ ಶೀಘ್ರದಲ್ಲೇ ಸಂಪರ್ಕಿಸುತ್ತಾರೆ. ಧನ್ಯವಾದಗಳು.",
		NoResponseClose: "ನಿಮ್ಮ ಧ್ವನಿ ಕೇಳಿಸುತ್ತಿಲ್ಲ. ನಂತರ ಕರೆ ಮಾಡುತ್ತೇವೆ. ಧನ್ಯವಾದಗಳು.",
		Greeting:        "ನಮಸ್ಕಾರ %[1]s, ನಿಮ್ಮ ಸಾಲದ ಬಗ್ಗೆ ಟ್ರೋಯಿಕಾ ಫೈನಾನ್ಸ್‌ನಿಂದ ಕರೆ ಮಾಡುತ್ತಿದ್ದೇವೆ. ಹೇಗಿದ್ದೀರಿ?",
		Reminder:        "%[2]s ರಲ್ಲಿ ಕೊನೆಗೊಳ್ಳುವ ನಿಮ್ಮ ಸಾಲದ ರೂ. %[1]s EMI %[3]s ರಂದು ಪಾವತಿಸಬೇಕು. ನೀವು ಏಜೆಂಟ್‌ನೊಂದಿಗೆ ಮಾತನಾಡಲು ಬಯಸುವಿರಾ?",
		Transferring:    "ದಯವಿಟ್ಟು ಕಾಯಿರಿ, ನಿಮ್ಮನ್ನು ಏಜೆಂಟ್‌ಗೆ ಸಂಪರ್ಕಿಸುತ್ತಿದ್ದೇನೆ.",
		DeclineGoodbye:  "ಪರವಾಗಿಲ್ಲ. ದಯವಿಟ್ಟು ಕೊನೆಯ ದಿನಾಂಕದ ಮೊದಲು ಪಾವತಿಸಿ. ಧನ್ಯವಾದಗಳು.",
		DueUnknown:      "ಕೊನೆಯ ದಿನಾಂಕ",
		DateLayout:      "02/01/2006",
	},
	language.Marathi: {
		Confirm:         "नमस्कार, मी ट्रोइका फायनान्सकडून प्रिया बोलत आहे. %[2]s ने संपणाऱ्या कर्ज खात्याबद्दल मी %[1]s यांच्याशी बोलत आहे का?",
		Connecting:      "खात्री केल्याबद्दल धन्यवाद. मी तुमच्या खात्याची माहिती सांगते.",
		WrongPerson:     "त्रासाबद्दल क्षमस्व. आम्ही आमच्या नोंदी दुरुस्त करू. धन्यवाद.",
		Unclear:         "माफ करा, मला समजले नाही. ",
		StillThere:      "तुम्ही लाइनवर आहात का? ",
		Apology:         "माफ करा, नीट ऐकू आले नाही. कृपया पुन्हा सांगाल का?",
		Escalation:      "मी समजू शकते. मी तुम्हाला आमच्या अधिकाऱ्यांशी जोडत आहे, कृपया लाइनवर रहा.",
		WatchdogClose:   "या कॉलची वेळ संपली आहे. आमचे अधिकारी लवकरच तुमच्याशी संपर्क साधतील. धन्यवाद.",
		NoResponseClose: "मला तुमचा आवाज ऐकू येत नाही. आम्ही तुम्हाला नंतर कॉल करू. धन्यवाद.",
		Greeting:        "नमस्कार %[1]s, तुमच्या कर्जाबद्दल ट्रोइका फायनान्सकडून कॉल आहे. तुम्ही कसे आहात?",
		Reminder:        "%[2]s ने संपणाऱ्या तुमच्या कर्जाचा रुपये %[1]s चा EMI %[3]s रोजी देय आहे. तुम्हाला एजंटशी बोलायचे आहे का?",
		Transferring:    "कृपया थांबा, मी तुम्हाला एजंटशी जोडत आहे.",
		DeclineGoodbye:  "काही हरकत नाही. कृपया देय तारखेपूर्वी भरणा करा. धन्यवाद.",
		DueUnknown:      "देय तारीख",
		DateLayout:      "02/01/2006",
	},
}

// HasLines reports whether lang has its own catalog entry
func HasLines(lang language.Code) bool {
	_, ok := catalog[lang]
	return ok
}

// LinesFor returns the catalog for lang, falling back to English
func LinesFor(lang language.Code) Lines {
	if l, ok := catalog[lang]; ok {
		return l
	}
	return catalog[language.English]
}

// ConfirmPrompt asks the caller to confirm who they are
func (l Lines) ConfirmPrompt(p *session.CallParticipant) string {
	return fmt.Sprintf(l.Confirm, p.Name, p.LoanSuffix())
}

// GreetingPrompt opens the scripted flow
func (l Lines) GreetingPrompt(p *session.CallParticipant) string {
	return fmt.Sprintf(l.Greeting, p.FirstName())
}

// ReminderPrompt states the EMI and offers an agent
func (l Lines) ReminderPrompt(p *session.CallParticipant) string {
	return fmt.Sprintf(l.Reminder, utils.FormatINR(p.OutstandingAmount), p.LoanSuffix(), l.date(p.DueDate))
}

func (l Lines) date(t time.Time) string {
	if t.IsZero() {
		return l.DueUnknown
	}
	return t.Format(l.DateLayout)
}

package services

import (
	"strings"

	"widgetchat-backend/internal/nlu"
)

const defaultFallbackMessage = "Sorry, I can't answer that right now. Please try again in a moment."

// cannedReplies holds one deterministic reply per {intent, language}. "{{name}}" is
// replaced with the chatbot's display name.
var cannedReplies = map[nlu.IntentCategory]map[nlu.Language]string{
	nlu.IntentGreeting: {
		nlu.LangTurkish: "Merhaba! Ben {{name}}. Size nasıl yardımcı olabilirim?",
		nlu.LangEnglish: "Hello! I'm {{name}}. How can I help you today?",
	},
	nlu.IntentHelp: {
		nlu.LangTurkish: "Ben {{name}}. Sorularınızı yanıtlamak için buradayım. Ne öğrenmek istediğinizi kısaca yazmanız yeterli.",
		nlu.LangEnglish: "I'm {{name}}. I'm here to answer your questions. Just tell me briefly what you'd like to know.",
	},
	nlu.IntentVisa: {
		nlu.LangTurkish: "Vize başvurularında genellikle geçerli bir pasaport, kabul veya davet belgesi, finansal yeterlilik kanıtı, sağlık sigortası ve biyometrik fotoğraf istenir. " +
			"Başvuru süreleri ülkeye göre birkaç haftadan birkaç aya kadar değişebilir. Hangi ülke için vize almak istediğinizi yazarsanız daha net bilgi verebilirim.",
		nlu.LangEnglish: "Visa applications usually require a valid passport, an admission or invitation letter, proof of sufficient funds, health insurance and biometric photos. " +
			"Processing times range from a few weeks to a few months depending on the country. Tell me which country you are applying to and I can be more specific.",
	},
	nlu.IntentScholarship: {
		nlu.LangTurkish: "Yurt dışı burslarının çoğu akademik başarı, dil yeterliliği ve motivasyon mektubu ister; son başvuru tarihleri genellikle eğitim yılından 6 ila 12 ay öncedir. " +
			"Hedeflediğiniz ülkeyi ve bölümü paylaşırsanız uygun bursları birlikte inceleyebiliriz.",
		nlu.LangEnglish: "Most international scholarships look at academic results, language proficiency and a motivation letter, and deadlines are usually 6 to 12 months before the academic year. " +
			"Share the country and field you are aiming for and we can look at suitable scholarships together.",
	},
	nlu.IntentUniversity: {
		nlu.LangTurkish: "Üniversite seçerken bölüm içeriği, eğitim dili, öğrenim ücreti, yaşam maliyeti ve kabul şartlarını karşılaştırmanızı öneririm. " +
			"Hangi ülkede ve hangi alanda okumak istediğinizi yazarsanız size seçenekler önerebilirim.",
		nlu.LangEnglish: "When choosing a university, compare the programme content, language of instruction, tuition, cost of living and admission requirements. " +
			"Tell me the country and field you are interested in and I can suggest some options.",
	},
	nlu.IntentDocumentQuery: {
		nlu.LangTurkish: "Şu anda belgelerinize erişemiyorum. Lütfen sorunuzu biraz sonra tekrar deneyin ya da ilgili belgenin adını belirtin.",
		nlu.LangEnglish: "I can't reach your documents right now. Please try again shortly or mention the name of the document you are asking about.",
	},
	nlu.IntentGeneric: {
		nlu.LangTurkish: "Şu anda ayrıntılı bir yanıt veremiyorum. Sorunuzu biraz daha açarak tekrar yazabilir misiniz?",
		nlu.LangEnglish: "I can't give a detailed answer right now. Could you rephrase or add a little more detail to your question?",
	},
}

// cannedReply returns the template for intent in lang, falling back to the other
// language of the same intent, then to the chatbot's fallback message, then to a fixed
// default. The result is never empty.
func cannedReply(intent nlu.IntentCategory, lang nlu.Language, persona Persona) string {
	if byLang, ok := cannedReplies[intent]; ok {
		if text, ok := byLang[lang]; ok {
			return brand(text, persona.Name)
		}
		if text, ok := byLang[nlu.LangTurkish]; ok {
			return brand(text, persona.Name)
		}
	}
	if fb := strings.TrimSpace(persona.FallbackMessage); fb != "" {
		return fb
	}
	return defaultFallbackMessage
}

func brand(text, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "Asistan"
	}
	return strings.ReplaceAll(text, "{{name}}", name)
}

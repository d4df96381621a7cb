package tts

// edgeVoices maps language codes to Edge neural voices.
var edgeVoices = map[string]string{
	"ar":    "ar-SA-HamedNeural",
	"ar-EG": "ar-EG-SalmaNeural",
	"en":    "en-US-JennyNeural",
	"en-GB": "en-GB-SoniaNeural",
	"fr":    "fr-FR-DeniseNeural",
	"de":    "de-DE-KatjaNeural",
	"es":    "es-ES-ElviraNeural",
	"zh":    "zh-CN-XiaoxiaoNeural",
	"ja":    "ja-JP-NanamiNeural",
	"ko":    "ko-KR-SunHiNeural",
	"ru":    "ru-RU-SvetlanaNeural",
}

const defaultEdgeVoice = "en-US-JennyNeural"

// VoiceFor returns the Edge voice for a language, falling back to the
// default English voice.
func VoiceFor(language string) string {
	if v, ok := edgeVoices[language]; ok {
		return v
	}
	return defaultEdgeVoice
}

// coquiLangs maps our language codes onto Coqui XTTS language ids.
var coquiLangs = map[string]string{
	"ar": "ar",
	"en": "en",
	"fr": "fr",
	"de": "de",
	"es": "es",
	"zh": "zh-cn",
	"ja": "ja",
	"ko": "ko",
	"ru": "ru",
}

// coquiLangFor maps a language code to Coqui's id, defaulting to English.
func coquiLangFor(language string) string {
	if l, ok := coquiLangs[language]; ok {
		return l
	}
	return "en"
}

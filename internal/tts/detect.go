// Package tts synthesizes speech from recognized text through external
// engines: edge-tts (CPU, network API) and Coqui XTTS (GPU).
package tts

// detectThreshold is the fraction of text that must fall inside a script
// range before that script's language wins.
const detectThreshold = 0.1

// DetectLanguage guesses the language of text from character script
// ranges. Latin-dominant and empty text default to English.
func DetectLanguage(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return "en"
	}

	var arabic, chinese, japanese, korean, cyrillic int
	for _, r := range runes {
		switch {
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
		case r >= 0x4E00 && r <= 0x9FFF:
			chinese++
		case r >= 0x3040 && r <= 0x30FF:
			japanese++
		case r >= 0xAC00 && r <= 0xD7AF:
			korean++
		case r >= 0x0400 && r <= 0x04FF:
			cyrillic++
		}
	}

	total := float64(len(runes))
	switch {
	case float64(arabic)/total > detectThreshold:
		return "ar"
	case float64(chinese)/total > detectThreshold:
		return "zh"
	case float64(japanese)/total > detectThreshold:
		return "ja"
	case float64(korean)/total > detectThreshold:
		return "ko"
	case float64(cyrillic)/total > detectThreshold:
		return "ru"
	default:
		return "en"
	}
}

// Package tts defines the speech output channel.
package tts

import (
	"context"
	"strings"
)

// Speaker speaks text aloud on the device.
type Speaker interface {
	// Speak blocks until the utterance has finished playing. A device speaker
	// interrupts any utterance still playing when a new one starts. An
	// interrupted utterance, by CancelAll or by ctx, is not an error and
	// returns nil.
	Speak(ctx context.Context, text, lang string, rate float64) error

	// CancelAll silences the current utterance and drops any waiting ones.
	CancelAll()

	// VoiceAvailable reports whether a voice exists for the language code.
	VoiceAvailable(ctx context.Context, lang string) (bool, error)
}

// Language is a selectable narration language.
type Language struct {
	Code string
	Name string
}

// Languages are the narration languages offered to the user.
var Languages = []Language{
	{Code: "en-US", Name: "English (US)"},
	{Code: "en-GB", Name: "English (UK)"},
	{Code: "hi-IN", Name: "हिन्दी (Hindi)"},
	{Code: "kn-IN", Name: "ಕನ್ನಡ (Kannada)"},
	{Code: "te-IN", Name: "తెలుగు (Telugu)"},
	{Code: "es-ES", Name: "Español"},
	{Code: "fr-FR", Name: "Français"},
	{Code: "de-DE", Name: "Deutsch"},
	{Code: "ja-JP", Name: "日本語"},
	{Code: "zh-CN", Name: "中文"},
}

// LanguageName returns the display name for code, or code itself when the
// language is not in the list.
func LanguageName(code string) string {
	for _, l := range Languages {
		if strings.EqualFold(l.Code, code) {
			return l.Name
		}
	}
	return code
}

// MatchVoice reports whether any of the voice language tags serves lang:
// either an exact tag match or a voice whose tag starts with lang's primary
// subtag ("hi" for "hi-IN"). Comparison ignores case and '_' vs '-'.
func MatchVoice(voices []string, lang string) bool {
	lang = normalizeTag(lang)
	if lang == "" {
		return false
	}
	prefix, _, _ := strings.Cut(lang, "-")
	for _, v := range voices {
		v = normalizeTag(v)
		if v == lang || strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

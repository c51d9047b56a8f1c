package tts

import (
	"strings"

	"golang.org/x/text/language"
)

// VoiceCatalog resolves language requests against the platform's voice list.
// The list is read from the provider on every resolution because platforms
// populate it asynchronously.
type VoiceCatalog struct {
	provider VoiceProvider
}

// NewVoiceCatalog creates a catalog backed by provider. A nil provider
// yields a catalog that never resolves a voice.
func NewVoiceCatalog(provider VoiceProvider) *VoiceCatalog {
	return &VoiceCatalog{provider: provider}
}

// Voices returns the provider's current voice list.
func (c *VoiceCatalog) Voices() []Voice {
	if c == nil || c.provider == nil {
		return nil
	}
	return c.provider.Voices()
}

// Resolve picks a voice for the language tag. An exact preferred name wins
// regardless of language. Otherwise voices sharing the tag's base language
// are considered, preferring a local one. The second result is false when
// nothing matches and the caller should leave voice selection to the
// platform.
func (c *VoiceCatalog) Resolve(lang, preferred string) (Voice, bool) {
	voices := c.Voices()

	if preferred != "" {
		for _, v := range voices {
			if v.Name == preferred {
				return v, true
			}
		}
	}

	base := BaseLanguage(lang)
	if base == "" {
		return Voice{}, false
	}

	var matches []Voice
	for _, v := range voices {
		if BaseLanguage(v.Language) == base {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return Voice{}, false
	}

	for _, v := range matches {
		if v.LocalService {
			return v, true
		}
	}
	return matches[0], true
}

// BaseLanguage returns the lowercase primary language subtag of tag, so
// "en-GB", "en_US" and "EN" all yield "en".
func BaseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if t, err := language.Parse(strings.ReplaceAll(tag, "_", "-")); err == nil {
		if b, conf := t.Base(); conf != language.No {
			return b.String()
		}
	}
	// Fall back to a plain split for names the parser rejects.
	base, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
	return strings.ToLower(base)
}

package moderation

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/abadojack/whatlanggo"
)

// LanguageCensor picks the word list matching the detected language of the text.
// When detection is unreliable or the language has no list, every list is applied.
type LanguageCensor struct {
	byLanguage map[string]*Moderator
	all        *Moderator
	detect     func(text string) whatlanggo.Info
	log        *slog.Logger
}

func NewLanguageCensor(dictionaries Dictionaries, censoredChar rune, log *slog.Logger) (*LanguageCensor, error) {
	all, err := NewModerator(dictionaries.All(), censoredChar, log)
	if err != nil {
		return nil, err
	}
	byLanguage := make(map[string]*Moderator, len(dictionaries))
	for lang, words := range dictionaries {
		moderator, err := NewModerator(words, censoredChar, log)
		if err != nil {
			return nil, err
		}
		byLanguage[lang] = moderator
	}
	log.Info("Censored dictionaries loaded", "languages", slices.Sorted(maps.Keys(byLanguage)))
	return &LanguageCensor{byLanguage: byLanguage, all: all, detect: whatlanggo.Detect, log: log}, nil
}

func (c *LanguageCensor) Censor(text string) (string, []string) {
	moderator := c.all
	info := c.detect(text)
	if info.IsReliable() {
		if m, ok := c.byLanguage[info.Lang.Iso6391()]; ok {
			moderator = m
		}
	}
	censored, words := moderator.Censor(text)
	if len(words) > 0 {
		c.log.Debug("Message censored", "lang", info.Lang.Iso6391(), "words", len(words))
	}
	return censored, words
}

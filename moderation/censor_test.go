package moderation

import (
	"log/slog"
	"testing"
	"testing/fstest"

	"chat-relay/errors"

	"github.com/abadojack/whatlanggo"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded_Reads_Every_Language(t *testing.T) {
	req := require.New(t)

	dictionaries, err := LoadEmbedded()

	req.NoError(err)
	req.Contains(dictionaries, "en")
	req.Contains(dictionaries, "fr")
	req.NotEmpty(dictionaries.All())
}

func TestLoadAll_Skips_Blank_Lines_And_Other_Files(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"words/en.txt":    {Data: []byte("badger\r\n\r\n  snake \n")},
		"words/README.md": {Data: []byte("not a list")},
		"words/de.txt":    {Data: []byte("\n\n")},
	}

	dictionaries, err := LoadAll(fsys, "words")

	req.NoError(err)
	req.Equal(Dictionaries{"en": {"badger", "snake"}}, dictionaries)
}

func TestLoadAll_Without_Words(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"words/en.txt": {Data: []byte("")}}

	_, err := LoadAll(fsys, "words")

	req.ErrorIs(err, errors.ErrEmptyWords)
}

func newTestCensor(t *testing.T, info whatlanggo.Info) *LanguageCensor {
	t.Helper()
	censor, err := NewLanguageCensor(Dictionaries{
		"en": {"badger"},
		"fr": {"blaireau"},
	}, '#', logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	censor.detect = func(string) whatlanggo.Info { return info }
	return censor
}

func TestLanguageCensor_Uses_Detected_Language_List(t *testing.T) {
	req := require.New(t)
	censor := newTestCensor(t, whatlanggo.Info{Lang: whatlanggo.Fra, Confidence: 1})

	content, words := censor.Censor("blaireau badger")

	req.Equal("######## badger", content)
	req.Equal([]string{"blaireau"}, words)
}

func TestLanguageCensor_Falls_Back_To_All_Lists_When_Unreliable(t *testing.T) {
	req := require.New(t)
	censor := newTestCensor(t, whatlanggo.Info{Lang: whatlanggo.Fra, Confidence: 0.1})

	content, words := censor.Censor("blaireau badger")

	req.Equal("######## ######", content)
	req.Equal([]string{"blaireau", "badger"}, words)
}

func TestLanguageCensor_Falls_Back_To_All_Lists_For_Unknown_Language(t *testing.T) {
	req := require.New(t)
	censor := newTestCensor(t, whatlanggo.Info{Lang: whatlanggo.Deu, Confidence: 1})

	content, _ := censor.Censor("blaireau badger")

	req.Equal("######## ######", content)
}

func TestLanguageCensor_Leaves_Clean_Text(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	censor, err := NewLanguageCensor(Dictionaries{"en": {"badger"}}, '*', log)
	req.NoError(err)

	content, words := censor.Censor("see you tomorrow at the usual place")

	req.Equal("see you tomorrow at the usual place", content)
	req.Nil(words)
}

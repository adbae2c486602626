package moderation

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Moderation_Large_Dictionary(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	// Given a dictionary of many generated words
	words := make([]string, 0, 50_000)
	for i := 0; i < 50_000; i++ {
		words = append(words, fmt.Sprintf("forbidden%d", i))
	}

	// When the automaton is built
	mod, err := NewModerator(words, '*', log)
	req.NoError(err)

	// Then a generated word is still found among regular text
	content, found := mod.Censor("hello forbidden42 world")
	req.Equal("hello *********** world", content)
	req.Contains(found, "forbidden42")
}

func BenchmarkModerator_Censor(b *testing.B) {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	dictionaries, err := LoadEmbedded()
	if err != nil {
		b.Fatal(err)
	}
	mod, err := NewModerator(dictionaries.All(), '*', log)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mod.Censor("you are such an 1d10t, see you tomorrow at the usual place")
	}
}

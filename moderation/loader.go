package moderation

import (
	"bufio"
	"bytes"
	"chat-relay/errors"
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// Dictionaries maps an ISO 639-1 language code to its censored words.
type Dictionaries map[string][]string

// LoadEmbedded reads the word lists shipped with the binary.
func LoadEmbedded() (Dictionaries, error) {
	return LoadAll(censoredFolder, "censored")
}

// LoadAll reads every .txt file of dir, the file name being the language ("fr.txt" -> "fr").
func LoadAll(fsys fs.FS, dir string) (Dictionaries, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	dictionaries := make(Dictionaries)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		// bufio.Scanner handles \n and \r\n alike
		var words []string
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				words = append(words, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		if len(words) > 0 {
			dictionaries[strings.TrimSuffix(entry.Name(), ".txt")] = words
		}
	}

	if len(dictionaries) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return dictionaries, nil
}

// All merges every dictionary into one list.
func (d Dictionaries) All() []string {
	var words []string
	for _, list := range d {
		words = append(words, list...)
	}
	return words
}

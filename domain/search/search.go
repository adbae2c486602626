package search

import (
	"strconv"
	"strings"

	"chat-relay/domain"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Query represents the structured parameters of a conversation search.
// It decouples the raw user input from the actual index engine requirements.
type Query struct {
	RawInput     string                 // The original input from the user
	Terms        string                 // The actual text to search in the index
	Conversation domain.ConversationKey // Search is always scoped to one conversation
	Limit        int
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: "invoice march --limit 5"
func NewSearchQuery(a, b domain.Identity, input string) Query {
	query := Query{
		RawInput:     input,
		Conversation: domain.NewConversationKey(a, b),
		Limit:        DefaultLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if part == "--limit" && i+1 < len(parts) {
			if limit, err := strconv.Atoi(parts[i+1]); err == nil && limit > 0 {
				query.Limit = min(limit, MaxLimit)
			}
			i++ // Skip the value part in next iteration
			continue
		}
		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

// IsEmpty reports whether there is nothing to match.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Terms) == ""
}

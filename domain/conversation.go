package domain

import "fmt"

// ConversationKey identifies the unordered pair {A, B}.
// Both identity lengths are part of the key so that two different pairs
// can never produce the same key, nor one key be a prefix of another.
type ConversationKey string

func NewConversationKey(a, b Identity) ConversationKey {
	low, high := a, b
	if high < low {
		low, high = high, low
	}
	return ConversationKey(fmt.Sprintf("%d.%d.%s%s", len(low), len(high), low, high))
}

func (k ConversationKey) String() string {
	return string(k)
}

package domain

// SendMessageCommand is the intent of From to send Text to To.
type SendMessageCommand struct {
	From Identity `validate:"required"`
	To   Identity `validate:"required"`
	Text string
}

// GetHistoryCommand asks for the conversation between A and B on behalf of Requester.
type GetHistoryCommand struct {
	Requester Identity `validate:"required"`
	A         Identity `validate:"required"`
	B         Identity `validate:"required"`
}

// Participant reports whether the requester is one of the two identities.
func (c GetHistoryCommand) Participant() bool {
	return c.Requester == c.A || c.Requester == c.B
}

package session

import "context"

// Answerer produces exactly one answer per question asked within an admitted
// session.
type Answerer interface {
	Answer(ctx context.Context, sessionID, question string) (string, error)
}

const placeholderAnswer = "This is a placeholder response. The actual PDF-based Q&A will be implemented later."

// PlaceholderAnswerer answers every question with a fixed string until the
// document-query implementation lands.
type PlaceholderAnswerer struct{}

func (PlaceholderAnswerer) Answer(ctx context.Context, sessionID, question string) (string, error) {
	return placeholderAnswer, nil
}

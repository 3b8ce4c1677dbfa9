package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQuestionLength is the longest question (in characters) accepted by the query path.
const MaxQuestionLength = 2000

// Question is a free-text legal question, one per request.
type Question struct {
	Text string `json:"question"`
}

// Validate trims the question and rejects empty or oversized input.
func (q *Question) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidQuestion)
	}
	if !utf8.ValidString(q.Text) {
		return fmt.Errorf("%w: question is not valid UTF-8", ErrInvalidQuestion)
	}
	if n := utf8.RuneCountInString(q.Text); n > MaxQuestionLength {
		return fmt.Errorf("%w: question too long: %d characters (max %d)", ErrInvalidQuestion, n, MaxQuestionLength)
	}
	return nil
}

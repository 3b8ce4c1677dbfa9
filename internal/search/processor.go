package search

import (
	"strings"
	"unicode"

	"github.com/WindyStu/RAGJurisChat/internal/models"
)

// ProcessQuestion collapses runs of whitespace, including full-width spaces, and validates q.
func ProcessQuestion(q *models.Question) error {
	q.Text = strings.Join(strings.FieldsFunc(q.Text, unicode.IsSpace), " ")
	return q.Validate()
}

// Package prompt renders the instruction sent to the generation model.
package prompt

import (
	"strings"

	"github.com/Longhodac/anirec/internal/domain"
)

// template is a static asset with two slots. It is never user-controlled;
// the query and context are substituted verbatim.
const template = `You are an expert anime recommender. Your job is to help users find the perfect anime based on their preferences.

Using the following context, provide a detailed and engaging response to the user's question.

For each question, suggest exactly three anime titles. For each recommendation, include:
1. The anime title.
2. A concise plot summary (2-3 sentences).
3. A clear explanation of why this anime matches the user's preferences.

Present your recommendations in a numbered list format for easy reading.

If you don't know the answer, respond honestly by saying you don't know - do not fabricate answers.

Context:
{context}

User's question:
{question}

Your well-structured response:`

// Compose renders the instruction for a query and its retrieved documents.
// Document texts are concatenated in the order given, separated by a blank
// line. Pure and deterministic.
func Compose(query string, docs []domain.Document) string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	context := strings.Join(texts, "\n\n")

	r := strings.NewReplacer(
		"{context}", context,
		"{question}", query,
	)
	return r.Replace(template)
}

package nlp

import "context"

// Item is a single actionable item pulled out of a transcript
type Item struct {
	Content string `json:"content"`
	Time    string `json:"time,omitempty"`
	Note    string `json:"note,omitempty"`
}

// Extraction holds the structured items extracted from a transcript
type Extraction struct {
	Todos     []Item `json:"todos"`
	Schedules []Item `json:"schedules"`
}

// Empty reports whether the extraction holds no items
func (e Extraction) Empty() bool {
	return len(e.Todos) == 0 && len(e.Schedules) == 0
}

// TextProcessor turns raw transcripts into cleaned text and structured items
type TextProcessor interface {
	// OptimizeText rewrites a raw transcript into readable text.
	// On failure it returns the input unchanged along with the error.
	OptimizeText(ctx context.Context, text string) (string, error)

	// ExtractItems pulls todos and schedule entries out of a transcript.
	// On failure it returns an empty extraction along with the error.
	ExtractItems(ctx context.Context, text string) (Extraction, error)
}

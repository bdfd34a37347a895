package keywords

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Extractor pulls a bounded set of domain keywords from free text. It is a
// deterministic vocabulary match, not NLP; entity extraction proper is
// delegated to the LLM.
type Extractor struct {
	vocabulary []string
	maxResults int
	folder     cases.Caser
}

// NewExtractor creates an extractor over the given vocabulary. Matching is
// case-folded. maxResults bounds the returned set.
func NewExtractor(vocabulary []string, maxResults int) *Extractor {
	folder := cases.Fold()
	folded := make([]string, len(vocabulary))
	for i, term := range vocabulary {
		folded[i] = folder.String(strings.TrimSpace(term))
	}
	return &Extractor{
		vocabulary: folded,
		maxResults: maxResults,
		folder:     cases.Fold(),
	}
}

// Extract returns up to maxResults vocabulary terms present in the text, in
// vocabulary order so results are stable for a given input
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}
	folded := e.folder.String(text)

	var found []string
	for _, term := range e.vocabulary {
		if term == "" {
			continue
		}
		if strings.Contains(folded, term) {
			found = append(found, term)
			if e.maxResults > 0 && len(found) >= e.maxResults {
				break
			}
		}
	}
	return found
}

// ContainsAny reports whether any vocabulary term appears in the text
func (e *Extractor) ContainsAny(text string) bool {
	if text == "" {
		return false
	}
	folded := e.folder.String(text)
	for _, term := range e.vocabulary {
		if term != "" && strings.Contains(folded, term) {
			return true
		}
	}
	return false
}

// Title returns a display-cased form of a keyword for rendered topic labels
func Title(term string) string {
	return cases.Title(language.English).String(term)
}

package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIsCaseFoldedAndStable(t *testing.T) {
	e := NewExtractor([]string{"meeting", "proposal", "budget"}, 0)

	found := e.Extract("Re: BUDGET and Proposal for the next meeting")
	// Results follow vocabulary order regardless of position in the text.
	assert.Equal(t, []string{"meeting", "proposal", "budget"}, found)
}

func TestExtractRespectsMaxResults(t *testing.T) {
	e := NewExtractor([]string{"meeting", "proposal", "budget"}, 2)

	found := e.Extract("meeting about the proposal and budget")
	assert.Len(t, found, 2)
}

func TestExtractEmptyText(t *testing.T) {
	e := NewExtractor([]string{"meeting"}, 0)
	assert.Nil(t, e.Extract(""))
}

func TestContainsAny(t *testing.T) {
	e := NewExtractor([]string{"invoice", "contract"}, 0)

	assert.True(t, e.ContainsAny("the CONTRACT is attached"))
	assert.False(t, e.ContainsAny("see you at lunch"))
	assert.False(t, e.ContainsAny(""))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Product Launch", Title("product launch"))
}

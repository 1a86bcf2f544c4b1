package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendSkipsDuplicatesAndBlanks(t *testing.T) {
	tag := New(Break, "", Spacing)
	assert.Equal(t, Tag("BREAK:SPACING"), tag)
	assert.Equal(t, Tag("BREAK:SPACING:PHANTOM"), tag.Append(Spacing, Phantom))
	assert.True(t, tag.Has(Break))
	assert.False(t, tag.Has(Phantom))
}

func TestEmptyTag(t *testing.T) {
	var tag Tag
	assert.True(t, tag.Empty())
	assert.Nil(t, tag.Words())
	assert.Equal(t, Tag(Fermata), tag.Append(Fermata))
}

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternReturnsSameBackingStringForRepeatedName(t *testing.T) {
	in := newUserInterner(4)
	a := in.Intern("alice")
	b := in.Intern("alice")
	assert.Equal(t, a, b)
}

func TestInternEvictsLeastRecentlyUsedPastSize(t *testing.T) {
	in := newUserInterner(1)
	in.Intern("alice")
	in.Intern("bob")
	assert.Equal(t, 1, in.cache.Len())
	assert.False(t, in.cache.Contains("alice"))
	assert.True(t, in.cache.Contains("bob"))
}

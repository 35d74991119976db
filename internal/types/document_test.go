package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_SetKeepsInsertionOrder(t *testing.T) {
	doc := NewDocument(
		"twitter", "Short post",
		"instagram.casual", "Casual post",
		"description", "Long description",
	)
	doc.Set("twitter", "Updated post")

	assert.Equal(t, []FieldPath{"twitter", "instagram.casual", "description"}, doc.Paths())
	text, ok := doc.Get("twitter")
	require.True(t, ok)
	assert.Equal(t, "Updated post", text)
	assert.Equal(t, 3, doc.Len())
}

func TestDocument_ZeroValueIsUsable(t *testing.T) {
	var doc Document
	assert.False(t, doc.Has("anything"))
	doc.Set("a", "b")
	assert.True(t, doc.Has("a"))
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc := NewDocument("a", "one", "b", "two")
	clone := doc.Clone()
	clone.Set("a", "changed")
	clone.Set("c", "three")

	text, _ := doc.Get("a")
	assert.Equal(t, "one", text)
	assert.False(t, doc.Has("c"))
	assert.True(t, doc.Equal(NewDocument("a", "one", "b", "two")))
}

func TestDocument_Equal(t *testing.T) {
	assert.True(t, NewDocument("a", "1", "b", "2").Equal(NewDocument("a", "1", "b", "2")))
	assert.False(t, NewDocument("a", "1", "b", "2").Equal(NewDocument("b", "2", "a", "1")), "order matters")
	assert.False(t, NewDocument("a", "1").Equal(NewDocument("a", "1 ")))
	assert.True(t, (&Document{}).Equal(nil))
}

func TestDocument_JSONKeepsKeyOrder(t *testing.T) {
	doc := NewDocument("zeta", "last letter", "alpha", "first letter")

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"last letter","alpha":"first letter"}`, string(data))

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []FieldPath{"zeta", "alpha"}, decoded.Paths())
	assert.True(t, doc.Equal(&decoded))
}

func TestDocument_UnmarshalRejectsNonStringValues(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`{"a": {"nested": "x"}}`), &doc)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`["a"]`), &doc)
	assert.Error(t, err)
}

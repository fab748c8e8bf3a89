package model_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestGraphDocName(t *testing.T) {
	id := model.MemoryID("2b1f0a3e-0000-4000-8000-000000000001")
	name := model.GraphDocName("I enjoy hiking on weekends", id)

	gt.S(t, name).Contains("memory_")
	gt.S(t, name).Contains(string(id))
	gt.True(t, strings.HasSuffix(name, ".txt"))

	// Same content yields the same name, different content a different one
	gt.V(t, model.GraphDocName("I enjoy hiking on weekends", id)).Equal(name)
	gt.V(t, model.GraphDocName("I prefer tea over coffee", id)).NotEqual(name)
}

func TestContentHash(t *testing.T) {
	h := model.ContentHash("hello")
	gt.V(t, len(h)).Equal(12)
	gt.V(t, model.ContentHash("hello")).Equal(h)
	gt.V(t, model.ContentHash("hello!")).NotEqual(h)
}

func TestBuildGraphDocument(t *testing.T) {
	doc := model.BuildGraphDocument("I enjoy hiking on weekends", []string{"hobbies", "health"})

	gt.True(t, strings.HasPrefix(doc, "# Topics: hobbies, health\n"))
	gt.S(t, doc).Contains("I enjoy hiking on weekends")
}

func TestMatchGraphDoc(t *testing.T) {
	id := model.MemoryID("2b1f0a3e-0000-4000-8000-000000000001")
	name := model.GraphDocName("some content", id)

	t.Run("bare filename", func(t *testing.T) {
		gt.True(t, model.MatchGraphDoc(name, id))
	})

	t.Run("full path", func(t *testing.T) {
		gt.True(t, model.MatchGraphDoc("/inputs/"+name, id))
	})

	t.Run("other id", func(t *testing.T) {
		gt.False(t, model.MatchGraphDoc(name, model.NewMemoryID()))
	})

	t.Run("id is substring of another id", func(t *testing.T) {
		// A doc for id "...001" must not match a query for "...1" suffix overlap
		gt.False(t, model.MatchGraphDoc(name, model.MemoryID("000000000001")))
		longer := model.GraphDocName("some content", model.MemoryID("x-"+string(id)))
		gt.False(t, model.MatchGraphDoc(longer, id))
	})

	t.Run("unrelated file", func(t *testing.T) {
		gt.False(t, model.MatchGraphDoc("notes_"+string(id)+".txt", id))
		gt.False(t, model.MatchGraphDoc("", id))
	})

	t.Run("empty id", func(t *testing.T) {
		gt.False(t, model.MatchGraphDoc(name, ""))
	})
}

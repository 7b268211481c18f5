package chunk

import (
	"strings"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func TestSplitProducesContiguousMonotonicIndex(t *testing.T) {
	text := "# Intro\n\n" + strings.Repeat("word ", 3000) + "\n\n# Second\n\n" + strings.Repeat("term ", 2000)
	s := NewSplitter()
	parents, children := s.Split(text, []string{"Intro", "Second"})

	if len(parents) == 0 {
		t.Fatal("expected at least one parent chunk")
	}
	if len(children) == 0 {
		t.Fatal("expected at least one child chunk")
	}

	all := append(append([]Unsaved{}, parents...), children...)
	indexes := map[int]bool{}
	for _, c := range all {
		if indexes[c.ChunkIndex] {
			t.Fatalf("duplicate chunk_index %d", c.ChunkIndex)
		}
		indexes[c.ChunkIndex] = true
	}
	for i := 0; i < len(all); i++ {
		if !indexes[i] {
			t.Fatalf("chunk_index space is not contiguous from 0: missing %d", i)
		}
	}
}

func TestSplitChildrenReferenceParent(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 200)
	s := NewSplitter()
	parents, children := s.Split(text, nil)

	if len(parents) == 0 {
		t.Fatal("expected at least one parent")
	}
	for _, c := range children {
		if c.ParentIndex == nil {
			t.Fatal("child chunk missing parent reference")
		}
		if *c.ParentIndex < 0 || *c.ParentIndex >= len(parents) {
			t.Fatalf("child parent index %d out of range", *c.ParentIndex)
		}
		if c.ChunkType != model.ChunkTypeChild {
			t.Fatalf("expected child chunk type, got %s", c.ChunkType)
		}
	}
	for _, p := range parents {
		if p.ChunkType != model.ChunkTypeParent {
			t.Fatalf("expected parent chunk type, got %s", p.ChunkType)
		}
	}
}

func TestEstimateTokensEmpty(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Fatal("expected 0 tokens for empty text")
	}
}

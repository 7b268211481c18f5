package summarize

import (
	"context"
	"testing"
)

type fakeChatter struct {
	response string
	calls    int
}

func (f *fakeChatter) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.response, nil
}

func TestSummarizeProducesThreeLevelForest(t *testing.T) {
	chatter := &fakeChatter{response: `{"short_summary":"A short summary.","long_summary":"A longer summary.","key_concepts":["go","channels"],"tech_stack":["go"],"skill_profile":"intermediate"}`}
	s := NewSummarizer(chatter)

	parents := []ParentChunk{
		{ID: "p1", SectionIndex: 0, Content: "section one content about goroutines"},
		{ID: "p2", SectionIndex: 0, Content: "more section one content"},
		{ID: "p3", SectionIndex: 1, Content: "section two content about channels"},
	}

	summaries, err := s.Summarize(context.Background(), 42, parents, []string{"go"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	var level1, level2, level3 int
	for _, sum := range summaries {
		switch sum.Level {
		case 1:
			level1++
			if sum.ChunkID == nil {
				t.Fatal("level-1 summary missing chunk_id")
			}
			if sum.ParentID == nil {
				t.Fatal("level-1 summary missing parent_id (should roll up into a section)")
			}
		case 2:
			level2++
			if sum.ParentID == nil {
				t.Fatal("level-2 summary missing parent_id (should roll up into document)")
			}
		case 3:
			level3++
			if sum.ParentID != nil {
				t.Fatal("level-3 (document) summary must have nil parent_id")
			}
			if sum.ChunkID != nil {
				t.Fatal("level-3 summary must have nil chunk_id")
			}
		}
	}

	if level1 != 3 {
		t.Fatalf("expected 3 level-1 summaries, got %d", level1)
	}
	if level2 != 2 {
		t.Fatalf("expected 2 level-2 summaries (one per section), got %d", level2)
	}
	if level3 != 1 {
		t.Fatalf("expected exactly 1 level-3 summary, got %d", level3)
	}
}

func TestSummarizeEmptyParentsReturnsNil(t *testing.T) {
	chatter := &fakeChatter{}
	s := NewSummarizer(chatter)

	summaries, err := s.Summarize(context.Background(), 1, nil, nil)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summaries != nil {
		t.Fatal("expected nil summaries for no parent chunks")
	}
	if chatter.calls != 0 {
		t.Fatal("expected no oracle calls for empty input")
	}
}

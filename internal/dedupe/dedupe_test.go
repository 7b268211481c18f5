package dedupe

import "testing"

func TestFindDuplicatesGroupsNearIdenticalText(t *testing.T) {
	docs := []DocumentText{
		{DocID: 1, Text: "the quick brown fox jumps over the lazy dog"},
		{DocID: 2, Text: "the quick brown fox jumps over the lazy dog!"},
		{DocID: 3, Text: "completely unrelated content about go concurrency patterns"},
	}

	groups := FindDuplicates(docs, 0.9, 0)
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d: %+v", len(groups), groups)
	}
	g := groups[0]
	if g.PrimaryDocID != 1 {
		t.Errorf("primary doc = %d, want 1", g.PrimaryDocID)
	}
	if len(g.Duplicates) != 1 || g.Duplicates[0].DocID != 2 {
		t.Fatalf("expected doc 2 as the only duplicate, got %+v", g.Duplicates)
	}
	if g.Duplicates[0].Similarity < 0.9 {
		t.Errorf("similarity = %v, want >= 0.9", g.Duplicates[0].Similarity)
	}
}

func TestFindDuplicatesNoMatchesBelowThreshold(t *testing.T) {
	docs := []DocumentText{
		{DocID: 1, Text: "go channels and goroutines"},
		{DocID: 2, Text: "python asyncio event loops"},
	}

	groups := FindDuplicates(docs, DefaultSimilarityThreshold, 0)
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
}

func TestFindDuplicatesRespectsLimit(t *testing.T) {
	docs := []DocumentText{
		{DocID: 1, Text: "alpha alpha alpha beta"},
		{DocID: 2, Text: "alpha alpha alpha beta"},
		{DocID: 3, Text: "gamma gamma gamma delta"},
		{DocID: 4, Text: "gamma gamma gamma delta"},
	}

	groups := FindDuplicates(docs, 0.9, 1)
	if len(groups) != 1 {
		t.Fatalf("expected exactly 1 group under limit=1, got %d", len(groups))
	}
}

func TestFindDuplicatesGroupsLargestFirst(t *testing.T) {
	docs := []DocumentText{
		{DocID: 1, Text: "shared phrase one two three"},
		{DocID: 2, Text: "shared phrase one two three"},
		{DocID: 3, Text: "another duplicate pair alpha beta"},
		{DocID: 4, Text: "another duplicate pair alpha beta"},
		{DocID: 5, Text: "another duplicate pair alpha beta"},
	}

	groups := FindDuplicates(docs, 0.9, 0)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Duplicates) < len(groups[1].Duplicates) {
		t.Error("expected groups sorted largest-first")
	}
}

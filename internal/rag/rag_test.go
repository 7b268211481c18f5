package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
)

type fakeChatter struct {
	expansion string
	answer    string
	calls     []string
}

func (f *fakeChatter) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls = append(f.calls, systemPrompt)
	if systemPrompt == expansionSystemPrompt {
		return f.expansion, nil
	}
	return f.answer, nil
}

type fakeRetriever struct {
	result *retrieval.Result
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, kbID, query string, opts retrieval.Options, chunkSource retrieval.ChunkSource) (*retrieval.Result, error) {
	return f.result, f.err
}

func TestAnswerReturnsSentinelOnEmptyContext(t *testing.T) {
	chatter := &fakeChatter{}
	retriever := &fakeRetriever{result: &retrieval.Result{}}
	o := NewOrchestrator(chatter, retriever, nil, nil)

	resp, err := o.Answer(context.Background(), "kb1", "what is the deploy process?", 5)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.Answer != noContextAnswer {
		t.Fatalf("expected sentinel answer, got %q", resp.Answer)
	}
}

func TestAnswerCitesDocumentsFromContext(t *testing.T) {
	chatter := &fakeChatter{expansion: "how do I deploy it?", answer: "You deploy via CI [doc:7]."}
	retriever := &fakeRetriever{result: &retrieval.Result{
		Chunks: []retrieval.RankedParent{
			{Parent: model.Chunk{ID: "c1", Content: "deployment runs through CI", CreatedAt: time.Now()}, DocumentID: 7, Score: 0.9},
		},
	}}
	o := NewOrchestrator(chatter, retriever, nil, nil)

	resp, err := o.Answer(context.Background(), "kb1", "how to deploy?", 5)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(resp.Citations) != 1 || resp.Citations[0] != 7 {
		t.Fatalf("expected citation [7], got %v", resp.Citations)
	}
	if !strings.Contains(resp.Answer, "CI") {
		t.Fatalf("expected generated answer to be returned, got %q", resp.Answer)
	}
}

func TestAnswerContinuesWhenExpansionFails(t *testing.T) {
	chatter := &erroringExpansionChatter{answer: "fine"}
	retriever := &fakeRetriever{result: &retrieval.Result{}}
	o := NewOrchestrator(chatter, retriever, nil, nil)

	resp, err := o.Answer(context.Background(), "kb1", "query", 5)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.Answer != noContextAnswer {
		t.Fatalf("expected sentinel since retrieval returned nothing, got %q", resp.Answer)
	}
}

type erroringExpansionChatter struct {
	answer string
}

func (e *erroringExpansionChatter) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if systemPrompt == expansionSystemPrompt {
		return "", context.DeadlineExceeded
	}
	return e.answer, nil
}

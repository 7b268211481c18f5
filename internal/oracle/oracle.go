// Package oracle implements the abstract "oracle" (spec §9 design note:
// "the LLM provider is an abstract oracle") concretely against Vertex AI
// Gemini (chat/JSON/vision) and Document AI (structured pdf/docx
// extraction), the teacher's own default backends. Every method is reached
// through a narrow interface defined by its calling package (embedding.
// Oracle, extract.OfficeBackend, extract.OracleImageDescriber, concept/rag/
// suggest's chat seam) so no caller imports this package's GCP types
// directly.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/storage"
	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

// Client is the concrete oracle backend: one Vertex AI chat client, one
// Document AI client, one GCS bucket used as Document AI's required
// intermediate storage, and an HTTP client for the embedding REST API
// (same split the teacher uses between SDK-backed genai calls and
// REST-backed embedding calls).
type Client struct {
	genaiClient   *genai.Client
	docaiClient   *documentai.DocumentProcessorClient
	storageClient *storage.Client
	httpClient    *http.Client

	project         string
	location        string
	chatModel       string
	embeddingModel  string
	docaiProcessor  string
	scratchBucket   string
}

// Config bundles the process-wide oracle settings recognized by §6's
// "Config and environment" ("oracle endpoint and key").
type Config struct {
	Project        string
	Location       string
	ChatModel      string
	EmbeddingModel string
	DocAIProcessor string // full resource name: projects/.../locations/.../processors/...
	ScratchBucket  string // GCS bucket Document AI reads from
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, cfg.Project, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("oracle.NewClient: genai: %w", err)
	}

	docaiEndpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	docaiClient, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(docaiEndpoint))
	if err != nil {
		return nil, fmt.Errorf("oracle.NewClient: documentai: %w", err)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle.NewClient: storage: %w", err)
	}

	httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("oracle.NewClient: default credentials: %w", err)
	}

	return &Client{
		genaiClient:    genaiClient,
		docaiClient:    docaiClient,
		storageClient:  storageClient,
		httpClient:     httpClient,
		project:        cfg.Project,
		location:       cfg.Location,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		docaiProcessor: cfg.DocAIProcessor,
		scratchBucket:  cfg.ScratchBucket,
	}, nil
}

func (c *Client) Close() {
	c.genaiClient.Close()
	c.docaiClient.Close()
	c.storageClient.Close()
}

// Chat sends a system+user prompt to Gemini and returns the text response.
// Used by internal/concept, internal/rag, internal/suggest for their
// JSON-schema and free-text oracle calls.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return withRetry(ctx, "oracle.Chat", func() (string, error) {
		model := c.genaiClient.GenerativeModel(c.chatModel)
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

		resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
		if err != nil {
			return "", fmt.Errorf("oracle.Chat: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("oracle.Chat: empty response from model")
		}

		var parts []string
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("oracle.Chat: no text in response")
		}
		return strings.Join(parts, ""), nil
	})
}

// OCR sends image bytes to Gemini's multimodal input and returns the
// extracted text (satisfies extract.OracleImageDescriber).
func (c *Client) OCR(ctx context.Context, data []byte, mimeType string) (string, error) {
	return withRetry(ctx, "oracle.OCR", func() (string, error) {
		model := c.genaiClient.GenerativeModel(c.chatModel)
		resp, err := model.GenerateContent(ctx,
			genai.Text("Transcribe all legible text in this image verbatim. Return only the transcribed text."),
			genai.ImageData(strings.TrimPrefix(mimeType, "image/"), data),
		)
		if err != nil {
			return "", fmt.Errorf("oracle.OCR: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("oracle.OCR: empty response from model")
		}
		var parts []string
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
		return strings.Join(parts, ""), nil
	})
}

// ExtractOffice uploads data to the scratch bucket and processes it with
// Document AI, returning text and page count (satisfies
// extract.OfficeBackend).
func (c *Client) ExtractOffice(ctx context.Context, data []byte, mimeType string) (string, int, error) {
	object := fmt.Sprintf("scratch/%d-%d", time.Now().UnixNano(), len(data))
	w := c.storageClient.Bucket(c.scratchBucket).Object(object).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", 0, fmt.Errorf("oracle.ExtractOffice: upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("oracle.ExtractOffice: upload close: %w", err)
	}
	defer c.storageClient.Bucket(c.scratchBucket).Object(object).Delete(ctx)

	gcsURI := fmt.Sprintf("gs://%s/%s", c.scratchBucket, object)

	resp, err := withRetry(ctx, "oracle.ExtractOffice", func() (*documentaipb.ProcessResponse, error) {
		return c.docaiClient.ProcessDocument(ctx, &documentaipb.ProcessRequest{
			Name: c.docaiProcessor,
			Source: &documentaipb.ProcessRequest_GcsDocument{
				GcsDocument: &documentaipb.GcsDocument{GcsUri: gcsURI, MimeType: mimeType},
			},
		})
	})
	if err != nil {
		return "", 0, fmt.Errorf("oracle.ExtractOffice: %w", err)
	}
	if resp.Document == nil {
		return "", 0, fmt.Errorf("oracle.ExtractOffice: nil document in response")
	}
	return resp.Document.Text, len(resp.Document.Pages), nil
}

// HealthCheck verifies the Document AI connection (teacher's gcpclient
// pattern: listing processors as a lightweight liveness probe).
func (c *Client) HealthCheck(ctx context.Context) error {
	parent := fmt.Sprintf("projects/%s/locations/%s", c.project, c.location)
	iter := c.docaiClient.ListProcessors(ctx, &documentaipb.ListProcessorsRequest{Parent: parent})
	_, err := iter.Next()
	if err != nil && err != iterator.Done {
		return fmt.Errorf("oracle.HealthCheck: %w", err)
	}
	return nil
}

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// EmbedTexts generates embeddings for a batch using RETRIEVAL_DOCUMENT task
// type (satisfies embedding.Oracle). model overrides the client's
// configured default embedding model when non-empty.
func (c *Client) EmbedTexts(ctx context.Context, texts []string, model string) ([][]float32, error) {
	return c.embedWithTaskType(ctx, texts, firstNonEmptyStr(model, c.embeddingModel), "RETRIEVAL_DOCUMENT")
}

// EmbedQuery embeds a single query using RETRIEVAL_QUERY task type, which
// Vertex AI's asymmetric retrieval models optimize separately from document
// embeddings (used by internal/retrieval for the dense leg of hybrid search).
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.embedWithTaskType(ctx, []string{query}, c.embeddingModel, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("oracle.EmbedQuery: empty response")
	}
	return vecs[0], nil
}

func (c *Client) embedWithTaskType(ctx context.Context, texts []string, model, taskType string) ([][]float32, error) {
	return withRetry(ctx, "oracle.EmbedTexts", func() ([][]float32, error) {
		instances := make([]embeddingInstance, len(texts))
		for i, t := range texts {
			instances[i] = embeddingInstance{Content: t, TaskType: taskType}
		}
		body, err := json.Marshal(embeddingRequest{Instances: instances})
		if err != nil {
			return nil, fmt.Errorf("oracle.EmbedTexts: marshal: %w", err)
		}

		url := c.embeddingEndpointURL(model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("oracle.EmbedTexts: request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("oracle.EmbedTexts: call: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			if isRetryableStatus(resp.StatusCode) {
				return nil, fmt.Errorf("oracle.EmbedTexts: status %d (429/503): %s", resp.StatusCode, respBody)
			}
			return nil, errs.OracleUnavailable(fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
		}

		var decoded embeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("oracle.EmbedTexts: decode: %w", err)
		}
		out := make([][]float32, len(decoded.Predictions))
		for i, p := range decoded.Predictions {
			out[i] = p.Embeddings.Values
		}
		return out, nil
	})
}

func (c *Client) embeddingEndpointURL(model string) string {
	if c.location == "global" {
		return fmt.Sprintf("https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict", c.project, model)
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict", c.location, c.project, c.location, model)
}

func firstNonEmptyStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

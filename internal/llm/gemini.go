package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiTimeout = 120 * time.Second

// GeminiProvider talks to the Gemini API. A client is built per request
// since the API key is part of the client config.
type GeminiProvider struct {
	opts Options
}

func NewGemini(opts Options) *GeminiProvider {
	if opts.Timeout == 0 {
		opts.Timeout = defaultGeminiTimeout
	}
	return &GeminiProvider{opts: opts}
}

func (g *GeminiProvider) client(ctx context.Context, key string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient(g.opts.Timeout, nil),
	}
	if g.opts.BaseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(g.opts.BaseURL, "/")
	}
	return genai.NewClient(ctx, cc)
}

func (g *GeminiProvider) Send(ctx context.Context, req Request, onToken func(string)) (*Response, error) {
	if len(req.Tools) > 0 || req.Continuation != nil {
		return nil, fmt.Errorf("gemini: %w", ErrToolsUnsupported)
	}

	client, err := g.client(ctx, req.APIKey.Reveal())
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	contents, config := geminiRequest(req)
	if onToken == nil {
		resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
		if err != nil {
			return nil, err
		}
		out := &Response{}
		merge(out, resp, nil)
		if err := blocked(out, resp); err != nil {
			return nil, err
		}
		return out, nil
	}

	out := &Response{}
	var last *genai.GenerateContentResponse
	for chunk, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
		if err != nil {
			return nil, err
		}
		merge(out, chunk, onToken)
		last = chunk
	}
	if err := blocked(out, last); err != nil {
		return nil, err
	}
	return out, nil
}

func geminiRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	var parts []*genai.Part
	if req.Input.Text != "" {
		parts = append(parts, genai.NewPartFromText(req.Input.Text))
	}
	for _, img := range req.Input.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}

	config := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.Instructions)},
		}
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config
}

// merge folds one (possibly partial) response into out. Streamed chunks
// carry text deltas; usage and finish reason arrive on the last one.
func merge(out *Response, resp *genai.GenerateContentResponse, onToken func(string)) {
	if resp == nil {
		return
	}
	if resp.ResponseID != "" {
		out.ID = resp.ResponseID
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			InputTokens:  int64(u.PromptTokenCount),
			OutputTokens: int64(u.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return
	}

	cand := resp.Candidates[0]
	if cand.FinishReason != "" {
		out.FinishReason = string(cand.FinishReason)
	}
	if cand.Content == nil {
		return
	}
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		out.Text += p.Text
		if onToken != nil {
			onToken(p.Text)
		}
	}
}

func blocked(out *Response, resp *genai.GenerateContentResponse) error {
	if out.Text != "" || resp == nil || resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == "" {
		return nil
	}
	return fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
}

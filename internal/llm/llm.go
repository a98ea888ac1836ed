package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"ventwave/internal/secret"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrEmptyInput       = errors.New("input has no text and no images")
	ErrToolsUnsupported = errors.New("provider does not support tools")
	ErrUnknownProvider  = errors.New("unknown llm provider")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Providers lists the provider names New accepts.
func Providers() []string {
	return []string{ProviderGemini, ProviderOpenAI}
}

// Image is an attachment forwarded to the model as-is.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

var imageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// NewImage checks the content type of data and wraps it.
func NewImage(name string, data []byte) (Image, error) {
	mime := http.DetectContentType(data)
	if !slices.Contains(imageTypes, mime) {
		return Image{}, fmt.Errorf("%w: %s is %s", ErrUnsupportedImage, name, mime)
	}
	return Image{Name: name, MIMEType: mime, Data: data}, nil
}

// ImageFromFile reads path and wraps its content as an Image.
func ImageFromFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("reading image: %w", err)
	}
	return NewImage(path, data)
}

// Input is one user turn.
type Input struct {
	Text   string
	Images []Image
}

func (in Input) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && len(in.Images) == 0
}

// ToolSpec declares a callable function to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput is the result of a ToolCall sent back to the model.
type ToolOutput struct {
	CallID string
	Output string
}

// Continuation carries tool results into a follow-up request.
type Continuation struct {
	ResponseID string
	Outputs    []ToolOutput
}

type Request struct {
	Model        string
	Instructions string
	Input        Input
	Tools        []ToolSpec
	APIKey       secret.Value
	Continuation *Continuation
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type Response struct {
	ID           string
	Model        string
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Client is the hosted-model collaborator. onToken may be nil; when set,
// text is delivered incrementally as it arrives.
type Client interface {
	Send(ctx context.Context, req Request, onToken func(string)) (*Response, error)
}

// Options tune a provider client.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// New builds the client for a provider name.
func New(provider string, opts Options) (Client, error) {
	switch provider {
	case ProviderGemini:
		return NewGemini(opts), nil
	case ProviderOpenAI:
		return NewOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

func httpClient(timeout time.Duration, inner http.RoundTripper) *http.Client {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(inner),
	}
}

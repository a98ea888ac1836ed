package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

const defaultOpenAITimeout = 120 * time.Second

type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAI(opts Options) *OpenAIProvider {
	if opts.Timeout == 0 {
		opts.Timeout = defaultOpenAITimeout
	}
	reqOpts := []option.RequestOption{
		option.WithHTTPClient(httpClient(opts.Timeout, nil)),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAIProvider{client: &client}
}

func (o *OpenAIProvider) Send(ctx context.Context, req Request, onToken func(string)) (*Response, error) {
	params := o.params(req)
	callOpts := []option.RequestOption{option.WithAPIKey(req.APIKey.Reveal())}

	if onToken == nil {
		resp, err := o.client.Responses.New(ctx, params, callOpts...)
		if err != nil {
			return nil, err
		}
		return fromOpenAI(resp), nil
	}

	stream := o.client.Responses.NewStreaming(ctx, params, callOpts...)

	var completed *responses.Response

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				onToken(event.Delta)
			}
		case "response.completed":
			completed = &event.Response
		case "response.failed":
			return nil, fmt.Errorf("response failed: %s", event.Response.Error.Message)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}
	if completed == nil {
		return nil, fmt.Errorf("response stream ended without completion")
	}

	return fromOpenAI(completed), nil
}

func (o *OpenAIProvider) params(req Request) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
				Strict:      openai.Bool(true),
			},
		})
	}

	var input []responses.ResponseInputItemUnionParam
	if c := req.Continuation; c != nil {
		params.PreviousResponseID = openai.String(c.ResponseID)
		for _, out := range c.Outputs {
			input = append(input, responses.ResponseInputItemParamOfFunctionCallOutput(out.CallID, out.Output))
		}
	} else {
		input = append(input, responses.ResponseInputItemParamOfMessage(userContent(req.Input), "user"))
	}
	params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: input}

	return params
}

func userContent(in Input) responses.ResponseInputMessageContentListParam {
	var content responses.ResponseInputMessageContentListParam
	if in.Text != "" {
		content = append(content, responses.ResponseInputContentUnionParam{
			OfInputText: &responses.ResponseInputTextParam{Text: in.Text},
		})
	}
	for _, img := range in.Images {
		content = append(content, responses.ResponseInputContentUnionParam{
			OfInputImage: &responses.ResponseInputImageParam{
				Detail:   responses.ResponseInputImageDetailAuto,
				ImageURL: openai.String(dataURL(img)),
			},
		})
	}
	return content
}

func dataURL(img Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func fromOpenAI(r *responses.Response) *Response {
	out := &Response{
		ID:           r.ID,
		Model:        string(r.Model),
		Text:         r.OutputText(),
		FinishReason: string(r.Status),
		Usage: Usage{
			InputTokens:  r.Usage.InputTokens,
			OutputTokens: r.Usage.OutputTokens,
		},
	}
	for _, item := range r.Output {
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fc.CallID,
			Name:      fc.Name,
			Arguments: fc.Arguments,
		})
	}
	return out
}

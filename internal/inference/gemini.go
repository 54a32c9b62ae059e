package inference

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrNoAPIKey is returned by NewGeminiTransport without a key.
var ErrNoAPIKey = errors.New("inference: missing API key")

// GeminiTransport dials the Gemini Live API.
type GeminiTransport struct {
	client *genai.Client
}

// NewGeminiTransport creates a Gemini API client for apiKey.
func NewGeminiTransport(ctx context.Context, apiKey string) (*GeminiTransport, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiTransport{client: client}, nil
}

// Dial opens a Live session. Audio is the only response modality the native
// audio models accept; the audio itself is discarded.
func (t *GeminiTransport) Dial(ctx context.Context, setup Setup) (Stream, error) {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: setup.SystemInstruction}},
		},
		Tools: []*genai.Tool{{FunctionDeclarations: declarations(setup.Functions)}},
	}
	session, err := t.client.Live.Connect(ctx, setup.Model, cfg)
	if err != nil {
		return nil, err
	}
	return &geminiStream{session: session}, nil
}

func declarations(fns []FunctionDeclaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(fns))
	for _, fn := range fns {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(fn.Params)),
		}
		for name, p := range fn.Params {
			schema.Properties[name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
			}
			if p.Required {
				schema.Required = append(schema.Required, name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  schema,
		})
	}
	return out
}

func schemaType(t ParamType) genai.Type {
	switch t {
	case TypeNumber:
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}

type geminiStream struct {
	session *genai.Session
}

func (s *geminiStream) SendMedia(mimeType string, data []byte) error {
	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Video: &genai.Blob{MIMEType: mimeType, Data: data},
	})
}

func (s *geminiStream) SendToolResponses(responses []FunctionResponse) error {
	frs := make([]*genai.FunctionResponse, len(responses))
	for i, r := range responses {
		frs[i] = &genai.FunctionResponse{ID: r.ID, Name: r.Name, Response: r.Response}
	}
	return s.session.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: frs})
}

func (s *geminiStream) Receive() (Message, error) {
	msg, err := s.session.Receive()
	if err != nil {
		return Message{}, err
	}
	var out Message
	if msg.GoAway != nil {
		out.GoAway = true
	}
	if msg.ToolCall != nil {
		for _, fc := range msg.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			out.ToolCalls = append(out.ToolCalls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
	}
	return out, nil
}

func (s *geminiStream) Close() error {
	return s.session.Close()
}

package inference

import "context"

// ParamType is the JSON schema type of a tool parameter.
type ParamType string

const (
	TypeNumber ParamType = "number"
	TypeString ParamType = "string"
)

// Param describes one tool parameter.
type Param struct {
	Type        ParamType
	Description string
	Required    bool
}

// FunctionDeclaration is a remote-callable tool offered to the model.
type FunctionDeclaration struct {
	Name        string
	Description string
	Params      map[string]Param
}

// Setup is sent once when a stream opens.
type Setup struct {
	Model             string
	SystemInstruction string
	Functions         []FunctionDeclaration
}

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse answers a FunctionCall with the same ID and Name.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Message is one inbound event. Content the control loop does not use, such
// as model audio, is not represented.
type Message struct {
	ToolCalls []FunctionCall
	GoAway    bool
}

// Stream is an open bidirectional session. Receive blocks until a message
// arrives and returns an error once the stream ends; io.EOF marks a clean
// close. Close unblocks a pending Receive. Send methods are not safe for
// concurrent use; Session serializes them.
type Stream interface {
	SendMedia(mimeType string, data []byte) error
	SendToolResponses(responses []FunctionResponse) error
	Receive() (Message, error)
	Close() error
}

// Transport opens streams to the inference service.
type Transport interface {
	Dial(ctx context.Context, setup Setup) (Stream, error)
}

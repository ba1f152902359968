package control

// request is the decoded wire command. Only action is always required;
// the other fields are per-action, validated by each handler. Unknown JSON
// fields are ignored so clients can evolve independently.
type request struct {
	Action      string `json:"action"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Identifier  string `json:"identifier,omitempty"`
	Command     string `json:"command,omitempty"`
	Direction   string `json:"direction,omitempty"`
}

// Envelope is the only response shape the server ever emits: success with
// data, or failure with error and optional details. Build instances through
// ok and fail so the two shapes never mix.
type Envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details string         `json:"details,omitempty"`
}

func ok(data map[string]any) Envelope {
	return Envelope{Success: true, Data: data}
}

func fail(message, details string) Envelope {
	return Envelope{Success: false, Error: message, Details: details}
}

package provider

import "context"

// ChatProvider is the minimal completion surface the agents need: a prompt
// pair in, opaque text out.
type ChatProvider interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// ResponseCitation is a citation attached to a background response.
type ResponseCitation struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	SourceType string `json:"source_type"`
}

// ResponseSnapshot is the state of a provider-side background job at one
// poll.
type ResponseSnapshot struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	OutputText string             `json:"output_text"`
	Citations  []ResponseCitation `json:"citations"`
	Notes      []string           `json:"notes"`
}

// BackgroundProvider starts long-running research jobs on the provider side
// and fetches their state.
type BackgroundProvider interface {
	StartResponse(ctx context.Context, model, input string) (string, error)
	FetchResponse(ctx context.Context, id string) (ResponseSnapshot, error)
}

package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type clientSession struct {
	cs        *mcpsdk.ClientSession
	closeOnce sync.Once
	closeErr  error
}

func connect(ctx context.Context, impl *mcpsdk.Implementation, t mcpsdk.Transport) (*clientSession, error) {
	client := mcpsdk.NewClient(impl, nil)
	cs, err := client.Connect(ctx, t)
	if err != nil {
		return nil, err
	}
	return &clientSession{cs: cs}, nil
}

// CallTool invokes a tool and decodes its result into plain Go values.
func (s *clientSession) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	res, err := s.cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return decodeToolResult(res), nil
}

func (s *clientSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.cs.Close()
	})
	return s.closeErr
}

// decodeToolResult prefers structured content. Text content is JSON-decoded
// when it parses and kept as a string otherwise; several text blocks become
// a list. Error results map to {"error": text}.
func decodeToolResult(res *mcpsdk.CallToolResult) any {
	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	if res.IsError {
		msg := strings.TrimSpace(strings.Join(texts, "\n"))
		if msg == "" {
			msg = "tool reported an error"
		}
		return map[string]any{"error": msg}
	}

	if res.StructuredContent != nil {
		return res.StructuredContent
	}

	switch len(texts) {
	case 0:
		return nil
	case 1:
		return decodeText(texts[0])
	}
	values := make([]any, 0, len(texts))
	for _, t := range texts {
		values = append(values, decodeText(t))
	}
	return values
}

func decodeText(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

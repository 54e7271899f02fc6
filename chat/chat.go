// Package chat sends free-text health questions to the backend assistant.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/pkg/errors"
)

type Service struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("[chat.New] client is required")
	}
	return &Service{client: client}, nil
}

// Ask returns the assistant's answer to query.
func (s *Service) Ask(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is required", medErrors.ErrInvalidInput)
	}

	raw, err := s.client.Request(ctx, http.MethodPost, "/api/v1/ask-ai", apiclient.JSON(map[string]string{"query": query}), false)
	if err != nil {
		return "", errors.Wrap(err, "[chat.Ask]")
	}
	return answerText(raw)
}

// answerText accepts a bare JSON string or an object carrying the text in
// "response", "answer" or "message".
func answerText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty answer", medErrors.ErrInvalidResponse)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: unexpected answer shape", medErrors.ErrInvalidResponse)
	}
	for _, key := range []string{"response", "answer", "message"} {
		if v, ok := obj[key].(string); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: answer has no text", medErrors.ErrInvalidResponse)
}

package lights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

// Tools returns the get_lights and change_state tools bound to this store.
func (s *Store) Tools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        "get_lights",
			Description: "Gets a list of lights and their current state",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     s.handleGetLights,
		},
		{
			Name:        "change_state",
			Description: "Changes the state of the light",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer","description":"The id of the light"},"isOn":{"type":"boolean","description":"Whether the light should be on"}},"required":["id","isOn"]}`),
			Handler:     s.handleChangeState,
		},
	}
}

// Errors returned by change_state for incomplete arguments.
var (
	ErrMissingID    = errors.New("change_state: id is required")
	ErrMissingState = errors.New("change_state: isOn is required")
)

// --- input types ---

type changeStateInput struct {
	ID   *int  `json:"id"`
	IsOn *bool `json:"isOn"`
}

// --- handlers ---

func (s *Store) handleGetLights(_ context.Context, _ json.RawMessage) (string, error) {
	data, err := json.Marshal(s.List())
	if err != nil {
		return "", fmt.Errorf("get_lights: %w", err)
	}

	return string(data), nil
}

// handleChangeState answers an unknown id with JSON null rather than an error
// so the model can tell the user the light does not exist.
func (s *Store) handleChangeState(_ context.Context, input json.RawMessage) (string, error) {
	var in changeStateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("change_state: invalid input: %w", err)
	}

	if in.ID == nil {
		return "", ErrMissingID
	}

	if in.IsOn == nil {
		return "", ErrMissingState
	}

	light, ok := s.SetState(*in.ID, *in.IsOn)
	if !ok {
		return "null", nil
	}

	data, err := json.Marshal(light)
	if err != nil {
		return "", fmt.Errorf("change_state: %w", err)
	}

	return string(data), nil
}

// package listener receives interactive Slack events over Socket Mode and
// dispatches them to registered handlers.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/desertthunder/playsync/internal/shared"
)

// ActionPayload is the interactive block_actions payload, pared down to the
// fields handlers read.
type ActionPayload struct {
	Type      string `json:"type"`
	TriggerID string `json:"trigger_id,omitempty"`
	User      struct {
		ID   string `json:"id"`
		Name string `json:"username"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Container struct {
		MessageTS string `json:"message_ts"`
	} `json:"container"`
	Actions []Action `json:"actions"`
}

// Action is one element interaction inside a block_actions payload.
type Action struct {
	ActionID       string `json:"action_id"`
	BlockID        string `json:"block_id,omitempty"`
	Value          string `json:"value,omitempty"`
	SelectedOption *struct {
		Value string `json:"value"`
	} `json:"selected_option,omitempty"`
}

// SelectedValue returns the interaction's carried value, preferring an
// overflow/select option over a button value.
func (a Action) SelectedValue() string {
	if a.SelectedOption != nil {
		return a.SelectedOption.Value
	}
	return a.Value
}

// ShortcutPayload is a global shortcut invocation.
type ShortcutPayload struct {
	Type       string `json:"type"`
	CallbackID string `json:"callback_id"`
	TriggerID  string `json:"trigger_id"`
	User       struct {
		ID   string `json:"id"`
		Name string `json:"username"`
	} `json:"user"`
}

// ActionHandler processes one block interaction.
type ActionHandler func(ctx context.Context, payload *ActionPayload, action Action) error

// ShortcutHandler processes one global shortcut invocation.
type ShortcutHandler func(ctx context.Context, payload *ShortcutPayload) error

// Registry maps action and callback ids to handlers. Registration happens at
// startup; dispatch is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	actions   map[string]ActionHandler
	shortcuts map[string]ShortcutHandler
}

func NewRegistry() *Registry {
	return &Registry{
		actions:   map[string]ActionHandler{},
		shortcuts: map[string]ShortcutHandler{},
	}
}

// AddAction registers a handler for a block action id.
func (r *Registry) AddAction(actionID string, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[actionID] = handler
}

// AddShortcut registers a handler for a global shortcut callback id.
func (r *Registry) AddShortcut(callbackID string, handler ShortcutHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortcuts[callbackID] = handler
}

// Dispatch decodes an interactive payload and invokes the matching handler.
// Unregistered ids return [shared.ErrNotFound] so the listener can log and
// move on.
func (r *Registry) Dispatch(ctx context.Context, raw json.RawMessage) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("failed to decode interactive payload: %w", err)
	}

	switch probe.Type {
	case "block_actions":
		var payload ActionPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to decode block actions: %w", err)
		}
		for _, action := range payload.Actions {
			r.mu.RLock()
			handler, ok := r.actions[action.ActionID]
			r.mu.RUnlock()
			if !ok {
				return fmt.Errorf("%w: action %q", shared.ErrNotFound, action.ActionID)
			}
			if err := handler(ctx, &payload, action); err != nil {
				return fmt.Errorf("action %q: %w", action.ActionID, err)
			}
		}
		return nil

	case "shortcut":
		var payload ShortcutPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to decode shortcut: %w", err)
		}
		r.mu.RLock()
		handler, ok := r.shortcuts[payload.CallbackID]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: shortcut %q", shared.ErrNotFound, payload.CallbackID)
		}
		if err := handler(ctx, &payload); err != nil {
			return fmt.Errorf("shortcut %q: %w", payload.CallbackID, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: interactive payload type %q", shared.ErrNotFound, probe.Type)
	}
}

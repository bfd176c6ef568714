// Slack Web API implementation of [Notifier]
//
// Block Kit payloads are modeled as narrow typed structs; the core never
// builds raw JSON maps.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const slackAPIBaseURL = "https://slack.com/api"

// BlockText is a Block Kit text object (plain_text or mrkdwn).
type BlockText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Markdown builds an mrkdwn text object.
func Markdown(text string) *BlockText {
	return &BlockText{Type: "mrkdwn", Text: text}
}

// PlainText builds a plain_text text object.
func PlainText(text string) *BlockText {
	return &BlockText{Type: "plain_text", Text: text, Emoji: true}
}

// BlockOption is one selectable option of an overflow or select element.
type BlockOption struct {
	Text  *BlockText `json:"text"`
	Value string     `json:"value"`
}

// BlockElement is an interactive or image element, usable as a section
// accessory or inside an actions block.
type BlockElement struct {
	Type     string        `json:"type"`
	Text     *BlockText    `json:"text,omitempty"`
	ImageURL string        `json:"image_url,omitempty"`
	AltText  string        `json:"alt_text,omitempty"`
	Style    string        `json:"style,omitempty"`
	ActionID string        `json:"action_id,omitempty"`
	Value    string        `json:"value,omitempty"`
	Options  []BlockOption `json:"options,omitempty"`
}

// Block is a single Block Kit layout block.
type Block struct {
	Type      string         `json:"type"`
	Text      *BlockText     `json:"text,omitempty"`
	Fields    []*BlockText   `json:"fields,omitempty"`
	Accessory *BlockElement  `json:"accessory,omitempty"`
	Elements  []BlockElement `json:"elements,omitempty"`
}

// Divider builds a divider block.
func Divider() Block {
	return Block{Type: "divider"}
}

// SlackService implements [Notifier] against the Slack Web API.
type SlackService struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

// NewSlackService creates a Slack notifier using the given bot token.
func NewSlackService(botToken string, client *http.Client) *SlackService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackService{
		baseURL:    slackAPIBaseURL,
		botToken:   botToken,
		httpClient: client,
	}
}

// NewSlackServiceAt creates a Slack notifier against a custom API base URL.
// Used by tests to point at an httptest server.
func NewSlackServiceAt(baseURL, botToken string, client *http.Client) *SlackService {
	s := NewSlackService(botToken, client)
	s.baseURL = baseURL
	return s
}

type slackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// call performs an authenticated POST of a JSON payload to a Web API method.
func (s *SlackService) call(ctx context.Context, method string, payload any) (*slackResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.botToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("slack API error from %s: %s", method, parsed.Error)
	}

	return &parsed, nil
}

// PostMessage posts a message with optional blocks to a channel.
func (s *SlackService) PostMessage(ctx context.Context, channel, text string, blocks []Block) (*MessageRef, error) {
	payload := struct {
		Channel string  `json:"channel"`
		Text    string  `json:"text"`
		Blocks  []Block `json:"blocks,omitempty"`
	}{channel, text, blocks}

	resp, err := s.call(ctx, "chat.postMessage", payload)
	if err != nil {
		return nil, err
	}
	return &MessageRef{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

// PostEphemeral posts a message visible only to userID in the channel.
func (s *SlackService) PostEphemeral(ctx context.Context, channel, userID, text string, blocks []Block) error {
	payload := struct {
		Channel string  `json:"channel"`
		User    string  `json:"user"`
		Text    string  `json:"text"`
		Blocks  []Block `json:"blocks,omitempty"`
	}{channel, userID, text, blocks}

	_, err := s.call(ctx, "chat.postEphemeral", payload)
	return err
}

// DeleteMessage deletes a previously posted message.
func (s *SlackService) DeleteMessage(ctx context.Context, ref MessageRef) error {
	payload := struct {
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}{ref.Channel, ref.Timestamp}

	_, err := s.call(ctx, "chat.delete", payload)
	return err
}

// OpenSocketModeConnection requests a Socket Mode WebSocket URL using the
// app-level token. Consumed by the listener package.
func (s *SlackService) OpenSocketModeConnection(ctx context.Context, appToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/apps.connections.open", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode connection response: %w", err)
	}
	if !parsed.OK {
		return "", fmt.Errorf("slack API error from apps.connections.open: %s", parsed.Error)
	}

	return parsed.URL, nil
}

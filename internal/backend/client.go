// Package backend provides an HTTP client for the dispatch backend's REST
// API: message history, the admin send path, complaint creation, and the
// field-agent intervention endpoints. All decisions happen server-side; this
// client only carries requests and responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

// Client is an HTTP client for the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendRequest is the body for the admin send path. MessageID, when set, is
// carried through to the transport echo so the sender can reconcile its
// optimistic copy.
type SendRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Sender    string `json:"sender,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// ComplaintRequest opens a customer session with contact details.
type ComplaintRequest struct {
	SessionID     string    `json:"session_id"`
	Description   string    `json:"description"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Location      *Location `json:"location,omitempty"`
}

// Location is a GPS point attached to a complaint.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Intervention is one assignment in a field agent's work list.
type Intervention struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"session_id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// ErrorResponse is an error body from the backend.
type ErrorResponse struct {
	Error string `json:"error"`
}

// History calls GET /chat/:session_id/messages and returns the ordered
// message history for a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("history: session id is required")
	}
	url := fmt.Sprintf("%s/chat/%s/messages", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var messages []domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return messages, nil
}

// Send calls POST /chat/message, the request/response send path used by the
// admin surface. No response body is guaranteed beyond the status code.
func (c *Client) Send(ctx context.Context, sendReq *SendRequest) error {
	body, err := json.Marshal(sendReq)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return decodeError(resp)
	}
	return nil
}

// SendChat is the convenience form of Send used by the session controller.
// The message id travels with the request so the relay echoes it back and the
// sender's pending copy is confirmed rather than duplicated.
func (c *Client) SendChat(ctx context.Context, msg domain.Message) error {
	return c.Send(ctx, &SendRequest{
		SessionID: msg.SessionID,
		Content:   msg.Content,
		Sender:    string(msg.Sender),
		MessageID: msg.ID,
	})
}

// CreateComplaint calls POST /chat/complaint to open a customer session.
func (c *Client) CreateComplaint(ctx context.Context, complaint *ComplaintRequest) error {
	body, err := json.Marshal(complaint)
	if err != nil {
		return fmt.Errorf("failed to marshal complaint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/complaint", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return decodeError(resp)
	}
	return nil
}

// Interventions calls GET /agents/:agent_id/interventions and returns the
// agent's assignment list.
func (c *Client) Interventions(ctx context.Context, agentID int64) ([]Intervention, error) {
	url := fmt.Sprintf("%s/agents/%d/interventions", c.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interventions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var interventions []Intervention
	if err := json.NewDecoder(resp.Body).Decode(&interventions); err != nil {
		return nil, fmt.Errorf("failed to decode interventions: %w", err)
	}
	return interventions, nil
}

// Resolve calls POST /interventions/:id/resolve.
func (c *Client) Resolve(ctx context.Context, interventionID int64) error {
	url := fmt.Sprintf("%s/interventions/%d/resolve", c.baseURL, interventionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to resolve intervention: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("backend error: %s", errResp.Error)
	}
	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
}

package sharing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goalnest/goalnest/internal/model"
)

var (
	ErrRejected = errors.New("relay rejected request")
	ErrMissing  = errors.New("relay response missing field")
)

// Client talks to the remote sharing relay. Calls are not retried.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends body as JSON and decodes the envelope. A non-empty token is sent
// as a bearer credential. An envelope reporting an error status is returned
// as ErrRejected.
func (c *Client) do(ctx context.Context, method, endpoint, token string, body any) (*Envelope, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Error != "" {
			return nil, fmt.Errorf("%w (status %d): %s", ErrRejected, resp.StatusCode, env.Error)
		}
		return nil, fmt.Errorf("relay request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", decodeErr)
	}
	if env.Status == StatusError {
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Error)
	}

	return &env, nil
}

// CreateRelationship opens a pending relationship for self and returns the
// relationship id plus the signed token to put in the invitation link. On an
// install's first call the envelope also carries its access token.
func (c *Client) CreateRelationship(ctx context.Context, self Identity) (*Envelope, error) {
	env, err := c.do(ctx, http.MethodPost, "/relationships", self.Token, CreateRelationshipRequest{Peer: self.Peer})
	if err != nil {
		return nil, err
	}
	if env.RelID == "" || env.InviteToken == "" {
		return nil, fmt.Errorf("%w: relId", ErrMissing)
	}
	return env, nil
}

// AcceptRelationship redeems an invitation token as self. The relay resolves
// the inviter and answers with the accepted relationship and the inviter as peer.
func (c *Client) AcceptRelationship(ctx context.Context, token string, self Identity) (*Envelope, error) {
	env, err := c.do(ctx, http.MethodPost, "/relationships/accept", self.Token, AcceptRelationshipRequest{
		InviteToken: token,
		Peer:        self.Peer,
	})
	if err != nil {
		return nil, err
	}
	if !env.Accepted || env.RelationshipID == "" {
		return nil, fmt.Errorf("%w: accepted", ErrMissing)
	}
	return env, nil
}

func (c *Client) RelationshipStatus(ctx context.Context, relID string, self Identity) (*Envelope, error) {
	endpoint := "/relationships/" + url.PathEscape(relID) + "?installId=" + url.QueryEscape(self.InstallID)
	env, err := c.do(ctx, http.MethodGet, endpoint, self.Token, nil)
	if err != nil {
		return nil, err
	}
	if env.RelationshipID == "" {
		return nil, fmt.Errorf("%w: relationshipId", ErrMissing)
	}
	return env, nil
}

// SendMessage delivers a share or update from self. The returned message is
// the proof that the relay recorded it.
func (c *Client) SendMessage(ctx context.Context, self Identity, msg SendMessageRequest) (*Message, error) {
	msg.SenderID = self.InstallID
	env, err := c.do(ctx, http.MethodPost, "/messages", self.Token, msg)
	if err != nil {
		return nil, err
	}
	if env.ShareMessage == nil {
		return nil, fmt.Errorf("%w: shareMessage", ErrMissing)
	}
	return env.ShareMessage, nil
}

// Messages returns messages addressed to self with a sequence number
// greater than after, oldest first. Messages up to after are acknowledged.
func (c *Client) Messages(ctx context.Context, self Identity, after int64) ([]Message, error) {
	endpoint := "/messages?installId=" + url.QueryEscape(self.InstallID) + "&after=" + strconv.FormatInt(after, 10)
	env, err := c.do(ctx, http.MethodGet, endpoint, self.Token, nil)
	if err != nil {
		return nil, err
	}
	return env.Messages, nil
}

// Hints asks the relay for sub-goal suggestions for goal.
func (c *Client) Hints(ctx context.Context, goal *model.Goal, parentTitle string) ([]model.GoalHint, error) {
	env, err := c.do(ctx, http.MethodPost, "/hints", "", HintsRequest{
		Title:       goal.Title,
		ParentTitle: parentTitle,
	})
	if err != nil {
		return nil, err
	}

	hints := make([]model.GoalHint, 0, len(env.GoalHints))
	for _, h := range env.GoalHints {
		hints = append(hints, model.GoalHint{
			Title:       h.Title,
			Duration:    h.Duration,
			ParentTitle: h.ParentTitle,
		})
	}
	return hints, nil
}

package crmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/logging"
)

const DefaultTimeout = 8 * time.Second

// Client talks to the CRM HTTP API. A Client is safe for concurrent use;
// WithToken returns a copy bound to one operator's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) WithToken(token string) *Client {
	next := *c
	next.token = token
	return &next
}

func (c *Client) BaseURL() string { return c.baseURL }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type messageResponse struct {
	Msg string `json:"msg"`
}

// LeadUpdate is the narrow lead update. A nil field is left untouched; an
// empty AssignedAgent unassigns the lead.
type LeadUpdate struct {
	Status        *crm.LeadStatus
	AssignedAgent *string
}

func (u LeadUpdate) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if u.Status != nil {
		body["status"] = *u.Status
	}
	if u.AssignedAgent != nil {
		if *u.AssignedAgent == "" {
			body["assignedAgent"] = nil
		} else {
			body["assignedAgent"] = *u.AssignedAgent
		}
	}
	return json.Marshal(body)
}

func (u LeadUpdate) Empty() bool {
	return u.Status == nil && u.AssignedAgent == nil
}

type SellerUpdate struct {
	ListingStatus crm.ListingStatus `json:"listingStatus"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Op: "login", Kind: KindDecode, Status: http.StatusOK, Err: errors.New("no access token in response")}
	}
	return out.AccessToken, nil
}

// List reads a whole collection.
func (c *Client) List(ctx context.Context, kind crm.RecordKind) ([]crm.Record, error) {
	op := "list " + string(kind.Kind())
	body, status, err := c.do(ctx, op, http.MethodGet, kind.Endpoint(), nil)
	if err != nil {
		return nil, err
	}
	records, err := kind.Decode(body)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindDecode, Status: status, Err: err}
	}
	return records, nil
}

// Create posts a draft payload verbatim and returns the created document.
func (c *Client) Create(ctx context.Context, kind crm.RecordKind, payload map[string]any) (json.RawMessage, error) {
	body, _, err := c.do(ctx, "create "+kind.Singular(), http.MethodPost, kind.Endpoint(), payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) Delete(ctx context.Context, kind crm.RecordKind, id string) error {
	_, _, err := c.do(ctx, "delete "+kind.Singular(), http.MethodDelete, kind.Endpoint()+"/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) AssignLead(ctx context.Context, agentID, leadID string) error {
	path := "/agents/" + url.PathEscape(agentID) + "/assign-lead"
	_, _, err := c.do(ctx, "assign lead", http.MethodPost, path, map[string]string{"leadId": leadID})
	return err
}

func (c *Client) UpdateLead(ctx context.Context, id string, update LeadUpdate) error {
	_, _, err := c.do(ctx, "update lead", http.MethodPut, "/leads/"+url.PathEscape(id), update)
	return err
}

func (c *Client) UpdateSeller(ctx context.Context, id string, update SellerUpdate) error {
	_, _, err := c.do(ctx, "update seller", http.MethodPut, "/sellers/"+url.PathEscape(id), update)
	return err
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	body, status, err := c.do(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Kind: KindDecode, Status: status, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in any) ([]byte, int, error) {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if traceID := logging.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Op: op, Kind: KindRejected, Status: resp.StatusCode}
		var msg messageResponse
		if err := json.Unmarshal(body, &msg); err != nil {
			// a rejection we cannot read is treated like a broken response
			apiErr.Kind = KindDecode
			apiErr.Err = err
			return nil, resp.StatusCode, apiErr
		}
		apiErr.Message = msg.Msg
		return nil, resp.StatusCode, apiErr
	}
	return body, resp.StatusCode, nil
}

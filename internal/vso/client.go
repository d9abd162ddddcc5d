// ABOUTME: Azure DevOps work item tracking client for ticket CRUD
// ABOUTME: Tickets are the authoritative record of a service request

package vso

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Work item field reference names used by the gateway. The Custom.* fields
// carry the cross-channel join data between the end user and agent
// conversations.
const (
	FieldTitle       = "System.Title"
	FieldDescription = "System.Description"
	FieldAssignedTo  = "System.AssignedTo"
	FieldState       = "System.State"
	FieldTargetDate  = "Microsoft.VSTS.Scheduling.TargetDate"

	FieldEndUserConversationID   = "Custom.EndUserConversationId"
	FieldAgentConversationID     = "Custom.AgentConversationId"
	FieldEndUserID               = "Custom.EndUserId"
	FieldEndUserName             = "Custom.EndUserName"
	FieldRequestedBy             = "Custom.RequestedBy"
	FieldRequestedByPhone        = "Custom.RequestedByPhoneNo"
	FieldFreelancerPlatform      = "Custom.Freelancerplatform"
	FieldFreelancerPlatformJobID = "Custom.FreelancerPlatformJobId"
	FieldFreelancerName          = "Custom.FreelancerName"
)

// Ticket states
const (
	StateOpen   = "To Do"
	StateClosed = "Done"
)

const apiVersion = "7.0"

// WorkItem is a ticket as returned by the work item tracking API
type WorkItem struct {
	ID     int                    `json:"id"`
	Rev    int                    `json:"rev"`
	Fields map[string]interface{} `json:"fields"`
	URL    string                 `json:"url"`
}

// StringField returns a string field value, or "" when absent or non-string
func (w *WorkItem) StringField(name string) string {
	v, ok := w.Fields[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// CreateTicketRequest carries everything needed to open a ticket
type CreateTicketRequest struct {
	Title       string
	Description string
	AssignedTo  string
	TargetDate  time.Time

	// Fields holds additional field reference name -> value pairs,
	// typically the Custom.* conversation fields.
	Fields map[string]string
}

// Client issues work item tracking REST calls. Calls are not retried; errors
// propagate to the caller (connector sends are the only retried I/O in the
// gateway).
type Client struct {
	orgURL   string
	project  string
	authz    string
	http     *http.Client
	logger   *slog.Logger
	workType string
}

// NewClient creates a work item client for one organization and project.
// Authentication is basic auth with a personal access token.
func NewClient(orgURL, project, username, pat string) *Client {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + pat))
	return &Client{
		orgURL:   strings.TrimRight(orgURL, "/"),
		project:  project,
		authz:    "Basic " + token,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default().With("component", "vso"),
		workType: "Task",
	}
}

// patchOp is one JSON-patch operation in a work item update document
type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

func addField(name, value string) patchOp {
	return patchOp{Op: "add", Path: "/fields/" + name, Value: value}
}

// CreateTicket opens a new work item and returns it
func (c *Client) CreateTicket(ctx context.Context, req CreateTicketRequest) (*WorkItem, error) {
	doc := []patchOp{
		addField(FieldTitle, req.Title),
		addField(FieldDescription, req.Description),
	}
	if req.AssignedTo != "" {
		doc = append(doc, addField(FieldAssignedTo, req.AssignedTo))
	}
	if !req.TargetDate.IsZero() {
		doc = append(doc, addField(FieldTargetDate, req.TargetDate.Format(time.RFC3339)))
	}
	for name, value := range req.Fields {
		doc = append(doc, addField(name, value))
	}

	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitems/$%s?api-version=%s",
		c.orgURL, url.PathEscape(c.project), url.PathEscape(c.workType), apiVersion)

	var item WorkItem
	if err := c.doPatchDocument(ctx, http.MethodPost, endpoint, doc, &item); err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	c.logger.Info("ticket created", "ticket_id", item.ID, "title", req.Title)
	return &item, nil
}

// GetTicket fetches a work item by id
func (c *Client) GetTicket(ctx context.Context, id int) (*WorkItem, error) {
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitems/%d?api-version=%s",
		c.orgURL, url.PathEscape(c.project), id, apiVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.authz)

	var item WorkItem
	if err := c.do(httpReq, &item); err != nil {
		return nil, fmt.Errorf("fetching ticket %d: %w", id, err)
	}
	return &item, nil
}

// UpdateFields patches field values on an existing work item
func (c *Client) UpdateFields(ctx context.Context, id int, fields map[string]string) (*WorkItem, error) {
	doc := make([]patchOp, 0, len(fields))
	for name, value := range fields {
		doc = append(doc, addField(name, value))
	}

	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitems/%d?api-version=%s",
		c.orgURL, url.PathEscape(c.project), id, apiVersion)

	var item WorkItem
	if err := c.doPatchDocument(ctx, http.MethodPatch, endpoint, doc, &item); err != nil {
		return nil, fmt.Errorf("updating ticket %d: %w", id, err)
	}
	return &item, nil
}

// CloseTicket moves a work item to the closed state
func (c *Client) CloseTicket(ctx context.Context, id int) (*WorkItem, error) {
	return c.UpdateFields(ctx, id, map[string]string{FieldState: StateClosed})
}

// AddComment appends a discussion comment to a work item
func (c *Client) AddComment(ctx context.Context, id int, text string) error {
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workItems/%d/comments?api-version=%s-preview.3",
		c.orgURL, url.PathEscape(c.project), id, apiVersion)

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encoding comment: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.authz)
	httpReq.Header.Set("Content-Type", "application/json")

	if err := c.do(httpReq, nil); err != nil {
		return fmt.Errorf("adding comment to ticket %d: %w", id, err)
	}
	return nil
}

// doPatchDocument sends a JSON-patch document and decodes the work item response
func (c *Client) doPatchDocument(ctx context.Context, method, endpoint string, doc []patchOp, out *WorkItem) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding patch document: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.authz)
	httpReq.Header.Set("Content-Type", "application/json-patch+json")

	return c.do(httpReq, out)
}

// do executes a request and decodes the JSON response into out (if non-nil)
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("work item API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

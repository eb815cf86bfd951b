// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jira is a small REST client for the issue tracker: issue creation,
// attachment upload and deletion, plus connectivity checks. Every request
// passes through a shared token-bucket limiter.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/deskbridge/migrator/internal/models"
)

const apiPath = "/rest/api/2"

// ErrNotFound is returned when the tracker answers 404.
var ErrNotFound = errors.New("jira: not found")

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Messages   []string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	parts := append([]string(nil), e.Messages...)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	if len(parts) == 0 {
		return fmt.Sprintf("jira API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("jira API returned HTTP %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Email       string
	APIToken    string
	BearerToken string
	RateLimit   float64 // requests per second; <= 0 disables limiting
	Burst       int
	Timeout     time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the tracker's REST API.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client. A bearer token is sent through an oauth2
// transport; otherwise requests use basic auth with email and API token.
func NewClient(ctx context.Context, cfg Config) *Client {
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		httpClient = &hc
	}
	if cfg.BearerToken != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.BearerToken,
			TokenType:   "Bearer",
		}))
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
	if cfg.BearerToken == "" {
		c.email = cfg.Email
		c.apiToken = cfg.APIToken
	}
	return c
}

// User is the authenticated account.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Project is a destination container.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// CreatedIssue is the tracker's reply to an issue create.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Attachment is one uploaded file as reported by the tracker.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Myself returns the account the credentials belong to.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/myself", nil, &u); err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	return &u, nil
}

// Project looks up a project by key.
func (c *Client) Project(ctx context.Context, key string) (*Project, error) {
	var p Project
	if err := c.doJSON(ctx, http.MethodGet, "/project/"+url.PathEscape(key), nil, &p); err != nil {
		return nil, fmt.Errorf("fetch project %s: %w", key, err)
	}
	return &p, nil
}

// CreateIssue submits a converted issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, issue *models.Issue) (*CreatedIssue, error) {
	var created CreatedIssue
	if err := c.doJSON(ctx, http.MethodPost, "/issue", issue, &created); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	slog.Info("issue created", "key", created.Key, "id", created.ID)
	return &created, nil
}

// DeleteIssue removes an issue and its subtasks.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	path := "/issue/" + url.PathEscape(key) + "?deleteSubtasks=true"
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete issue %s: %w", key, err)
	}
	return nil
}

// UploadAttachment attaches the contents of r to an issue under fileName.
func (c *Client) UploadAttachment(ctx context.Context, key, fileName string, r io.Reader) ([]Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/issue/"+url.PathEscape(key)+"/attachments", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	// Attachment uploads are rejected without the XSRF bypass header.
	req.Header.Set("X-Atlassian-Token", "no-check")

	var out []Attachment
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("upload %s to %s: %w", fileName, key, err)
	}
	return out, nil
}

// UploadFile opens path and uploads it under fileName.
func (c *Client) UploadFile(ctx context.Context, key, path, fileName string) ([]Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()
	return c.UploadAttachment(ctx, key, fileName, f)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.email != "" || c.apiToken != "" {
		req.SetBasicAuth(c.email, c.apiToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Messages = body.ErrorMessages
		apiErr.Fields = body.Errors
	}
	return apiErr
}

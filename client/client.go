package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Field is a form field as rendered for API clients
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required"`
	Visible  bool   `json:"visible"`
	Error    string `json:"error,omitempty"`
}

// Action is a form button or link
type Action struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// FieldError is a validation message on one field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Form is the JSON form model served by the account forms
type Form struct {
	ID       string       `json:"form_id"`
	Title    string       `json:"title"`
	BuildID  string       `json:"form_build_id"`
	Fields   []Field      `json:"fields"`
	Actions  []Action     `json:"actions"`
	Errors   []FieldError `json:"errors"`
	Messages []string     `json:"messages"`
}

// Field returns the named field, or nil
func (f *Form) Field(name string) *Field {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// FormError is returned when the server rejects a submission
type FormError struct {
	StatusCode int
	Form       *Form
}

func (e *FormError) Error() string {
	msgs := make([]string, 0, len(e.Form.Errors))
	for _, fe := range e.Form.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("form rejected (HTTP %d): %s", e.StatusCode, strings.Join(msgs, "; "))
}

// For returns the message reported on field, or ""
func (e *FormError) For(field string) string {
	for _, fe := range e.Form.Errors {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// APIError is a non-form error response
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed: HTTP %d", e.StatusCode)
}

// FormsClient drives the account forms over their JSON API with a bearer token
type FormsClient struct {
	mu         sync.Mutex
	serverURL  string
	httpClient *http.Client
	token      string
	accountID  int64
}

// ClientOption configures a FormsClient
type ClientOption func(*FormsClient)

// WithHTTPClient sets a custom base HTTP client (for timeouts, cookie jars, etc.)
// Its transport is wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *FormsClient) {
		if client == nil {
			return
		}
		base := client.Transport
		c.httpClient = &http.Client{
			Timeout:       client.Timeout,
			CheckRedirect: client.CheckRedirect,
			Jar:           client.Jar,
			Transport:     base,
		}
	}
}

// NewFormsClient creates a new client for a server
func NewFormsClient(serverURL string, opts ...ClientOption) *FormsClient {
	c := &FormsClient{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = &AuthTransport{Base: c.httpClient.Transport, Token: c.Token}
	return c
}

// Token returns the current bearer token
func (c *FormsClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// AccountID returns the ID of the logged in account, or 0
func (c *FormsClient) AccountID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// Login authenticates with email and password and keeps the issued token
func (c *FormsClient) Login(mail, password string) error {
	var resp struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	body := map[string]string{"mail": mail, "pass": password}
	if err := c.do(http.MethodPost, "/user/login", body, &resp); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.accountID = resp.UserID
	c.mu.Unlock()
	return nil
}

// Logout forgets the token
func (c *FormsClient) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.accountID = 0
}

// GetForm fetches a form model
func (c *FormsClient) GetForm(path string) (*Form, error) {
	var form Form
	if err := c.do(http.MethodGet, path, nil, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// Submit fetches the form at path and posts values to it. On success it
// returns the form the server redirects to.
func (c *FormsClient) Submit(path string, values map[string]any) (*Form, error) {
	form, err := c.GetForm(path)
	if err != nil {
		return nil, err
	}
	target := path
	if form.BuildID != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		target += sep + url.Values{"form_build_id": {form.BuildID}}.Encode()
	}
	var result Form
	if err := c.do(http.MethodPost, target, values, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *FormsClient) ChangeEmail(accountID int64, mail, currentPassword string) (*Form, error) {
	return c.Submit(fmt.Sprintf("/user/%d/email", accountID), map[string]any{
		"mail":         mail,
		"current_pass": currentPassword,
	})
}

func (c *FormsClient) ChangePassword(accountID int64, newPassword, currentPassword string) (*Form, error) {
	return c.Submit(fmt.Sprintf("/user/%d/password", accountID), map[string]any{
		"pass":         map[string]string{"pass1": newPassword, "pass2": newPassword},
		"current_pass": currentPassword,
	})
}

func (c *FormsClient) UpdateProfile(accountID int64, name string) (*Form, error) {
	return c.Submit(fmt.Sprintf("/user/%d/edit", accountID), map[string]any{"name": name})
}

func (c *FormsClient) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.serverURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var form Form
		if err := json.Unmarshal(data, &form); err != nil {
			return fmt.Errorf("invalid response from server: %w", err)
		}
		return &FormError{StatusCode: resp.StatusCode, Form: &form}
	case resp.StatusCode >= 300:
		apiErr := &APIError{StatusCode: resp.StatusCode}
		json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid response from server: %w", err)
		}
	}
	return nil
}

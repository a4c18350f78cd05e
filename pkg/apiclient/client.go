package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/skillbridgeai/skillbridge/pkg/session"
	"go.uber.org/zap"
)

// Sentinel errors for the response classification. Exactly one applies per
// call, checked in order: session expiry, access denial, request failure,
// network failure.
var (
	// ErrSessionExpired is returned for any 401; the local session has
	// already been cleared by the time callers see it.
	ErrSessionExpired = errors.New("api.session_expired")
	// ErrAccessDenied is returned for 403. The session is retained.
	ErrAccessDenied = errors.New("api.access_denied")
	// ErrRequestFailed covers every other non-2xx status.
	ErrRequestFailed = errors.New("api.request_failed")
	// ErrNetworkUnreachable means no HTTP response was received at all.
	// Callers may choose to degrade to offline behavior on it.
	ErrNetworkUnreachable = errors.New("api.network_unreachable")

	// ErrMissingBaseURL indicates the client was built without a base URL.
	ErrMissingBaseURL = errors.New("api.missing_base_url")
	// ErrMissingSessions indicates the client was built without a session store.
	ErrMissingSessions = errors.New("api.missing_session_store")
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Sessions   *session.Store
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the single chokepoint for backend calls. It attaches auth
// headers from the session store and classifies every failure. Its only
// side effect is forcing a logout when any endpoint answers 401.
type Client struct {
	baseURL    string
	sessions   *session.Store
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client after validating the configuration.
func NewClient(configuration Config) (*Client, error) {
	if strings.TrimSpace(configuration.BaseURL) == "" {
		return nil, fmt.Errorf("api.new: %w", ErrMissingBaseURL)
	}
	if configuration.Sessions == nil {
		return nil, fmt.Errorf("api.new: %w", ErrMissingSessions)
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(configuration.BaseURL, "/"),
		sessions:   configuration.Sessions,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Do performs an HTTP call against the backend and returns the raw JSON
// body on success.
func (client *Client) Do(ctx context.Context, method string, path string, body any) (json.RawMessage, error) {
	var payload io.Reader
	if body != nil && method != http.MethodGet {
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("api.encode: %w", marshalErr)
		}
		payload = bytes.NewReader(encoded)
	}

	request, buildErr := http.NewRequestWithContext(ctx, method, client.baseURL+path, payload)
	if buildErr != nil {
		return nil, fmt.Errorf("api.build_request: %w", buildErr)
	}
	request.Header.Set("Content-Type", "application/json")
	client.attachAuthHeader(ctx, request)

	response, transportErr := client.httpClient.Do(request)
	if transportErr != nil {
		client.logger.Warn("transport failure",
			zap.String("code", "api.transport_failure"),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(transportErr))
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, transportErr)
	}
	defer func() { _ = response.Body.Close() }()

	return client.classify(ctx, response, method, path)
}

// Get performs a GET request.
func (client *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return client.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (client *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return client.Do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with a JSON body.
func (client *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return client.Do(ctx, http.MethodPut, path, body)
}

// Patch performs a PATCH request with a JSON body.
func (client *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return client.Do(ctx, http.MethodPatch, path, body)
}

// Delete performs a DELETE request.
func (client *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return client.Do(ctx, http.MethodDelete, path, nil)
}

// UploadFile posts a multipart form. The auth header and 401 handling match
// Do, but the multipart writer owns the content type and the body is sent
// as-is.
func (client *Client) UploadFile(ctx context.Context, path string, form func(writer *multipart.Writer) error) (json.RawMessage, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	if form != nil {
		if formErr := form(writer); formErr != nil {
			return nil, fmt.Errorf("api.upload.form: %w", formErr)
		}
	}
	if closeErr := writer.Close(); closeErr != nil {
		return nil, fmt.Errorf("api.upload.form: %w", closeErr)
	}

	request, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, &buffer)
	if buildErr != nil {
		return nil, fmt.Errorf("api.build_request: %w", buildErr)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	client.attachAuthHeader(ctx, request)

	response, transportErr := client.httpClient.Do(request)
	if transportErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, transportErr)
	}
	defer func() { _ = response.Body.Close() }()

	return client.classify(ctx, response, http.MethodPost, path)
}

func (client *Client) attachAuthHeader(ctx context.Context, request *http.Request) {
	if token, found := client.sessions.Token(ctx); found {
		request.Header.Set("Authorization", "Bearer "+token)
	}
}

// classify maps the response to exactly one outcome. The checks are ordered
// and mutually exclusive: 401, then 403, then any other non-2xx, else the
// body is returned.
func (client *Client) classify(ctx context.Context, response *http.Response, method string, path string) (json.RawMessage, error) {
	if response.StatusCode == http.StatusUnauthorized {
		client.logger.Info("authorization expired, clearing session",
			zap.String("code", "api.session_expired"),
			zap.String("method", method),
			zap.String("path", path))
		client.sessions.Logout(ctx)
		return nil, fmt.Errorf("%w: %s %s", ErrSessionExpired, method, path)
	}
	if response.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s %s", ErrAccessDenied, method, path)
	}

	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, readErr)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, serverMessage(rawBody, response.StatusCode))
	}
	return json.RawMessage(rawBody), nil
}

// serverMessage extracts the server-supplied error text, preferring the
// "detail" field, then "message", then the generic status text.
func serverMessage(rawBody []byte, statusCode int) string {
	var envelope struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if unmarshalErr := json.Unmarshal(rawBody, &envelope); unmarshalErr == nil {
		if strings.TrimSpace(envelope.Detail) != "" {
			return envelope.Detail
		}
		if strings.TrimSpace(envelope.Message) != "" {
			return envelope.Message
		}
	}
	return fmt.Sprintf("request failed with status %d %s", statusCode, http.StatusText(statusCode))
}

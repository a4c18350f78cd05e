package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skillbridgeai/skillbridge/pkg/session"
)

type recordingNavigator struct {
	targets []string
}

func (navigator *recordingNavigator) Navigate(target string) {
	navigator.targets = append(navigator.targets, target)
}

func newAuthenticatedStore(t *testing.T) (*session.Store, *recordingNavigator) {
	t.Helper()
	navigator := &recordingNavigator{}
	store, storeErr := session.NewStore(session.Config{
		Backend:   session.NewMemoryBackend(),
		Navigator: navigator,
	})
	if storeErr != nil {
		t.Fatalf("NewStore failed: %v", storeErr)
	}
	profile := session.UserProfile{Name: "Asel Nurlanovna", Email: "asel@example.com"}
	if establishErr := store.Establish(context.Background(), "token-123", profile, session.RoleStudent); establishErr != nil {
		t.Fatalf("Establish failed: %v", establishErr)
	}
	return store, navigator
}

func newTestClient(t *testing.T, baseURL string, sessions *session.Store) *Client {
	t.Helper()
	client, clientErr := NewClient(Config{BaseURL: baseURL, Sessions: sessions})
	if clientErr != nil {
		t.Fatalf("NewClient failed: %v", clientErr)
	}
	return client
}

func TestNewClientValidatesConfiguration(t *testing.T) {
	t.Parallel()

	store, _ := newAuthenticatedStore(t)
	if _, clientErr := NewClient(Config{Sessions: store}); !errors.Is(clientErr, ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", clientErr)
	}
	if _, clientErr := NewClient(Config{BaseURL: "http://localhost:8000"}); !errors.Is(clientErr, ErrMissingSessions) {
		t.Fatalf("expected ErrMissingSessions, got %v", clientErr)
	}
}

func TestDoAttachesBearerTokenAndDecodesBody(t *testing.T) {
	t.Parallel()

	var observedAuthorization string
	var observedContentType string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		observedAuthorization = request.Header.Get("Authorization")
		observedContentType = request.Header.Get("Content-Type")
		responseWriter.Header().Set("Content-Type", "application/json")
		_, _ = responseWriter.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	store, _ := newAuthenticatedStore(t)
	client := newTestClient(t, server.URL, store)

	rawBody, callErr := client.Post(context.Background(), "/auth/send-otp", map[string]string{"email": "asel@example.com"})
	if callErr != nil {
		t.Fatalf("unexpected call error: %v", callErr)
	}
	if observedAuthorization != "Bearer token-123" {
		t.Fatalf("expected bearer header, got %q", observedAuthorization)
	}
	if observedContentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", observedContentType)
	}

	var decoded struct {
		Message string `json:"message"`
	}
	if unmarshalErr := json.Unmarshal(rawBody, &decoded); unmarshalErr != nil {
		t.Fatalf("failed to decode body: %v", unmarshalErr)
	}
	if decoded.Message != "ok" {
		t.Fatalf("expected message ok, got %q", decoded.Message)
	}
}

func TestDoOmitsAuthHeaderWithoutSession(t *testing.T) {
	t.Parallel()

	var observedAuthorization string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		observedAuthorization = request.Header.Get("Authorization")
		_, _ = responseWriter.Write([]byte(`{}`))
	}))
	defer server.Close()

	store, storeErr := session.NewStore(session.Config{Backend: session.NewMemoryBackend()})
	if storeErr != nil {
		t.Fatalf("NewStore failed: %v", storeErr)
	}
	client := newTestClient(t, server.URL, store)

	if _, callErr := client.Get(context.Background(), "/health"); callErr != nil {
		t.Fatalf("unexpected call error: %v", callErr)
	}
	if observedAuthorization != "" {
		t.Fatalf("expected no auth header, got %q", observedAuthorization)
	}
}

func TestUnauthorizedResponseForcesLogout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusUnauthorized)
		_, _ = responseWriter.Write([]byte(`{"detail":"Invalid or expired token."}`))
	}))
	defer server.Close()

	store, navigator := newAuthenticatedStore(t)
	client := newTestClient(t, server.URL, store)

	_, callErr := client.Get(context.Background(), "/api/me")
	if !errors.Is(callErr, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", callErr)
	}
	if store.IsAuthenticated(context.Background()) {
		t.Fatalf("expected the session to be cleared after a 401")
	}
	if len(navigator.targets) != 1 || navigator.targets[0] != session.DefaultEntryRoute {
		t.Fatalf("expected a redirect to the entry route, got %v", navigator.targets)
	}
}

func TestForbiddenResponseKeepsSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusForbidden)
		_, _ = responseWriter.Write([]byte(`{"detail":"Insufficient permissions for this action."}`))
	}))
	defer server.Close()

	store, navigator := newAuthenticatedStore(t)
	client := newTestClient(t, server.URL, store)

	_, callErr := client.Get(context.Background(), "/api/admin/metrics")
	if !errors.Is(callErr, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", callErr)
	}
	if !store.IsAuthenticated(context.Background()) {
		t.Fatalf("expected the session to survive a 403")
	}
	if len(navigator.targets) != 0 {
		t.Fatalf("expected no navigation on 403, got %v", navigator.targets)
	}
}

func TestRequestFailurePrefersDetailField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		body            string
		expectedMessage string
	}{
		{name: "detail field", body: `{"detail":"Invalid admin passcode."}`, expectedMessage: "Invalid admin passcode."},
		{name: "message field", body: `{"message":"try again later"}`, expectedMessage: "try again later"},
		{name: "unparseable body", body: `<html>oops</html>`, expectedMessage: "request failed with status 500 Internal Server Error"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
				responseWriter.WriteHeader(http.StatusInternalServerError)
				_, _ = responseWriter.Write([]byte(testCase.body))
			}))
			defer server.Close()

			store, _ := newAuthenticatedStore(t)
			client := newTestClient(t, server.URL, store)

			_, callErr := client.Get(context.Background(), "/api/me")
			if !errors.Is(callErr, ErrRequestFailed) {
				t.Fatalf("expected ErrRequestFailed, got %v", callErr)
			}
			if !strings.Contains(callErr.Error(), testCase.expectedMessage) {
				t.Fatalf("expected error to carry %q, got %v", testCase.expectedMessage, callErr)
			}
		})
	}
}

func TestTransportFailureClassifiesAsNetworkUnreachable(t *testing.T) {
	t.Parallel()

	store, _ := newAuthenticatedStore(t)
	client := newTestClient(t, "http://127.0.0.1:1", store)

	_, callErr := client.Get(context.Background(), "/api/me")
	if !errors.Is(callErr, ErrNetworkUnreachable) {
		t.Fatalf("expected ErrNetworkUnreachable, got %v", callErr)
	}
	if !store.IsAuthenticated(context.Background()) {
		t.Fatalf("expected the session to survive a network failure")
	}
}

func TestUploadFileSendsMultipartForm(t *testing.T) {
	t.Parallel()

	var observedContentType string
	var observedField string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		observedContentType = request.Header.Get("Content-Type")
		if parseErr := request.ParseMultipartForm(1 << 20); parseErr != nil {
			http.Error(responseWriter, parseErr.Error(), http.StatusBadRequest)
			return
		}
		file, _, openErr := request.FormFile("resume")
		if openErr != nil {
			http.Error(responseWriter, openErr.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()
		contents, _ := io.ReadAll(file)
		observedField = string(contents)
		_, _ = responseWriter.Write([]byte(`{"message":"uploaded"}`))
	}))
	defer server.Close()

	store, _ := newAuthenticatedStore(t)
	client := newTestClient(t, server.URL, store)

	_, callErr := client.UploadFile(context.Background(), "/api/resume", func(writer *multipart.Writer) error {
		part, partErr := writer.CreateFormFile("resume", "resume.txt")
		if partErr != nil {
			return partErr
		}
		_, writeErr := part.Write([]byte("resume contents"))
		return writeErr
	})
	if callErr != nil {
		t.Fatalf("unexpected upload error: %v", callErr)
	}
	if !strings.HasPrefix(observedContentType, "multipart/form-data; boundary=") {
		t.Fatalf("expected multipart content type, got %q", observedContentType)
	}
	if observedField != "resume contents" {
		t.Fatalf("expected uploaded contents to round-trip, got %q", observedField)
	}
}

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"voxid/pkg/testutil"
)

// recordingSamples is the PCM sample count of generated recordings.
const recordingSamples = 16000

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	AccessToken      string
	RefreshToken     string
	IdentityID       string
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &TestContext{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Recording builds a mono WAV whose samples are derived from name, so the
// same name always produces the same bytes.
func Recording(name string) []byte {
	wav := testutil.MonoWAV(recordingSamples)
	const headerSize = 44
	block := sha256.Sum256([]byte(name))
	for i := headerSize; i < len(wav); i += len(block) {
		copy(wav[i:], block[:])
		block = sha256.Sum256(block[:])
	}
	return wav
}

// Upload posts a multipart form with the recording as the voice part.
func (tc *TestContext) Upload(path, recording string, fields map[string]string) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("voice", recording+".wav")
	if err != nil {
		return err
	}
	if _, err := fw.Write(Recording(recording)); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, body, mw.FormDataContentType(), nil)
}

// POST makes a JSON POST request and stores the response
func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(data), "application/json", headers)
}

// Request makes a body-less request and stores the response
func (tc *TestContext) Request(method, path string, headers map[string]string) error {
	return tc.do(method, path, nil, "", headers)
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// BearerHeader authorizes with the saved access token.
func (tc *TestContext) BearerHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + tc.AccessToken}
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// postJSON sends body to url and decodes a 2xx response into out.
// Failures come back as *Error.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(provider, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindMalformed, Provider: provider, Err: err}
	}
	return nil
}

// checkStatus converts a non-2xx response into a status *Error.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		Kind:       KindStatus,
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}

func malformed(provider, format string, args ...any) error {
	return &Error{Kind: KindMalformed, Provider: provider, Err: fmt.Errorf(format, args...)}
}

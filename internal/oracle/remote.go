package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

const defaultRemoteTimeout = 30 * time.Second

// Remote is an oracle backed by an HTTP analysis service. The service
// exposes three JSON endpoints mirroring the capability interface:
//
//	POST {endpoint}/v1/extract     {model, review}          -> {claims}
//	POST {endpoint}/v1/similarity  {model, a, b}            -> {score}
//	POST {endpoint}/v1/synthesis   {model, request}         -> {draft}
//
// Rate-limited calls are retried with exponential backoff; auth failures are
// surfaced immediately.
type Remote struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewRemote creates a remote oracle from the given options.
func NewRemote(opts Options) (*Remote, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("remote oracle requires an endpoint")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("remote oracle requires an API key")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		endpoint: opts.Endpoint,
		model:    opts.Model,
		apiKey:   opts.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies this oracle implementation.
func (r *Remote) Name() string { return "remote" }

type extractRequest struct {
	Model  string         `json:"model,omitempty"`
	Review *review.Review `json:"review"`
}

type extractResponse struct {
	Claims []ClaimDraft `json:"claims"`
}

// ExtractClaims requests candidate claims for one review.
func (r *Remote) ExtractClaims(ctx context.Context, rev *review.Review) ([]ClaimDraft, error) {
	var resp extractResponse
	if err := r.post(ctx, "/v1/extract", extractRequest{Model: r.model, Review: rev}, &resp); err != nil {
		return nil, fmt.Errorf("extract call: %w", err)
	}
	return resp.Claims, nil
}

type similarityRequest struct {
	Model string `json:"model,omitempty"`
	A     string `json:"a"`
	B     string `json:"b"`
}

type similarityResponse struct {
	Score float64 `json:"score"`
}

// ScoreSimilarity requests a semantic-equivalence score for two descriptions.
func (r *Remote) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	var resp similarityResponse
	if err := r.post(ctx, "/v1/similarity", similarityRequest{Model: r.model, A: a, B: b}, &resp); err != nil {
		return 0, fmt.Errorf("similarity call: %w", err)
	}
	if resp.Score < 0 || resp.Score > 1 {
		return 0, fmt.Errorf("similarity score out of range: %f", resp.Score)
	}
	return resp.Score, nil
}

type synthesisRequest struct {
	Model   string           `json:"model,omitempty"`
	Request SynthesisRequest `json:"request"`
}

type synthesisResponse struct {
	Draft SynthesisDraft `json:"draft"`
}

// DraftSynthesis requests action items and open questions for a manuscript.
func (r *Remote) DraftSynthesis(ctx context.Context, req SynthesisRequest) (SynthesisDraft, error) {
	var resp synthesisResponse
	if err := r.post(ctx, "/v1/synthesis", synthesisRequest{Model: r.model, Request: req}, &resp); err != nil {
		return SynthesisDraft{}, fmt.Errorf("synthesis call: %w", err)
	}
	return resp.Draft, nil
}

// post sends one JSON request and decodes the JSON response, retrying on
// rate limiting.
func (r *Remote) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	return retryWithBackoff(ctx, 3, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

		httpResp, err := r.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return &rateLimitError{}
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return &authError{message: string(respBody)}
		case httpResp.StatusCode != http.StatusOK:
			return fmt.Errorf("analysis service returned %d: %s", httpResp.StatusCode, respBody)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		return nil
	})
}

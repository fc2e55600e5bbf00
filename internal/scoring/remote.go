// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/triage-engine/internal/httputil"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// Remote delegates scoring to an external classifier service over HTTP.
// The service receives the citations, the labeled ids, and the previous
// scores, and answers with a score per citation id.
type Remote struct {
	client *http.Client
	cfg    types.ScoringConfig
}

// remoteRequest is the JSON body sent to the classifier.
type remoteRequest struct {
	Citations      []remoteCitation   `json:"citations"`
	RelevantIDs    []string           `json:"relevant_ids"`
	IrrelevantIDs  []string           `json:"irrelevant_ids"`
	PreviousScores map[string]float64 `json:"previous_scores"`
}

type remoteCitation struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	Journal  string `json:"journal,omitempty"`
	Year     int    `json:"year,omitempty"`
}

// remoteResponse is the JSON body returned by the classifier.
type remoteResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// NewRemote returns a Remote model. A nil client uses one with cfg.Timeout.
func NewRemote(client *http.Client, cfg types.ScoringConfig) (*Remote, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote scoring requires a classifier URL")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Remote{client: client, cfg: cfg}, nil
}

// Name implements Model.
func (m *Remote) Name() string { return "remote" }

// Rescore implements Model.
func (m *Remote) Rescore(ctx context.Context, in Input) (map[string]float64, error) {
	body := remoteRequest{
		Citations:      make([]remoteCitation, len(in.Citations)),
		RelevantIDs:    make([]string, len(in.Relevant)),
		IrrelevantIDs:  make([]string, len(in.Irrelevant)),
		PreviousScores: in.Previous,
	}
	for i, c := range in.Citations {
		body.Citations[i] = remoteCitation{ID: c.ID, Title: c.Title, Abstract: c.Abstract, Journal: c.Journal, Year: c.Year}
	}
	for i, c := range in.Relevant {
		body.RelevantIDs[i] = c.ID
	}
	for i, c := range in.Irrelevant {
		body.IrrelevantIDs[i] = c.ID
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.RemoteURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", m.cfg.UserAgent)
	}
	if m.cfg.RemoteAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.RemoteAPIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, m.client, req, m.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding classifier response: %w", err)
	}
	return out.Scores, nil
}

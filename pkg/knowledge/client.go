// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package knowledge enriches classified components with descriptive text
// from an external knowledge-retrieval service. The service is slow,
// sometimes unavailable and not deterministic; every call here is bounded
// and degrades to templated text instead of failing the caller.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Knowledge model identifiers for the two query kinds.
const (
	ModelArchitecture = "ModularBanking, TechnologyOverview"
	ModelFunction     = "ModularBanking, FuncTransactGeneric"
)

// DefaultRegion tags every query.
const DefaultRegion = "global"

const (
	// clientTimeout exceeds the per-query deadline so the transport never
	// cuts a query short before the caller's context does.
	clientTimeout      = 70 * time.Second
	healthCheckTimeout = 5 * time.Second
)

// Client talks to the knowledge-retrieval question/answer endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a knowledge client. An empty baseURL or token leaves the
// client unconfigured; queries then fail fast and the enricher falls back to
// templated descriptions.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: clientTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Configured reports whether the client has both an endpoint and a token.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

type queryRequest struct {
	Question   string `json:"question"`
	Region     string `json:"region"`
	RAGModelID string `json:"RAGmodelId,omitempty"`
	Context    string `json:"context,omitempty"`
}

type queryAnswer struct {
	Answer string `json:"answer"`
}

// queryResponse accepts both the wrapped and the bare response shape the
// service is known to emit.
type queryResponse struct {
	Data   *queryAnswer `json:"data"`
	Answer string       `json:"answer"`
}

// Query sends one question and returns the free-text answer. The caller
// bounds the call through ctx; transport and non-2xx failures are returned
// as errors for the enricher to degrade on.
func (c *Client) Query(ctx context.Context, question, region, modelID, extraContext string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("knowledge service not configured")
	}

	body, err := json.Marshal(queryRequest{
		Question:   question,
		Region:     region,
		RAGModelID: modelID,
		Context:    extraContext,
	})
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1.0/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("knowledge query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("knowledge query: unexpected status %d", resp.StatusCode)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	if decoded.Data != nil && decoded.Data.Answer != "" {
		return decoded.Data.Answer, nil
	}
	if decoded.Answer != "" {
		return decoded.Answer, nil
	}
	return "", fmt.Errorf("knowledge query: empty answer")
}

// Healthy probes the service with a short bounded test question. Used to
// decide whether cached minimal entries should be recomputed.
func (c *Client) Healthy(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_, err := c.Query(ctx, "test", DefaultRegion, ModelArchitecture, "")
	return err == nil
}

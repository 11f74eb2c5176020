// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package azure enumerates resource groups and resources through the Azure
// Resource Manager REST API and fetches AKS admin credentials.
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/compscout/comp-scout/pkg/cluster"
	"github.com/compscout/comp-scout/pkg/resource"
)

const (
	// DefaultBaseURL is the public ARM endpoint.
	DefaultBaseURL = "https://management.azure.com"

	resourcesAPIVersion   = "2021-04-01"
	managedClusterVersion = "2024-05-01"

	tokenTimeout = 15 * time.Second
)

// TokenSource yields a bearer token for management API calls.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken wraps an already-obtained token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		if token == "" {
			return "", fmt.Errorf("empty access token")
		}
		return token, nil
	}
}

// EnvOrCLIToken reads AZURE_ACCESS_TOKEN, falling back to the Azure CLI
// when the variable is unset. The CLI must be logged in for the fallback
// to work.
func EnvOrCLIToken(run cluster.Runner) TokenSource {
	if run == nil {
		run = cluster.ExecRunner
	}
	return func(ctx context.Context) (string, error) {
		if token := os.Getenv("AZURE_ACCESS_TOKEN"); token != "" {
			return token, nil
		}
		out, err := run(ctx, tokenTimeout, nil, "az", "account", "get-access-token", "--query", "accessToken", "--output", "tsv")
		if err != nil {
			return "", fmt.Errorf("no AZURE_ACCESS_TOKEN set and az CLI token fetch failed: %w", err)
		}
		token := strings.TrimSpace(string(out))
		if token == "" {
			return "", fmt.Errorf("az CLI returned an empty access token")
		}
		return token, nil
	}
}

// Client talks to the Azure Resource Manager API for one subscription.
// All discovery requests go through this client.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	subscriptionID string
	tokens         TokenSource

	// Log receives progress and skip messages. Optional.
	Log func(format string, args ...any)
}

// NewClient creates a management client for the subscription.
func NewClient(subscriptionID string, tokens TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:        DefaultBaseURL,
		subscriptionID: subscriptionID,
		tokens:         tokens,
	}
}

// SetBaseURL points the client at a different ARM endpoint. Used by tests
// and sovereign clouds.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// SubscriptionID returns the subscription this client operates on.
func (c *Client) SubscriptionID() string {
	return c.subscriptionID
}

func (c *Client) logf(format string, args ...any) {
	if c.Log != nil {
		c.Log(format, args...)
	}
}

// get issues an authenticated GET against an ARM URL. The url may be a
// relative path or an absolute nextLink.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader) ([]byte, error) {
	token, err := c.tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	if !strings.HasPrefix(rawURL, "http") {
		rawURL = c.baseURL + rawURL
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("management API request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	return payload, nil
}

// APIError is a non-2xx answer from the management API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("management API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("management API returned status %d: %s", e.StatusCode, e.Body)
}

// StatusOf extracts the HTTP status from an error chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type groupListPage struct {
	Value    []resource.Group `json:"value"`
	NextLink string           `json:"nextLink"`
}

type armResource struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	Tags       map[string]string `json:"tags"`
	Properties json.RawMessage   `json:"properties"`
}

type resourceListPage struct {
	Value    []armResource `json:"value"`
	NextLink string        `json:"nextLink"`
}

// ListResourceGroups enumerates every resource group in the subscription,
// following pagination links.
func (c *Client) ListResourceGroups(ctx context.Context) ([]resource.Group, error) {
	next := fmt.Sprintf("/subscriptions/%s/resourcegroups?api-version=%s",
		url.PathEscape(c.subscriptionID), resourcesAPIVersion)

	var groups []resource.Group
	for next != "" {
		payload, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("list resource groups: %w", err)
		}
		var page groupListPage
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, fmt.Errorf("decode resource groups: %w", err)
		}
		groups = append(groups, page.Value...)
		next = page.NextLink
	}
	c.logf("found %d resource groups", len(groups))
	return groups, nil
}

// ListResources enumerates the resources of each group. A group that fails
// to list is logged and skipped; the remaining groups still contribute.
func (c *Client) ListResources(ctx context.Context, groups []resource.Group) ([]resource.CloudResource, error) {
	var out []resource.CloudResource
	for _, g := range groups {
		resources, err := c.listGroupResources(ctx, g.Name)
		if err != nil {
			c.logf("skipping resource group %s: %v", g.Name, err)
			continue
		}
		out = append(out, resources...)
	}
	return out, nil
}

func (c *Client) listGroupResources(ctx context.Context, group string) ([]resource.CloudResource, error) {
	next := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/resources?api-version=%s",
		url.PathEscape(c.subscriptionID), url.PathEscape(group), resourcesAPIVersion)

	var out []resource.CloudResource
	for next != "" {
		payload, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		var page resourceListPage
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, fmt.Errorf("decode resources: %w", err)
		}
		for _, raw := range page.Value {
			out = append(out, resource.CloudResource{
				ID:            raw.ID,
				Name:          raw.Name,
				Type:          raw.Type,
				Location:      raw.Location,
				ResourceGroup: group,
				Tags:          raw.Tags,
				Properties:    flattenProperties(raw.Properties),
			})
		}
		next = page.NextLink
	}
	return out, nil
}

// flattenProperties keeps the scalar top-level properties of a resource as
// strings. Nested objects are dropped; classification only consults
// scalars.
func flattenProperties(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	props := make(map[string]string, len(generic))
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			props[k] = val
		case float64:
			props[k] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
		case bool:
			props[k] = fmt.Sprintf("%t", val)
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

type credentialList struct {
	Kubeconfigs []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"kubeconfigs"`
}

// AdminKubeconfig fetches the admin kubeconfig of an AKS cluster. Satisfies
// the credential resolver's admin source.
func (c *Client) AdminKubeconfig(ctx context.Context, resourceGroup, clusterName string) ([]byte, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerService/managedClusters/%s/listClusterAdminCredential?api-version=%s",
		url.PathEscape(c.subscriptionID), url.PathEscape(resourceGroup), url.PathEscape(clusterName), managedClusterVersion)

	payload, err := c.do(ctx, http.MethodPost, path, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("list admin credential for %s: %w", clusterName, err)
	}
	var creds credentialList
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("decode admin credential: %w", err)
	}
	if len(creds.Kubeconfigs) == 0 {
		return nil, fmt.Errorf("no kubeconfig returned for cluster %s", clusterName)
	}
	decoded, err := base64.StdEncoding.DecodeString(creds.Kubeconfigs[0].Value)
	if err != nil {
		return nil, fmt.Errorf("decode kubeconfig for %s: %w", clusterName, err)
	}
	return decoded, nil
}

// TestConnection verifies the token and subscription by fetching the
// subscription record. Failures come back with remediation guidance.
func (c *Client) TestConnection(ctx context.Context) error {
	path := fmt.Sprintf("/subscriptions/%s?api-version=%s", url.PathEscape(c.subscriptionID), resourcesAPIVersion)
	_, err := c.get(ctx, path)
	if err == nil {
		return nil
	}

	switch StatusOf(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("authentication failed (401): the access token is missing or expired.\n\nRun: az login\nThen: export AZURE_ACCESS_TOKEN=$(az account get-access-token --query accessToken --output tsv)")
	case http.StatusForbidden:
		return fmt.Errorf("access denied (403): the token lacks permission on subscription %s.\n\nThe identity needs at least the Reader role on the subscription", c.subscriptionID)
	case http.StatusNotFound:
		return fmt.Errorf("subscription %s not found (404).\n\nCheck AZURE_SUBSCRIPTION_ID, or list subscriptions with: az account list --output table", c.subscriptionID)
	}
	return fmt.Errorf("cannot reach the Azure management API: %w\n\nCheck network connectivity and proxy settings", err)
}

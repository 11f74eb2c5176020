// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compscout/comp-scout/pkg/knowledge"
	"github.com/compscout/comp-scout/pkg/resource"
)

// countingClient answers every query with fixed text and counts calls.
type countingClient struct {
	queries int
}

func (c *countingClient) Query(context.Context, string, string, string, string) (string, error) {
	c.queries++
	return "The component supports processing of banking transactions across all configured channels.", nil
}

func (c *countingClient) Healthy(context.Context) bool { return true }
func (c *countingClient) Configured() bool             { return true }

func newTestAnalyzer() (*Analyzer, *countingClient) {
	client := &countingClient{}
	return NewAnalyzer(knowledge.NewEnricher(client)), client
}

func nsPod(name, namespace string) resource.CloudResource {
	return resource.Pod{
		Name:          name,
		Namespace:     namespace,
		ClusterName:   "aks-prod",
		ResourceGroup: "rg-banking",
		Status:        "Running",
	}.ToCloudResource()
}

func TestAnalyzeEmptyInput(t *testing.T) {
	a, _ := newTestAnalyzer()
	_, err := a.Analyze(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resources")
}

func TestAnalyzeGroupsNamespacePodsIntoOneComponent(t *testing.T) {
	a, client := newTestAnalyzer()

	report, err := a.Analyze(context.Background(), []resource.CloudResource{
		nsPod("pod-a", "adapterservice"),
		nsPod("pod-b", "adapterservice"),
		nsPod("pod-c", "adapterservice"),
	}, Options{})
	require.NoError(t, err)

	require.Len(t, report.Components, 1)
	got := report.Components[0]
	require.NotNil(t, got.Knowledge)
	assert.Equal(t, "Adapter Microservice", got.Knowledge.ComponentName)
	assert.Equal(t, []string{"pod-b", "pod-c"}, got.Knowledge.RelatedServices)
	assert.Empty(t, report.Unclassified)

	// One knowledge query pair for the whole namespace.
	assert.Equal(t, 2, client.queries)
}

func TestAnalyzeDropsDenyListedInfrastructure(t *testing.T) {
	a, _ := newTestAnalyzer()

	report, err := a.Analyze(context.Background(), []resource.CloudResource{
		{Name: "transact-logs", Type: "Microsoft.Storage/storageAccounts"},
		{Name: "transact-vault", Type: "Microsoft.KeyVault/vaults"},
		nsPod("pod-a", "eventstore"),
	}, Options{})
	require.NoError(t, err)

	require.Len(t, report.Components, 1)
	assert.Equal(t, "Event Store Microservice", report.Components[0].Knowledge.ComponentName)
	assert.Empty(t, report.Unclassified, "deny-listed resources never surface, even as unclassified")
}

func TestAnalyzeNonCandidateBecomesUnclassified(t *testing.T) {
	a, _ := newTestAnalyzer()

	report, err := a.Analyze(context.Background(), []resource.CloudResource{
		{Name: "random-thing", Type: "Microsoft.Web/sites"},
		nsPod("pod-a", "deposits202507"),
	}, Options{})
	require.NoError(t, err)

	require.Len(t, report.Components, 1)
	assert.Equal(t, "Deposits Microservice", report.Components[0].Knowledge.ComponentName)
	require.Len(t, report.Unclassified, 1)
	assert.Equal(t, "random-thing", report.Unclassified[0].Resource.Name)
	assert.NotEmpty(t, report.Unclassified[0].Error)
}

func TestAnalyzeResidualInfrastructureFiltered(t *testing.T) {
	a, _ := newTestAnalyzer()

	report, err := a.Analyze(context.Background(), []resource.CloudResource{
		{Name: "vm-jumpbox", Type: "Microsoft.Compute/virtualMachines"},
		nsPod("pod-a", "holdings"),
	}, Options{})
	require.NoError(t, err)

	require.Len(t, report.Components, 1)
	assert.Empty(t, report.Unclassified, "residual infrastructure types are filtered from the unclassified list")
}

func TestAnalyzeForceRefreshClearsCache(t *testing.T) {
	a, client := newTestAnalyzer()
	input := []resource.CloudResource{nsPod("pod-a", "adapterservice")}

	_, err := a.Analyze(context.Background(), input, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, client.queries)

	_, err = a.Analyze(context.Background(), input, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, client.queries, "second run reuses the cache")

	_, err = a.Analyze(context.Background(), input, Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 4, client.queries, "force refresh re-queries")
}

func TestAnalyzeCancelledContext(t *testing.T) {
	a, _ := newTestAnalyzer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, []resource.CloudResource{nsPod("pod-a", "adapterservice")}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestAnalyzeBatchesPaced(t *testing.T) {
	a, _ := newTestAnalyzer()
	a.BatchSize = 2

	report, err := a.Analyze(context.Background(), []resource.CloudResource{
		nsPod("pod-a", "adapterservice"),
		nsPod("pod-b", "eventstore"),
		nsPod("pod-c", "holdings"),
		nsPod("pod-d", "deposits202507"),
		nsPod("pod-e", "party"),
	}, Options{})
	require.NoError(t, err)
	assert.Len(t, report.Components, 5)
}

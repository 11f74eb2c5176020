// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package pipeline runs the discovery and classification flow: candidate
// filtering, paced classification with knowledge enrichment, and
// aggregation of duplicates into one component per canonical name.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/compscout/comp-scout/pkg/classify"
	"github.com/compscout/comp-scout/pkg/cluster"
	"github.com/compscout/comp-scout/pkg/knowledge"
	"github.com/compscout/comp-scout/pkg/resource"
)

const (
	defaultBatchSize = 3
	batchPause       = 200 * time.Millisecond
)

// Options tune one analysis run.
type Options struct {
	// ForceRefresh drops the knowledge cache before processing.
	ForceRefresh bool
	// NamespaceFilter restricts pod discovery to matching namespaces.
	NamespaceFilter []string
	// SkipPodDiscovery leaves AKS clusters unexpanded.
	SkipPodDiscovery bool
}

// Report is the outcome of one analysis run.
type Report struct {
	Components   []resource.AnalysisResult `json:"components"`
	Unclassified []resource.AnalysisResult `json:"unclassified,omitempty"`
}

// Analyzer drives classification and enrichment over a resource set.
// Processing is strictly sequential; batches only pace the knowledge
// service, they do not parallelize.
type Analyzer struct {
	Enricher *knowledge.Enricher
	// Pods expands AKS clusters found in the input into pod resources.
	// Optional; without it clusters are classified as-is.
	Pods *cluster.PodDiscovery
	// Log receives progress messages. Optional.
	Log func(format string, args ...any)
	// BatchSize overrides the pacing batch size, for tests.
	BatchSize int

	limiter *rate.Limiter
}

// NewAnalyzer wires an analyzer around an enricher.
func NewAnalyzer(enricher *knowledge.Enricher) *Analyzer {
	return &Analyzer{Enricher: enricher}
}

func (a *Analyzer) logf(format string, args ...any) {
	if a.Log != nil {
		a.Log(format, args...)
	}
}

func (a *Analyzer) batchSize() int {
	if a.BatchSize > 0 {
		return a.BatchSize
	}
	return defaultBatchSize
}

// pace blocks until the next batch may start. The first batch is admitted
// immediately.
func (a *Analyzer) pace(ctx context.Context) error {
	if a.limiter == nil {
		a.limiter = rate.NewLimiter(rate.Every(batchPause), 1)
	}
	return a.limiter.Wait(ctx)
}

// Analyze classifies and enriches the given resources. AKS clusters in the
// input are expanded into their pods when a pod discovery is wired.
// Deny-listed infrastructure is dropped outright; resources that pass the
// candidate filter but match no classification rule come back unclassified.
func (a *Analyzer) Analyze(ctx context.Context, resources []resource.CloudResource, opts Options) (*Report, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("no resources to analyze")
	}
	if opts.ForceRefresh && a.Enricher != nil {
		a.logf("force refresh requested; clearing knowledge cache")
		a.Enricher.Cache.Clear()
	}

	if !opts.SkipPodDiscovery && a.Pods != nil {
		pods := a.Pods.DiscoverPods(ctx, resources, opts.NamespaceFilter)
		if len(pods) > 0 {
			a.logf("discovered %d pods across AKS clusters", len(pods))
			resources = append(resources, pods...)
		}
	}

	var candidates []resource.CloudResource
	var unclassified []resource.AnalysisResult
	for _, r := range resources {
		if classify.IsInfrastructure(r.Type) {
			continue
		}
		if !classify.IsCandidate(r) {
			unclassified = append(unclassified, resource.AnalysisResult{
				Resource: r,
				Error:    "not recognized as a platform component",
			})
			continue
		}
		candidates = append(candidates, r)
	}
	a.logf("analyzing %d candidate resources", len(candidates))

	var identified []resource.AnalysisResult
	size := a.batchSize()
	for start := 0; start < len(candidates); start += size {
		if err := a.pace(ctx); err != nil {
			return nil, fmt.Errorf("analysis interrupted: %w", err)
		}
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		for _, r := range candidates[start:end] {
			c := classify.Classify(r)
			if c == nil {
				unclassified = append(unclassified, resource.AnalysisResult{
					Resource: r,
					Error:    "no classification rule matched",
				})
				continue
			}
			result := resource.AnalysisResult{Resource: r}
			if a.Enricher != nil {
				result.Knowledge = a.Enricher.Enrich(ctx, r, c)
			}
			if result.Knowledge == nil {
				result.Knowledge = &resource.ComponentKnowledge{
					ComponentName: c.NormalizedName,
					ComponentType: classify.TypeLabel(r),
				}
			}
			identified = append(identified, result)
		}
	}

	return &Report{
		Components:   Aggregate(identified),
		Unclassified: FilterResidualInfrastructure(unclassified),
	}, nil
}

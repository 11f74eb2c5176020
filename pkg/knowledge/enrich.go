// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/compscout/comp-scout/pkg/classify"
	"github.com/compscout/comp-scout/pkg/resource"
)

// queryTimeout bounds each of the two knowledge queries independently.
const queryTimeout = 60 * time.Second

// queryContext accompanies every component query.
const queryContext = "This is a Temenos microservice component in a core banking system deployment. " +
	"Provide comprehensive, detailed, and thorough information."

// QueryClient is the slice of Client the enricher needs; tests substitute a
// scripted implementation.
type QueryClient interface {
	Query(ctx context.Context, question, region, modelID, extraContext string) (string, error)
	Healthy(ctx context.Context) bool
	Configured() bool
}

// Cache holds one knowledge entry per lower-cased canonical name for the
// duration of a run. Processing is strictly sequential, so a plain map
// suffices; a parallel caller would need to add its own synchronization.
type Cache struct {
	entries map[string]*resource.ComponentKnowledge
	// recomputed marks minimal entries already refreshed once this run, so
	// a flapping service cannot cause repeated recomputation.
	recomputed map[string]bool
}

// NewCache creates an empty per-run cache.
func NewCache() *Cache {
	return &Cache{
		entries:    make(map[string]*resource.ComponentKnowledge),
		recomputed: make(map[string]bool),
	}
}

// Get returns the cached entry for the canonical name, if any.
func (c *Cache) Get(name string) (*resource.ComponentKnowledge, bool) {
	k, ok := c.entries[strings.ToLower(name)]
	return k, ok
}

// Put stores the entry under the lower-cased canonical name.
func (c *Cache) Put(name string, k *resource.ComponentKnowledge) {
	c.entries[strings.ToLower(name)] = k
}

// Clear drops every entry. Used by force-refresh.
func (c *Cache) Clear() {
	c.entries = make(map[string]*resource.ComponentKnowledge)
	c.recomputed = make(map[string]bool)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Enricher assembles ComponentKnowledge per canonical component name,
// caching within the run and degrading to templated text when the service
// is unreachable or slow.
type Enricher struct {
	Client QueryClient
	Cache  *Cache
	// Log receives progress and degrade messages. Optional.
	Log func(format string, args ...any)
	// Timeout overrides the per-query deadline, for tests.
	Timeout time.Duration
	// Region overrides the query region. Defaults to DefaultRegion.
	Region string
	// ModelID overrides both query models when set.
	ModelID string

	// healthKnown/healthy memoize the reachability probe so an unreachable
	// service costs one short check per run, not one per component.
	healthKnown bool
	healthy     bool
}

// NewEnricher builds an enricher around a client with a fresh cache.
func NewEnricher(client QueryClient) *Enricher {
	return &Enricher{Client: client, Cache: NewCache()}
}

func (e *Enricher) logf(format string, args ...any) {
	if e != nil && e.Log != nil {
		e.Log(format, args...)
	}
}

func (e *Enricher) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return queryTimeout
}

// Enrich returns knowledge for one classified resource. Cache hits skip the
// queries, except when the cached entry is minimal and the service has come
// back: such entries are evicted and recomputed exactly once per run. The
// type label is always recomputed from the concrete resource.
func (e *Enricher) Enrich(ctx context.Context, r resource.CloudResource, c *classify.Classification) *resource.ComponentKnowledge {
	name := c.NormalizedName
	key := strings.ToLower(name)

	if cached, ok := e.Cache.Get(key); ok {
		if cached.Minimal && !e.Cache.recomputed[key] && e.probe(ctx) {
			e.logf("cached entry for %s is minimal and the knowledge service is reachable; recomputing", name)
			e.Cache.recomputed[key] = true
		} else {
			out := cached.Clone()
			out.ComponentType = classify.TypeLabel(r)
			return out
		}
	}

	if !e.reachable(ctx) {
		e.logf("knowledge service unreachable or unconfigured; using minimal description for %s", name)
		k := e.minimalKnowledge(name, r)
		e.Cache.Put(key, k)
		return k.Clone()
	}

	arch, archErr := e.boundedQuery(ctx, buildArchitecturalQuery(name, c.Category), ModelArchitecture)
	if archErr != nil {
		e.logf("architectural query degraded for %s: %v", name, archErr)
	}
	fn, fnErr := e.boundedQuery(ctx, buildFunctionalQuery(name, c.Category), ModelFunction)
	if fnErr != nil {
		e.logf("functional query degraded for %s: %v", name, fnErr)
	}

	archText := normalizeWhitespace(arch)
	if archErr != nil || archText == "" {
		archText = architecturalFallback(name)
	}
	fnText := normalizeWhitespace(fn)
	if fnErr != nil || fnText == "" {
		fnText = functionalFallback(name)
	}

	capabilities := []string{"Core " + name + " functionality"}
	if fnErr == nil && fn != "" {
		if extracted := ExtractCapabilities(fn); len(extracted) > 0 {
			capabilities = extracted
		}
	}

	k := &resource.ComponentKnowledge{
		ComponentName:         name,
		ComponentType:         classify.TypeLabel(r),
		ArchitecturalOverview: archText,
		FunctionalOverview:    fnText,
		Capabilities:          capabilities,
		RelatedServices:       []string{},
		Relationships:         []string{},
	}
	e.Cache.Put(key, k)
	return k.Clone()
}

// reachable reports whether the service should be queried at all, probing
// at most once per run.
func (e *Enricher) reachable(ctx context.Context) bool {
	if e.Client == nil || !e.Client.Configured() {
		return false
	}
	if !e.healthKnown {
		e.healthy = e.Client.Healthy(ctx)
		e.healthKnown = true
	}
	return e.healthy
}

// probe re-checks reachability live, refreshing the memo. Used on cache hits
// of minimal entries so a service that came back mid-run is noticed.
func (e *Enricher) probe(ctx context.Context) bool {
	if e.Client == nil || !e.Client.Configured() {
		return false
	}
	e.healthy = e.Client.Healthy(ctx)
	e.healthKnown = true
	return e.healthy
}

// boundedQuery runs one query under the per-query deadline. A deadline or
// transport error comes back as an error, never a panic or a propagated
// timeout.
func (e *Enricher) boundedQuery(ctx context.Context, question, modelID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	region := e.Region
	if region == "" {
		region = DefaultRegion
	}
	if e.ModelID != "" {
		modelID = e.ModelID
	}
	return e.Client.Query(ctx, question, region, modelID, queryContext)
}

// minimalKnowledge is the immediate non-blocking answer when no knowledge
// service is reachable. Marked Minimal so it can be recomputed if the
// service appears later in the run.
func (e *Enricher) minimalKnowledge(name string, r resource.CloudResource) *resource.ComponentKnowledge {
	return &resource.ComponentKnowledge{
		ComponentName:         name,
		ComponentType:         classify.TypeLabel(r),
		ArchitecturalOverview: name + " is a Temenos microservice component deployed in Azure Kubernetes Service.",
		FunctionalOverview:    name + " provides core banking functionality as part of the Temenos Transact platform.",
		Capabilities:          []string{"Core " + name + " functionality"},
		RelatedServices:       []string{},
		Relationships:         []string{},
		Minimal:               true,
	}
}

var (
	extraNewlines = regexp.MustCompile(`\n{3,}`)
	extraSpaces   = regexp.MustCompile(`[ \t]{3,}`)
)

// normalizeWhitespace tidies a service answer without ever truncating it.
func normalizeWhitespace(text string) string {
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	text = extraSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	leadingJunk   = regexp.MustCompile(`^\W+`)
	bulletLine    = regexp.MustCompile(`^[-*•]\s+`)
	numberedLine  = regexp.MustCompile(`^\d+[.)]\s+`)
	bulletPrefix  = regexp.MustCompile(`^[-*•\d.)]+\s+`)

	capabilityKeywords = regexp.MustCompile(`(?i)\b(supports|provides|enables|allows|can|handles|manages|processes|facilitates|delivers|offers|includes|features|capabilities|functions)\b`)
)

// ExtractCapabilities pulls an ordered capability list out of a functional
// overview. Sentences carrying capability-indicating keywords are collected
// first; if fewer than three are found, bullet and numbered lines are
// scanned as well. No cap on the count.
func ExtractCapabilities(text string) []string {
	var capabilities []string
	if strings.TrimSpace(text) == "" {
		return capabilities
	}

	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 20 {
			continue
		}
		if !capabilityKeywords.MatchString(sentence) {
			continue
		}
		clean := strings.TrimSpace(leadingJunk.ReplaceAllString(sentence, ""))
		if len(clean) > 20 && len(clean) < 200 {
			capabilities = append(capabilities, clean)
		}
	}

	if len(capabilities) < 3 {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if !bulletLine.MatchString(line) && !numberedLine.MatchString(line) {
				continue
			}
			clean := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
			if len(clean) > 20 && len(clean) < 200 {
				capabilities = append(capabilities, clean)
			}
		}
	}
	return capabilities
}

func buildArchitecturalQuery(name, category string) string {
	scope := name
	if category == classify.CategoryMicroservice {
		scope = name + " in Temenos Transact"
	}
	return fmt.Sprintf(`Provide a COMPLETE, COMPREHENSIVE, and DETAILED architectural overview of %s.

Include EVERYTHING you know about:
- Complete architecture and all design patterns used
- ALL architectural components and their detailed interactions
- Complete deployment architecture, configurations, and considerations
- ALL integration points with other Temenos components
- Complete technology stack, frameworks, libraries, and versions
- Detailed scalability and performance characteristics
- Complete security architecture, authentication, authorization, encryption
- Detailed data flow and processing patterns, data models, schemas
- Infrastructure requirements, resource needs, dependencies
- Monitoring, logging, observability patterns
- Error handling, resilience patterns, disaster recovery
- Any other architectural details available

Be EXTREMELY thorough and provide ALL available information. Do not summarize or truncate.`, scope)
}

func buildFunctionalQuery(name, category string) string {
	scope := name
	if category == classify.CategoryMicroservice {
		scope = name + " in Temenos Transact"
	}
	return fmt.Sprintf(`Provide a COMPLETE, COMPREHENSIVE, and DETAILED functional overview of %s.

Include EVERYTHING you know about:
- ALL core functional capabilities and responsibilities
- ALL business functions and features it supports
- ALL use cases and scenarios
- ALL key business processes it handles
- ALL data it manages and processes
- ALL APIs and interfaces it exposes
- ALL business rules and validations
- ALL workflow and process orchestration capabilities
- ALL reporting and analytics capabilities
- Configuration options and settings
- Any other functional details available

Be EXTREMELY thorough and provide ALL available information. Do not summarize or truncate.`, scope)
}

func architecturalFallback(name string) string {
	return name + ` is a Temenos microservice component deployed in Azure Kubernetes Service.

Architecture:
- Deployed as containerized microservices in Azure Kubernetes Service (AKS)
- Follows microservices architecture patterns for scalability and resilience
- Integrates with other Temenos components through well-defined APIs
- Uses cloud-native technologies for deployment and orchestration

Key Components:
- Core service components handling business logic
- API endpoints for external and internal communication
- Data access layers for persistence
- Integration layers for component communication

Deployment:
- Containerized using Docker
- Orchestrated via Kubernetes
- Scalable and resilient architecture`
}

func functionalFallback(name string) string {
	return name + ` provides core banking functionality as part of the Temenos Transact platform.

Functional Capabilities:
- Core banking operations and business logic processing
- Transaction processing and validation
- Business rule enforcement
- Data management and persistence

Business Functions:
- Handles critical banking operations
- Supports core banking workflows
- Manages business data and state
- Provides APIs for integration with other components

Integration:
- Integrates with other Temenos microservices
- Communicates via standard APIs and protocols
- Supports event-driven architectures`
}

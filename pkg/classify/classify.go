// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package classify decides whether a generic resource is plausibly a Temenos
// platform component and, if so, which canonical component it maps to.
//
// Precedence is data, not control flow: every heuristic is an ordered rule
// table evaluated first-match-wins, so earlier entries always beat later
// ones and each table can be tested on its own.
package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/compscout/comp-scout/pkg/resource"
)

// Classification is the outcome of classifying one resource.
type Classification struct {
	// ComponentName is the raw name the classification was derived from
	// (tag value, pod name or resource name).
	ComponentName string `json:"componentName"`
	// NormalizedName is the canonical component name, e.g. "Adapter Microservice".
	NormalizedName string `json:"normalizedName"`
	// Category is "core" or "microservice".
	Category string `json:"componentCategory"`
}

// Component categories.
const (
	CategoryCore         = "core"
	CategoryMicroservice = "microservice"
)

// componentTagKeys are resource tags that carry an explicit component name.
// An explicit tag always wins over every heuristic.
var componentTagKeys = []string{"temenosComponent", "component"}

// infrastructureTypes lists resource types that are never platform
// components, regardless of how suggestive their names are.
var infrastructureTypes = []string{
	"microsoft.network/networksecuritygroups",
	"microsoft.network/virtualnetworks",
	"microsoft.network/privatednszones",
	"microsoft.network/networkinterfaces",
	"microsoft.network/publicipaddresses",
	"microsoft.network/loadbalancers",
	"microsoft.network/applicationgateways",
	"microsoft.network/privatelinkservices",
	"microsoft.network/privatendpoints",
	"microsoft.storage/storageaccounts",
	"microsoft.keyvault/vaults",
	"microsoft.insights/components",
	"microsoft.operationalinsights/workspaces",
}

// residualInfrastructureTypes is the broader deny-list the aggregator applies
// to unclassified leftovers. Compute resources are noise there even though
// the candidate check lets them through for name matching.
var residualInfrastructureTypes = []string{
	"microsoft.storage",
	"microsoft.keyvault",
	"microsoft.network",
	"microsoft.insights",
	"microsoft.operationalinsights",
	"microsoft.compute/virtualmachines",
	"microsoft.compute/virtualmachinescalesets",
}

// platformNamePatterns match resource names that suggest a Temenos component.
var platformNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`transact`),
	regexp.MustCompile(`payments`),
	regexp.MustCompile(`wealth`),
	regexp.MustCompile(`digital`),
	regexp.MustCompile(`analytics`),
	regexp.MustCompile(`datahub`),
	regexp.MustCompile(`modular`),
	regexp.MustCompile(`tap`),
	regexp.MustCompile(`adapter`),
	regexp.MustCompile(`genericconfig`),
	regexp.MustCompile(`eventstore`),
	regexp.MustCompile(`stmtgen`),
	regexp.MustCompile(`notification`),
	regexp.MustCompile(`audit`),
	regexp.MustCompile(`file`),
	regexp.MustCompile(`workflow`),
	regexp.MustCompile(`integration`),
	regexp.MustCompile(`temenos`),
}

// IsInfrastructure reports whether the resource type matches the hard
// infrastructure deny-list used by the candidate check.
func IsInfrastructure(resourceType string) bool {
	t := strings.ToLower(resourceType)
	for _, infra := range infrastructureTypes {
		if strings.Contains(t, infra) {
			return true
		}
	}
	return false
}

// IsResidualInfrastructure reports whether an unclassified resource should be
// dropped from results as infrastructure noise.
func IsResidualInfrastructure(resourceType string) bool {
	t := strings.ToLower(resourceType)
	for _, infra := range residualInfrastructureTypes {
		if strings.Contains(t, infra) {
			return true
		}
	}
	return false
}

// IsCandidate reports whether the resource could plausibly be a platform
// component. Infrastructure types are rejected outright. Pods are always
// candidates since namespace discovery already scoped them. Everything else
// must carry a component tag or a platform-indicative name.
func IsCandidate(r resource.CloudResource) bool {
	if IsInfrastructure(r.Type) {
		return false
	}
	for _, key := range componentTagKeys {
		if r.Tags[key] != "" {
			return true
		}
	}
	if r.IsPod() {
		return true
	}
	name := strings.ToLower(r.Name)
	for _, p := range platformNamePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// Classify resolves the canonical component for a resource, or nil if none
// of the heuristics match. Resolution order: explicit tag, then (pods only)
// namespace lookup, then name-pattern tables, then resource-type fallback.
func Classify(r resource.CloudResource) *Classification {
	for _, key := range componentTagKeys {
		if tag := r.Tags[key]; tag != "" {
			return &Classification{
				ComponentName:  tag,
				NormalizedName: NormalizeName(tag),
				Category:       Categorize(tag),
			}
		}
	}

	name := strings.ToLower(r.Name)
	if r.IsPod() {
		ns := r.Namespace()
		if ns == "" {
			// Display name is "namespace/pod"; recover the namespace.
			if parts := strings.Split(r.Name, "/"); len(parts) >= 2 {
				ns = parts[len(parts)-2]
			}
		}
		podName := r.PodName()
		if ns != "" {
			if canonical := CanonicalForNamespace(ns); canonical != "" {
				category := CategoryCore
				if strings.Contains(canonical, "Microservice") {
					category = CategoryMicroservice
				}
				return &Classification{
					ComponentName:  podName,
					NormalizedName: canonical,
					Category:       category,
				}
			}
		}
		// Namespace did not resolve; fall through to pod-name patterns.
		name = strings.ToLower(podName)
	}

	for _, rule := range microservicePatterns {
		if rule.Pattern.MatchString(name) {
			return &Classification{
				ComponentName:  r.Name,
				NormalizedName: rule.Name,
				Category:       rule.Category,
			}
		}
	}
	for _, rule := range corePatterns {
		if rule.Pattern.MatchString(name) {
			return &Classification{
				ComponentName:  r.Name,
				NormalizedName: rule.Name,
				Category:       rule.Category,
			}
		}
	}

	// Last resort: the resource type itself names the platform.
	t := strings.ToLower(r.Type)
	if strings.Contains(t, "temenos") || strings.Contains(t, "transact") {
		return &Classification{
			ComponentName:  r.Name,
			NormalizedName: NormalizeName(r.Type),
			Category:       CategoryCore,
		}
	}
	return nil
}

// NormalizeName strips vendor and deployment noise from a raw component
// name. An empty result falls back to a generic label.
func NormalizeName(name string) string {
	normalized := name
	for _, noise := range []string{"microsoft.", "azure", "service", "appinitapp", "appinit"} {
		normalized = replaceFold(normalized, noise)
	}
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return "Temenos Component"
	}
	return normalized
}

// Categorize derives the category from a component name alone, used when an
// explicit tag names the component.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, term := range []string{"microservice", "adapter", "config", "event"} {
		if strings.Contains(lower, term) {
			return CategoryMicroservice
		}
	}
	return CategoryCore
}

var titleCaser = cases.Title(language.English)

// TypeLabel derives a human-readable component type from the resource shape.
// Recomputed per resource, never cached: two resources sharing a canonical
// name can still have different shapes.
func TypeLabel(r resource.CloudResource) string {
	t := strings.ToLower(r.Type)
	name := strings.ToLower(r.Name)

	if strings.Contains(t, "microsoft.app/containerapps") || strings.Contains(t, "containerapp") {
		switch {
		case strings.Contains(name, "api"):
			return "Azure Container App (API Service)"
		case strings.Contains(name, "ingest"):
			return "Azure Container App (Ingester)"
		case strings.Contains(name, "initapp"), strings.Contains(name, "init") && strings.Contains(name, "app"):
			return "Azure Container App (Initializer)"
		}
		return "Azure Container App"
	}
	if strings.Contains(t, "managedclusters/pods") {
		if ns := r.Namespace(); ns != "" {
			return "AKS Pod (" + ns + " namespace)"
		}
		return "AKS Pod"
	}
	if strings.Contains(t, "microsoft.containerservice") || strings.Contains(t, "kubernetes") {
		return "Azure Kubernetes Service (AKS)"
	}
	if strings.Contains(t, "database") || strings.Contains(t, "sql") {
		switch {
		case strings.Contains(t, "cosmos"):
			return "Azure Cosmos DB"
		case strings.Contains(t, "postgresql"):
			return "Azure Database for PostgreSQL"
		case strings.Contains(t, "mysql"):
			return "Azure Database for MySQL"
		}
		return "Azure Database Service"
	}
	if strings.Contains(t, "storage") {
		return "Azure Storage (Infrastructure)"
	}
	if strings.Contains(t, "eventhub") {
		return "Azure Event Hub"
	}
	if parts := strings.Split(r.Type, "/"); len(parts) > 1 {
		return "Azure " + titleCaser.String(parts[len(parts)-1])
	}
	return "Azure Resource"
}

// replaceFold removes every case-insensitive occurrence of noise from s.
func replaceFold(s, noise string) string {
	lower := strings.ToLower(s)
	noise = strings.ToLower(noise)
	var b strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(lower[i:], noise) {
			i += len(noise)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

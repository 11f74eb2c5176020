// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"strings"

	"github.com/compscout/comp-scout/pkg/classify"
	"github.com/compscout/comp-scout/pkg/resource"
)

// Aggregate collapses duplicate components into one entry each. Pods group
// by namespace, everything else by canonical name. The first occurrence
// becomes the representative; later pods contribute their short name to the
// representative's related services, later non-pods their resource name.
func Aggregate(results []resource.AnalysisResult) []resource.AnalysisResult {
	byKey := make(map[string]int)
	var out []resource.AnalysisResult

	for _, r := range results {
		key := groupKey(r)
		idx, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, r)
			continue
		}
		rep := out[idx]
		if rep.Knowledge == nil {
			continue
		}
		rep.Knowledge.RelatedServices = appendUnique(rep.Knowledge.RelatedServices, shortName(r.Resource))
		out[idx] = rep
	}
	return out
}

// FilterResidualInfrastructure drops unclassified entries whose type is
// known infrastructure plumbing, so the report only surfaces genuinely
// unrecognized resources.
func FilterResidualInfrastructure(results []resource.AnalysisResult) []resource.AnalysisResult {
	var out []resource.AnalysisResult
	for _, r := range results {
		if classify.IsResidualInfrastructure(r.Resource.Type) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func groupKey(r resource.AnalysisResult) string {
	if r.Resource.IsPod() {
		if ns := r.Resource.Namespace(); ns != "" {
			return "ns:" + strings.ToLower(ns)
		}
	}
	if r.Knowledge != nil && r.Knowledge.ComponentName != "" {
		return "name:" + strings.ToLower(r.Knowledge.ComponentName)
	}
	return "res:" + strings.ToLower(r.Resource.Name)
}

func shortName(r resource.CloudResource) string {
	if r.IsPod() {
		if pod := r.PodName(); pod != "" {
			return pod
		}
	}
	return r.Name
}

func appendUnique(list []string, item string) []string {
	if item == "" {
		return list
	}
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

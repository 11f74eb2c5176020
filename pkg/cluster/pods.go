// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"strings"

	"github.com/compscout/comp-scout/pkg/resource"
)

// PodDiscovery runs the full per-cluster flow: resolve credentials, list
// namespaces, apply the relevance filter, list pods, adapt them into the
// generic resource shape. A cluster that fails any step is skipped.
type PodDiscovery struct {
	Resolver   *Resolver
	Discoverer *Discoverer
	// Log receives progress and degrade messages. Optional.
	Log func(format string, args ...any)
}

func (p *PodDiscovery) logf(format string, args ...any) {
	if p != nil && p.Log != nil {
		p.Log(format, args...)
	}
}

// DiscoverPods finds the managed clusters among the given resources and
// returns their pods as adapted resources. nsFilter optionally restricts
// which namespaces are scanned; without it the relevance heuristics apply.
func (p *PodDiscovery) DiscoverPods(ctx context.Context, resources []resource.CloudResource, nsFilter []string) []resource.CloudResource {
	var adapted []resource.CloudResource
	for _, r := range resources {
		if !r.IsAKSCluster() {
			continue
		}
		group := resourceGroupFromID(r.ID)
		if group == "" {
			group = r.ResourceGroup
		}

		bundle, err := p.Resolver.Resolve(ctx, group, r.Name)
		if err != nil {
			p.logf("skipping cluster %s: %v", r.Name, err)
			continue
		}
		namespaces, err := p.Discoverer.ListNamespaces(ctx, bundle)
		if err != nil {
			p.logf("skipping cluster %s: %v", r.Name, err)
			continue
		}
		relevant := RelevantNamespaces(namespaces, nsFilter)
		p.logf("cluster %s: %d namespaces, %d relevant", r.Name, len(namespaces), len(relevant))

		for _, pod := range p.Discoverer.ListPods(ctx, bundle, group, relevant) {
			adapted = append(adapted, pod.ToCloudResource())
		}
	}
	return adapted
}

// NamespacesByCluster lists the non-system namespaces of every managed
// cluster in the resource set, keyed by cluster name. Used by the
// discover-pods operation to show what a full run would scan.
func (p *PodDiscovery) NamespacesByCluster(ctx context.Context, resources []resource.CloudResource) map[string][]string {
	out := make(map[string][]string)
	for _, r := range resources {
		if !r.IsAKSCluster() {
			continue
		}
		group := resourceGroupFromID(r.ID)
		if group == "" {
			group = r.ResourceGroup
		}
		bundle, err := p.Resolver.Resolve(ctx, group, r.Name)
		if err != nil {
			p.logf("skipping cluster %s: %v", r.Name, err)
			continue
		}
		namespaces, err := p.Discoverer.ListNamespaces(ctx, bundle)
		if err != nil {
			p.logf("skipping cluster %s: %v", r.Name, err)
			continue
		}
		out[r.Name] = namespaces
	}
	return out
}

// resourceGroupFromID extracts the resource group segment from a full
// resource ID path.
func resourceGroupFromID(id string) string {
	parts := strings.Split(id, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "resourceGroups") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package resource defines the generic resource shapes that flow through the
// discovery and classification pipeline. Cloud resources and cluster pods are
// normalized into the same CloudResource shape so every downstream stage can
// treat them uniformly.
package resource

import (
	"fmt"
	"strings"
)

// PodResourceType is the synthetic resource type assigned to pods adapted
// into CloudResource form. Matched case-insensitively like every other type.
const PodResourceType = "Microsoft.ContainerService/managedClusters/pods"

// AKSClusterType identifies managed Kubernetes clusters among enumerated
// resources.
const AKSClusterType = "microsoft.containerservice/managedclusters"

// Group is a cloud resource group.
type Group struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Location string            `json:"location"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// CloudResource is the generic resource shape produced by the enumerator or
// the pod adapter. Instances are immutable and live only for one run.
type CloudResource struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Location      string            `json:"location"`
	ResourceGroup string            `json:"resource_group"`
	Tags          map[string]string `json:"tags,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// IsPod reports whether the resource was synthesized from a cluster pod.
func (r CloudResource) IsPod() bool {
	return strings.Contains(strings.ToLower(r.Type), "managedclusters/pods")
}

// IsAKSCluster reports whether the resource is a managed Kubernetes cluster.
func (r CloudResource) IsAKSCluster() bool {
	return strings.EqualFold(r.Type, AKSClusterType)
}

// Namespace returns the pod namespace, checking properties first and tags
// second. Empty for non-pod resources that never carried one.
func (r CloudResource) Namespace() string {
	if ns := r.Properties["namespace"]; ns != "" {
		return ns
	}
	if ns := r.Properties["namespace_name"]; ns != "" {
		return ns
	}
	return r.Tags["namespace"]
}

// PodName returns the bare pod name for pod resources. The display name is
// "namespace/pod"; the bare name is kept in properties by the adapter.
func (r CloudResource) PodName() string {
	if n := r.Properties["pod_name"]; n != "" {
		return n
	}
	return lastSegment(r.Name)
}

// Pod is a pod discovered in a managed cluster, before adaptation.
type Pod struct {
	Name          string
	Namespace     string
	ClusterName   string
	ResourceGroup string
	Status        string
	Labels        map[string]string
	Containers    []string
}

// ToCloudResource converts the pod into the generic resource shape. The
// synthesized ID encodes cluster, namespace and pod name so it can never
// collide with a real resource ID. The namespace is stored in both
// properties and tags; downstream stages depend on properties["namespace"]
// always being set.
func (p Pod) ToCloudResource() CloudResource {
	id := fmt.Sprintf(
		"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerService/managedClusters/%s/namespaces/%s/pods/%s",
		p.ResourceGroup, p.ResourceGroup, p.ClusterName, p.Namespace, p.Name)

	tags := map[string]string{
		"namespace": p.Namespace,
		"pod_name":  p.Name,
		"cluster":   p.ClusterName,
	}
	for k, v := range p.Labels {
		tags[k] = v
	}

	return CloudResource{
		ID:            id,
		Name:          p.Namespace + "/" + p.Name,
		Type:          PodResourceType,
		Location:      "",
		ResourceGroup: p.ResourceGroup,
		Tags:          tags,
		Properties: map[string]string{
			"namespace":  p.Namespace,
			"cluster":    p.ClusterName,
			"status":     p.Status,
			"containers": strings.Join(p.Containers, ","),
			"pod_name":   p.Name,
		},
	}
}

// ComponentKnowledge holds the descriptive text assembled for one canonical
// component name. Minimal marks entries built without a reachable knowledge
// service; they are recomputed once per run if the service comes back.
type ComponentKnowledge struct {
	ComponentName         string   `json:"component_name"`
	ComponentType         string   `json:"component_type"`
	ArchitecturalOverview string   `json:"architectural_overview"`
	FunctionalOverview    string   `json:"functional_overview"`
	Capabilities          []string `json:"capabilities"`
	RelatedServices       []string `json:"related_services"`
	Relationships         []string `json:"relationships"`
	Minimal               bool     `json:"-"`
}

// Clone returns a copy safe to mutate independently of the cached entry.
func (k *ComponentKnowledge) Clone() *ComponentKnowledge {
	if k == nil {
		return nil
	}
	c := *k
	c.Capabilities = append([]string(nil), k.Capabilities...)
	c.RelatedServices = append([]string(nil), k.RelatedServices...)
	c.Relationships = append([]string(nil), k.Relationships...)
	return &c
}

// AnalysisResult pairs one resource with its (possibly absent) knowledge.
type AnalysisResult struct {
	Resource  CloudResource       `json:"service"`
	Knowledge *ComponentKnowledge `json:"component_info,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Identified reports whether the result carries component knowledge.
func (r AnalysisResult) Identified() bool {
	return r.Knowledge != nil
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

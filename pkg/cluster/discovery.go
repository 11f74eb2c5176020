// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/compscout/comp-scout/pkg/resource"
)

// systemNamespaces are excluded from every listing path.
var systemNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
	"default":         true,
}

// platformNamespacePatterns mark namespaces worth scanning for pods. The
// list is deliberately broad; precision is the classifier's job.
var platformNamespacePatterns = []*regexp.Regexp{
	regexp.MustCompile(`transact`),
	regexp.MustCompile(`eventstore`),
	regexp.MustCompile(`adapter`),
	regexp.MustCompile(`genericconfig`),
	regexp.MustCompile(`holdings`),
	regexp.MustCompile(`party`),
	regexp.MustCompile(`modular`),
	regexp.MustCompile(`temenos`),
	regexp.MustCompile(`tap`),
	regexp.MustCompile(`stmtgen`),
	regexp.MustCompile(`notification`),
	regexp.MustCompile(`audit`),
	regexp.MustCompile(`file`),
	regexp.MustCompile(`workflow`),
	regexp.MustCompile(`deposits`),
	regexp.MustCompile(`lending`),
	regexp.MustCompile(`webingress`),
	regexp.MustCompile(`ingress`),
	regexp.MustCompile(`payment`),
	regexp.MustCompile(`card`),
	regexp.MustCompile(`account`),
	regexp.MustCompile(`transaction`),
	regexp.MustCompile(`core`),
	regexp.MustCompile(`banking`),
	regexp.MustCompile(`integration`),
	regexp.MustCompile(`api`),
	regexp.MustCompile(`gateway`),
	regexp.MustCompile(`service`),
	regexp.MustCompile(`microservice`),
}

// systemPrefixes exclude clearly system-owned namespaces from the permissive
// fallback branch of the relevance filter.
var systemPrefixes = []string{"kube-", "system-", "default"}

// Discoverer lists cluster topology using a native client first and the
// cluster CLI as fallback, tolerating stripped-down kubectl builds that
// reject structured output flags.
type Discoverer struct {
	// Run executes subprocesses. Defaults to ExecRunner.
	Run Runner
	// NewClient builds a typed clientset from a kubeconfig path. Defaults
	// to clientcmd. Injected so tests can use the fake clientset.
	NewClient func(kubeconfigPath string) (kubernetes.Interface, error)
	// Log receives progress and degrade messages. Optional.
	Log func(format string, args ...any)
}

func (d *Discoverer) logf(format string, args ...any) {
	if d != nil && d.Log != nil {
		d.Log(format, args...)
	}
}

func (d *Discoverer) runner() Runner {
	if d.Run != nil {
		return d.Run
	}
	return ExecRunner
}

func (d *Discoverer) client(kubeconfigPath string) (kubernetes.Interface, error) {
	if d.NewClient != nil {
		return d.NewClient(kubeconfigPath)
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}

// ListNamespaces returns the non-system namespaces of the cluster, sorted.
// Listing order: native client call, then kubectl with structured output,
// then kubectl tabular output when the structured flag was rejected.
func (d *Discoverer) ListNamespaces(ctx context.Context, bundle *Bundle) ([]string, error) {
	var jsonErr error
	steps := []Step[[]string]{
		{Name: "client-go", Run: func(ctx context.Context) ([]string, error) {
			return d.namespacesNative(ctx, bundle)
		}},
		{Name: "kubectl-json", Run: func(ctx context.Context) ([]string, error) {
			names, err := d.namespacesKubectlJSON(ctx, bundle)
			jsonErr = err
			return names, err
		}},
		{Name: "kubectl-table", Run: func(ctx context.Context) ([]string, error) {
			if !flagRejected(jsonErr) {
				return nil, fmt.Errorf("tabular fallback only applies when structured flags are rejected")
			}
			return d.namespacesKubectlTable(ctx, bundle)
		}},
	}

	names, source, err := FirstSuccess(ctx, steps)
	if err != nil {
		return nil, fmt.Errorf("list namespaces for %s: %w", bundle.ClusterName, err)
	}
	d.logf("listed %d namespaces in %s via %s", len(names), bundle.ClusterName, source)
	sort.Strings(names)
	return names, nil
}

func (d *Discoverer) namespacesNative(ctx context.Context, bundle *Bundle) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	clientset, err := d.client(bundle.KubeconfigPath)
	if err != nil {
		return nil, err
	}
	list, err := clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	var names []string
	for _, ns := range list.Items {
		if ns.Name != "" && !systemNamespaces[ns.Name] {
			names = append(names, ns.Name)
		}
	}
	return names, nil
}

func (d *Discoverer) namespacesKubectlJSON(ctx context.Context, bundle *Bundle) ([]string, error) {
	out, err := d.runner()(ctx, networkTimeout, []string{"KUBECONFIG=" + bundle.KubeconfigPath},
		"kubectl", "get", "namespaces", "-o", "json")
	if err != nil {
		return nil, err
	}
	var list corev1.NamespaceList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("parse namespace list: %w", err)
	}
	var names []string
	for _, ns := range list.Items {
		if ns.Name != "" && !systemNamespaces[ns.Name] {
			names = append(names, ns.Name)
		}
	}
	return names, nil
}

func (d *Discoverer) namespacesKubectlTable(ctx context.Context, bundle *Bundle) ([]string, error) {
	out, err := d.runner()(ctx, networkTimeout, []string{"KUBECONFIG=" + bundle.KubeconfigPath},
		"kubectl", "get", "namespaces")
	if err != nil {
		return nil, err
	}
	var names []string
	for i, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if i == 0 { // header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if name := fields[0]; name != "" && !systemNamespaces[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

// RelevantNamespaces applies the relevance filter. With an explicit filter,
// only namespaces containing one of the given fragments are kept. Without
// one, a namespace is kept when it matches a platform-indicative pattern, or
// when it at least does not carry a system-like prefix: inclusion is the
// default, the classifier sorts out the rest.
func RelevantNamespaces(names, filter []string) []string {
	var kept []string
	for _, ns := range names {
		if len(filter) > 0 {
			for _, f := range filter {
				if strings.Contains(strings.ToLower(ns), strings.ToLower(f)) {
					kept = append(kept, ns)
					break
				}
			}
			continue
		}
		if matchesPlatformPattern(ns) {
			kept = append(kept, ns)
			continue
		}
		if !hasSystemPrefix(ns) {
			kept = append(kept, ns)
		}
	}
	return kept
}

func matchesPlatformPattern(ns string) bool {
	lower := strings.ToLower(ns)
	for _, p := range platformNamespacePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func hasSystemPrefix(ns string) bool {
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(ns, prefix) {
			return true
		}
	}
	return false
}

// ListPods lists pods in the given namespaces via kubectl, with a tabular
// fallback per namespace. A namespace that errors is skipped with a warning
// and never fails the whole call.
func (d *Discoverer) ListPods(ctx context.Context, bundle *Bundle, resourceGroup string, namespaces []string) []resource.Pod {
	var pods []resource.Pod
	for _, ns := range namespaces {
		nsPods, err := d.podsInNamespace(ctx, bundle, resourceGroup, ns)
		if err != nil {
			d.logf("skipping namespace %s in %s: %v", ns, bundle.ClusterName, err)
			continue
		}
		d.logf("found %d pods in namespace %s", len(nsPods), ns)
		pods = append(pods, nsPods...)
	}
	return pods
}

func (d *Discoverer) podsInNamespace(ctx context.Context, bundle *Bundle, resourceGroup, namespace string) ([]resource.Pod, error) {
	var jsonErr error
	steps := []Step[[]resource.Pod]{
		{Name: "kubectl-json", Run: func(ctx context.Context) ([]resource.Pod, error) {
			pods, err := d.podsKubectlJSON(ctx, bundle, resourceGroup, namespace)
			jsonErr = err
			return pods, err
		}},
		{Name: "kubectl-table", Run: func(ctx context.Context) ([]resource.Pod, error) {
			if !flagRejected(jsonErr) {
				return nil, fmt.Errorf("tabular fallback only applies when structured flags are rejected")
			}
			return d.podsKubectlTable(ctx, bundle, resourceGroup, namespace)
		}},
	}
	pods, _, err := FirstSuccess(ctx, steps)
	return pods, err
}

func (d *Discoverer) podsKubectlJSON(ctx context.Context, bundle *Bundle, resourceGroup, namespace string) ([]resource.Pod, error) {
	out, err := d.runner()(ctx, networkTimeout, []string{"KUBECONFIG=" + bundle.KubeconfigPath},
		"kubectl", "get", "pods", "--namespace", namespace, "-o", "json")
	if err != nil {
		return nil, err
	}
	var list corev1.PodList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("parse pod list: %w", err)
	}
	var pods []resource.Pod
	for _, p := range list.Items {
		if p.Name == "" {
			continue
		}
		var containers []string
		for _, c := range p.Spec.Containers {
			containers = append(containers, c.Name)
		}
		status := string(p.Status.Phase)
		if status == "" {
			status = "Unknown"
		}
		pods = append(pods, resource.Pod{
			Name:          p.Name,
			Namespace:     namespace,
			ClusterName:   bundle.ClusterName,
			ResourceGroup: resourceGroup,
			Status:        status,
			Labels:        p.Labels,
			Containers:    containers,
		})
	}
	return pods, nil
}

// podsKubectlTable parses the default tabular pod listing. Columns are
// NAME READY STATUS RESTARTS AGE; only name and status are used.
func (d *Discoverer) podsKubectlTable(ctx context.Context, bundle *Bundle, resourceGroup, namespace string) ([]resource.Pod, error) {
	out, err := d.runner()(ctx, networkTimeout, []string{"KUBECONFIG=" + bundle.KubeconfigPath},
		"kubectl", "get", "pods", "--namespace", namespace)
	if err != nil {
		return nil, err
	}
	var pods []resource.Pod
	for i, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if i == 0 { // header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		status := "Unknown"
		if len(fields) > 2 {
			status = fields[2]
		}
		pods = append(pods, resource.Pod{
			Name:          fields[0],
			Namespace:     namespace,
			ClusterName:   bundle.ClusterName,
			ResourceGroup: resourceGroup,
			Status:        status,
		})
	}
	return pods, nil
}

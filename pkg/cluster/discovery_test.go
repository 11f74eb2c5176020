// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/compscout/comp-scout/pkg/resource"
)

func namespaceObjects(names ...string) []corev1.Namespace {
	out := make([]corev1.Namespace, 0, len(names))
	for _, n := range names {
		out = append(out, corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: n}})
	}
	return out
}

func TestListNamespacesNativeClient(t *testing.T) {
	objs := namespaceObjects("kube-system", "default", "eventstore", "adapterservice")
	clientset := k8sfake.NewSimpleClientset()
	for i := range objs {
		_, err := clientset.CoreV1().Namespaces().Create(context.Background(), &objs[i], metav1.CreateOptions{})
		require.NoError(t, err)
	}

	d := &Discoverer{
		NewClient: func(string) (kubernetes.Interface, error) { return clientset, nil },
		Run: func(context.Context, time.Duration, []string, string, ...string) ([]byte, error) {
			t.Fatal("native client succeeded; kubectl should not run")
			return nil, nil
		},
	}
	names, err := d.ListNamespaces(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"adapterservice", "eventstore"}, names)
}

func TestListNamespacesKubectlJSONFallback(t *testing.T) {
	const payload = `{"apiVersion":"v1","kind":"NamespaceList","items":[
		{"metadata":{"name":"kube-system"}},
		{"metadata":{"name":"transact"}},
		{"metadata":{"name":"deposits202507"}}]}`

	d := &Discoverer{
		NewClient: func(string) (kubernetes.Interface, error) {
			return nil, errors.New("no in-cluster config")
		},
		Run: func(_ context.Context, _ time.Duration, env []string, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "kubectl", name)
			assert.Contains(t, strings.Join(args, " "), "get namespaces -o json")
			assert.Contains(t, env, "KUBECONFIG=/tmp/kc")
			return []byte(payload), nil
		},
	}
	names, err := d.ListNamespaces(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"deposits202507", "transact"}, names)
}

func TestListNamespacesTabularFallbackOnFlagRejection(t *testing.T) {
	table := "NAME              STATUS   AGE\n" +
		"kube-system       Active   30d\n" +
		"eventstore        Active   12d\n" +
		"randomteam        Active   3d\n"

	d := &Discoverer{
		NewClient: func(string) (kubernetes.Interface, error) {
			return nil, errors.New("no client config")
		},
		Run: func(_ context.Context, _ time.Duration, _ []string, _ string, args ...string) ([]byte, error) {
			joined := strings.Join(args, " ")
			if strings.Contains(joined, "-o json") {
				return nil, errors.New("unknown shorthand flag: 'o' in -o")
			}
			return []byte(table), nil
		},
	}
	names, err := d.ListNamespaces(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"eventstore", "randomteam"}, names)
}

func TestListNamespacesNoTabularFallbackForOtherErrors(t *testing.T) {
	var tableRuns int
	d := &Discoverer{
		NewClient: func(string) (kubernetes.Interface, error) {
			return nil, errors.New("no client config")
		},
		Run: func(_ context.Context, _ time.Duration, _ []string, _ string, args ...string) ([]byte, error) {
			if !strings.Contains(strings.Join(args, " "), "json") {
				tableRuns++
			}
			return nil, errors.New("connection refused")
		},
	}
	_, err := d.ListNamespaces(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"})
	require.Error(t, err)
	assert.Zero(t, tableRuns, "tabular fallback should only run when the structured flag is rejected")
}

func TestRelevantNamespaces(t *testing.T) {
	tests := []struct {
		name   string
		input  []string
		filter []string
		want   []string
	}{
		{
			name:  "default policy keeps everything non-system",
			input: []string{"kube-system", "eventstore", "deposits202507", "randomteam"},
			want:  []string{"eventstore", "deposits202507", "randomteam"},
		},
		{
			name:  "system prefixes dropped",
			input: []string{"system-upgrades", "default-pool", "kube-flannel", "holdings"},
			want:  []string{"holdings"},
		},
		{
			name:   "explicit filter is strict",
			input:  []string{"eventstore", "randomteam", "transact"},
			filter: []string{"Transact", "eventstore"},
			want:   []string{"eventstore", "transact"},
		},
		{
			name:   "explicit filter with no matches",
			input:  []string{"eventstore"},
			filter: []string{"lending"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelevantNamespaces(tt.input, tt.filter))
		})
	}
}

func TestListPodsJSON(t *testing.T) {
	const payload = `{"apiVersion":"v1","kind":"PodList","items":[
		{"metadata":{"name":"pod-a","labels":{"app":"adapter"}},
		 "spec":{"containers":[{"name":"main"},{"name":"sidecar"}]},
		 "status":{"phase":"Running"}},
		{"metadata":{"name":"pod-b"},"status":{"phase":"Pending"}}]}`

	d := &Discoverer{
		Run: func(_ context.Context, _ time.Duration, _ []string, _ string, args ...string) ([]byte, error) {
			assert.Contains(t, strings.Join(args, " "), "--namespace adapterservice")
			return []byte(payload), nil
		},
	}
	pods := d.ListPods(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"},
		"rg-banking", []string{"adapterservice"})

	require.Len(t, pods, 2)
	assert.Equal(t, "pod-a", pods[0].Name)
	assert.Equal(t, "adapterservice", pods[0].Namespace)
	assert.Equal(t, "aks-prod", pods[0].ClusterName)
	assert.Equal(t, "Running", pods[0].Status)
	assert.Equal(t, []string{"main", "sidecar"}, pods[0].Containers)
	assert.Equal(t, "Pending", pods[1].Status)
}

func TestListPodsTabularFallback(t *testing.T) {
	table := "NAME     READY   STATUS    RESTARTS   AGE\n" +
		"pod-a    1/1     Running   0          4d\n" +
		"pod-b    0/1     Pending   2          1h\n"

	d := &Discoverer{
		Run: func(_ context.Context, _ time.Duration, _ []string, _ string, args ...string) ([]byte, error) {
			if strings.Contains(strings.Join(args, " "), "json") {
				return nil, errors.New("unknown flag: --output")
			}
			return []byte(table), nil
		},
	}
	pods := d.ListPods(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"},
		"rg-banking", []string{"eventstore"})

	require.Len(t, pods, 2)
	assert.Equal(t, "pod-a", pods[0].Name)
	assert.Equal(t, "Running", pods[0].Status)
	assert.Equal(t, "pod-b", pods[1].Name)
	assert.Equal(t, "Pending", pods[1].Status)
}

func TestListPodsSkipsFailingNamespace(t *testing.T) {
	const payload = `{"items":[{"metadata":{"name":"ok-pod"},"status":{"phase":"Running"}}]}`
	d := &Discoverer{
		Run: func(_ context.Context, _ time.Duration, _ []string, _ string, args ...string) ([]byte, error) {
			if strings.Contains(strings.Join(args, " "), "--namespace broken") {
				return nil, errors.New("forbidden: cannot list pods")
			}
			return []byte(payload), nil
		},
	}
	pods := d.ListPods(context.Background(), &Bundle{ClusterName: "aks-prod", KubeconfigPath: "/tmp/kc"},
		"rg-banking", []string{"broken", "eventstore"})

	require.Len(t, pods, 1)
	assert.Equal(t, "ok-pod", pods[0].Name)
	assert.Equal(t, "eventstore", pods[0].Namespace)
}

func TestDiscoverPodsAdaptsAndSkipsUnreachableClusters(t *testing.T) {
	const nsPayload = `{"items":[{"metadata":{"name":"adapterservice"}}]}`
	const podPayload = `{"items":[{"metadata":{"name":"pod-a"},"status":{"phase":"Running"}}]}`

	runner := func(_ context.Context, _ time.Duration, _ []string, name string, args ...string) ([]byte, error) {
		joined := strings.Join(args, " ")
		switch {
		case name == "az" && strings.Contains(joined, "aks-down"):
			return nil, errors.New("exit status 1: cluster not found")
		case name == "az":
			return nil, errors.New("exit status 1: no az session")
		case strings.Contains(joined, "version --client"):
			return []byte("Client Version: v1.33.1"), nil
		case strings.Contains(joined, "get namespaces"):
			return []byte(nsPayload), nil
		case strings.Contains(joined, "get pods"):
			return []byte(podPayload), nil
		}
		return nil, errors.New("unexpected: " + name + " " + joined)
	}

	admin := adminFunc(func(_ context.Context, _, cluster string) ([]byte, error) {
		if cluster == "aks-down" {
			return nil, errors.New("control plane unreachable")
		}
		return []byte(testKubeconfig), nil
	})
	tmp := t.TempDir()
	p := &PodDiscovery{
		Resolver: &Resolver{
			Admin:             admin,
			Run:               runner,
			TempDir:           tmp,
			DefaultKubeconfig: filepath.Join(tmp, "missing-config"),
		},
		Discoverer: &Discoverer{Run: runner, NewClient: func(string) (kubernetes.Interface, error) { return nil, errors.New("no native client") }},
	}

	input := []resource.CloudResource{
		{
			ID:   "/subscriptions/sub/resourceGroups/rg-banking/providers/Microsoft.ContainerService/managedClusters/aks-prod",
			Name: "aks-prod",
			Type: "Microsoft.ContainerService/managedClusters",
		},
		{
			// Unreachable cluster: credential resolution fails, admin source is
			// shared but the CLI and default kubeconfig are not usable for it.
			ID:   "/subscriptions/sub/resourceGroups/rg-banking/providers/Microsoft.ContainerService/managedClusters/aks-down",
			Name: "aks-down",
			Type: "Microsoft.ContainerService/managedClusters",
		},
		{Name: "not-a-cluster", Type: "Microsoft.Storage/storageAccounts"},
	}
	pods := p.DiscoverPods(context.Background(), input, nil)

	require.Len(t, pods, 1)
	assert.Equal(t, "adapterservice/pod-a", pods[0].Name)
	assert.Equal(t, "adapterservice", pods[0].Properties["namespace"])
	assert.Equal(t, "pod-a", pods[0].Properties["pod_name"])
	assert.Equal(t, "rg-banking", pods[0].ResourceGroup)
}

// adminFunc adapts a function to the AdminCredentialSource interface.
type adminFunc func(ctx context.Context, resourceGroup, clusterName string) ([]byte, error)

func (f adminFunc) AdminKubeconfig(ctx context.Context, resourceGroup, clusterName string) ([]byte, error) {
	return f(ctx, resourceGroup, clusterName)
}

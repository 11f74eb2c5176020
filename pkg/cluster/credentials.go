// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package cluster resolves access to managed Kubernetes clusters and
// discovers their topology. Every external call is bounded and degrades
// rather than failing the run: a cluster that cannot be reached simply
// contributes nothing.
package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeouts for the credential chain. Network calls get the longer bound,
// local checks the shorter one.
const (
	networkTimeout    = 30 * time.Second
	verifyTimeout     = 10 * time.Second
	localCheckTimeout = 5 * time.Second
)

// Bundle is a short-lived local credential reference for one cluster.
type Bundle struct {
	KubeconfigPath string
	ClusterName    string
	// Source names the chain step that produced the bundle.
	Source string
}

// AdminCredentialSource fetches cluster-admin kubeconfig bytes from the
// cloud control plane.
type AdminCredentialSource interface {
	AdminKubeconfig(ctx context.Context, resourceGroup, clusterName string) ([]byte, error)
}

// Resolver obtains cluster credentials via an ordered fallback chain:
// direct admin-credential fetch, then a cloud CLI merge, then reuse of an
// existing default kubeconfig. First success wins; no retries beyond the
// chain itself.
type Resolver struct {
	// Admin fetches admin credentials from the control plane. Optional;
	// when nil the chain starts at the CLI step.
	Admin AdminCredentialSource
	// Run executes subprocesses. Defaults to ExecRunner.
	Run Runner
	// Log receives progress and degrade messages. Optional.
	Log func(format string, args ...any)
	// DefaultKubeconfig overrides ~/.kube/config, for tests.
	DefaultKubeconfig string
	// TempDir overrides os.TempDir, for tests.
	TempDir string
}

func (r *Resolver) logf(format string, args ...any) {
	if r != nil && r.Log != nil {
		r.Log(format, args...)
	}
}

func (r *Resolver) runner() Runner {
	if r.Run != nil {
		return r.Run
	}
	return ExecRunner
}

func (r *Resolver) tempDir() string {
	if r.TempDir != "" {
		return r.TempDir
	}
	return os.TempDir()
}

func (r *Resolver) defaultKubeconfig() string {
	if r.DefaultKubeconfig != "" {
		return r.DefaultKubeconfig
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}

// Resolve materializes a credential bundle for the cluster, or returns an
// error when every chain step failed. The bundle is verified with a local
// client sanity check before being handed out.
func (r *Resolver) Resolve(ctx context.Context, resourceGroup, clusterName string) (*Bundle, error) {
	steps := []Step[*Bundle]{
		{Name: "admin-credentials", Run: func(ctx context.Context) (*Bundle, error) {
			return r.fetchAdminCredentials(ctx, resourceGroup, clusterName)
		}},
		{Name: "cli-merge", Run: func(ctx context.Context) (*Bundle, error) {
			return r.mergeWithCLI(ctx, resourceGroup, clusterName)
		}},
		{Name: "default-kubeconfig", Run: func(ctx context.Context) (*Bundle, error) {
			return r.reuseDefault(clusterName)
		}},
	}

	bundle, source, err := FirstSuccess(ctx, steps)
	if err != nil {
		r.logf("credential resolution failed for cluster %s: %v", clusterName, err)
		return nil, fmt.Errorf("resolve credentials for %s: %w", clusterName, err)
	}
	bundle.Source = source
	r.logf("resolved credentials for cluster %s via %s (%s)", clusterName, source, bundle.KubeconfigPath)

	if err := r.verifyKubectl(ctx, bundle); err != nil {
		r.logf("kubectl verification failed for cluster %s: %v", clusterName, err)
		r.logf("hint: ensure kubectl is installed and on PATH (https://kubernetes.io/docs/tasks/tools/)")
		return nil, fmt.Errorf("verify kubectl for %s: %w", clusterName, err)
	}
	return bundle, nil
}

// fetchAdminCredentials writes control-plane admin credentials to a
// temporary kubeconfig.
func (r *Resolver) fetchAdminCredentials(ctx context.Context, resourceGroup, clusterName string) (*Bundle, error) {
	if r.Admin == nil {
		return nil, fmt.Errorf("no control-plane credential source configured")
	}
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	kubeconfig, err := r.Admin.AdminKubeconfig(ctx, resourceGroup, clusterName)
	if err != nil {
		return nil, fmt.Errorf("fetch admin credentials: %w", err)
	}

	f, err := os.CreateTemp(r.tempDir(), clusterName+"-kubeconfig-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("create kubeconfig file: %w", err)
	}
	if _, err := f.Write(kubeconfig); err != nil {
		f.Close()
		return nil, fmt.Errorf("write kubeconfig: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close kubeconfig: %w", err)
	}
	return &Bundle{KubeconfigPath: f.Name(), ClusterName: clusterName}, nil
}

// mergeWithCLI asks the cloud CLI to write credentials to a dedicated file.
// The CLI sometimes exits non-zero for warnings while still producing a
// usable kubeconfig, so a non-zero exit is only fatal when the file ends up
// missing or without an entry for the cluster.
func (r *Resolver) mergeWithCLI(ctx context.Context, resourceGroup, clusterName string) (*Bundle, error) {
	path := filepath.Join(r.tempDir(), clusterName+"_kubeconfig.yaml")
	_, runErr := r.runner()(ctx, networkTimeout, nil, "az",
		"aks", "get-credentials",
		"--resource-group", resourceGroup,
		"--name", clusterName,
		"--file", path,
		"--overwrite-existing")

	if kubeconfigReferencesCluster(path, clusterName) {
		if runErr != nil {
			r.logf("az get-credentials exited non-zero but left a usable kubeconfig for %s: %v", clusterName, runErr)
		}
		return &Bundle{KubeconfigPath: path, ClusterName: clusterName}, nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("az aks get-credentials: %w", runErr)
	}
	return nil, fmt.Errorf("az aks get-credentials wrote no entry for cluster %s", clusterName)
}

// reuseDefault accepts an existing default kubeconfig that already
// references the cluster.
func (r *Resolver) reuseDefault(clusterName string) (*Bundle, error) {
	path := r.defaultKubeconfig()
	if path == "" {
		return nil, fmt.Errorf("no home directory for default kubeconfig")
	}
	if !kubeconfigReferencesCluster(path, clusterName) {
		return nil, fmt.Errorf("default kubeconfig %s has no entry for cluster %s", path, clusterName)
	}
	return &Bundle{KubeconfigPath: path, ClusterName: clusterName}, nil
}

// verifyKubectl runs a purely local client check to confirm the tool exists
// before topology discovery starts shelling out to it.
func (r *Resolver) verifyKubectl(ctx context.Context, bundle *Bundle) error {
	_, err := r.runner()(ctx, verifyTimeout, []string{"KUBECONFIG=" + bundle.KubeconfigPath},
		"kubectl", "version", "--client")
	return err
}

// kubeconfigEntry mirrors the subset of kubeconfig structure needed to check
// whether a file references a cluster.
type kubeconfigFile struct {
	CurrentContext string `yaml:"current-context"`
	Clusters       []struct {
		Name string `yaml:"name"`
	} `yaml:"clusters"`
	Contexts []struct {
		Name    string `yaml:"name"`
		Context struct {
			Cluster string `yaml:"cluster"`
		} `yaml:"context"`
	} `yaml:"contexts"`
}

// kubeconfigReferencesCluster reports whether the file exists, parses, and
// names the cluster in any cluster or context entry.
func kubeconfigReferencesCluster(path, clusterName string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var cfg kubeconfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return false
	}
	for _, c := range cfg.Clusters {
		if strings.Contains(c.Name, clusterName) {
			return true
		}
	}
	for _, c := range cfg.Contexts {
		if strings.Contains(c.Name, clusterName) || strings.Contains(c.Context.Cluster, clusterName) {
			return true
		}
	}
	return strings.Contains(cfg.CurrentContext, clusterName)
}

// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKubeconfig = `apiVersion: v1
kind: Config
current-context: aks-prod
clusters:
- name: aks-prod
  cluster:
    server: https://aks-prod.example:443
contexts:
- name: aks-prod
  context:
    cluster: aks-prod
    user: clusterAdmin
`

// fakeRunner scripts subprocess behavior per command name.
type fakeRunner struct {
	calls   []string
	az      func(path string) ([]byte, error) // az aks get-credentials; path is the --file arg
	kubectl func(args []string) ([]byte, error)
}

func (f *fakeRunner) run(_ context.Context, _ time.Duration, _ []string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	switch name {
	case "az":
		path := ""
		for i, a := range args {
			if a == "--file" && i+1 < len(args) {
				path = args[i+1]
			}
		}
		if f.az != nil {
			return f.az(path)
		}
		return nil, errors.New("az not scripted")
	case "kubectl":
		if f.kubectl != nil {
			return f.kubectl(args)
		}
		return []byte("Client Version: v1.33.1"), nil
	}
	return nil, errors.New("unexpected command " + name)
}

type fakeAdmin struct {
	kubeconfig []byte
	err        error
}

func (f *fakeAdmin) AdminKubeconfig(context.Context, string, string) ([]byte, error) {
	return f.kubeconfig, f.err
}

func TestResolveAdminCredentialsFirst(t *testing.T) {
	runner := &fakeRunner{}
	r := &Resolver{
		Admin:   &fakeAdmin{kubeconfig: []byte(testKubeconfig)},
		Run:     runner.run,
		TempDir: t.TempDir(),
	}

	bundle, err := r.Resolve(context.Background(), "rg-banking", "aks-prod")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, "admin-credentials", bundle.Source)
	assert.Equal(t, "aks-prod", bundle.ClusterName)

	data, err := os.ReadFile(bundle.KubeconfigPath)
	require.NoError(t, err)
	assert.Equal(t, testKubeconfig, string(data))

	// Only the kubectl verification should have shelled out.
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "kubectl version --client")
}

func TestResolveCLIFallbackOnAdminFailure(t *testing.T) {
	tmp := t.TempDir()
	runner := &fakeRunner{
		az: func(path string) ([]byte, error) {
			require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0600))
			return nil, nil
		},
	}
	r := &Resolver{
		Admin:   &fakeAdmin{err: errors.New("403 forbidden")},
		Run:     runner.run,
		TempDir: tmp,
	}

	bundle, err := r.Resolve(context.Background(), "rg-banking", "aks-prod")
	require.NoError(t, err)
	assert.Equal(t, "cli-merge", bundle.Source)
	assert.Equal(t, filepath.Join(tmp, "aks-prod_kubeconfig.yaml"), bundle.KubeconfigPath)
}

func TestResolveCLINonZeroExitWithUsableFile(t *testing.T) {
	// The CLI exits non-zero for a warning but still writes a valid entry;
	// the chain must treat that as success.
	tmp := t.TempDir()
	runner := &fakeRunner{
		az: func(path string) ([]byte, error) {
			require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0600))
			return nil, errors.New("exit status 1: WARNING: merged context may shadow an existing one")
		},
	}
	r := &Resolver{
		Admin:   &fakeAdmin{err: errors.New("control plane refused")},
		Run:     runner.run,
		TempDir: tmp,
	}

	bundle, err := r.Resolve(context.Background(), "rg-banking", "aks-prod")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, "cli-merge", bundle.Source)
	assert.True(t, kubeconfigReferencesCluster(bundle.KubeconfigPath, "aks-prod"))
}

func TestResolveDefaultKubeconfigLastResort(t *testing.T) {
	tmp := t.TempDir()
	defaultPath := filepath.Join(tmp, "config")
	require.NoError(t, os.WriteFile(defaultPath, []byte(testKubeconfig), 0600))

	runner := &fakeRunner{
		az: func(path string) ([]byte, error) {
			return nil, errors.New("exit status 1: az login required")
		},
	}
	r := &Resolver{
		Run:               runner.run,
		TempDir:           tmp,
		DefaultKubeconfig: defaultPath,
	}

	bundle, err := r.Resolve(context.Background(), "rg-banking", "aks-prod")
	require.NoError(t, err)
	assert.Equal(t, "default-kubeconfig", bundle.Source)
	assert.Equal(t, defaultPath, bundle.KubeconfigPath)
}

func TestResolveFailsWhenChainExhausted(t *testing.T) {
	tmp := t.TempDir()
	runner := &fakeRunner{
		az: func(path string) ([]byte, error) {
			return nil, errors.New("exit status 1: az login required")
		},
	}
	r := &Resolver{
		Run:               runner.run,
		TempDir:           tmp,
		DefaultKubeconfig: filepath.Join(tmp, "missing-config"),
	}

	bundle, err := r.Resolve(context.Background(), "rg-banking", "aks-prod")
	assert.Nil(t, bundle)
	require.Error(t, err)
	// Every step's failure should be visible in the joined error.
	assert.Contains(t, err.Error(), "admin-credentials")
	assert.Contains(t, err.Error(), "cli-merge")
	assert.Contains(t, err.Error(), "default-kubeconfig")
}

func TestResolveFailsWhenKubectlMissing(t *testing.T) {
	runner := &fakeRunner{
		kubectl: func([]string) ([]byte, error) {
			return nil, errors.New(`exec: "kubectl": executable file not found in $PATH`)
		},
	}
	r := &Resolver{
		Admin:   &fakeAdmin{kubeconfig: []byte(testKubeconfig)},
		Run:     runner.run,
		TempDir: t.TempDir(),
	}
	bundle, err := r.Resolve(context.Background(), "rg-banking", "aks-prod")
	assert.Nil(t, bundle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify kubectl")
}

func TestKubeconfigReferencesCluster(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "kc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0600))

	assert.True(t, kubeconfigReferencesCluster(path, "aks-prod"))
	assert.False(t, kubeconfigReferencesCluster(path, "aks-staging"))
	assert.False(t, kubeconfigReferencesCluster(filepath.Join(tmp, "missing"), "aks-prod"))

	garbled := filepath.Join(tmp, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("{{{not yaml"), 0600))
	assert.False(t, kubeconfigReferencesCluster(garbled, "aks-prod"))
}

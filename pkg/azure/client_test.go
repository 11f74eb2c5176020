// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package azure

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compscout/comp-scout/pkg/resource"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("sub-123", StaticToken("test-token"))
	c.SetBaseURL(srv.URL)
	return c, srv
}

func TestListResourceGroupsFollowsPagination(t *testing.T) {
	var mux http.ServeMux
	var base string
	mux.HandleFunc("/subscriptions/sub-123/resourcegroups", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value":[{"id":"/g/rg-data","name":"rg-data","location":"westeurope"}]}`)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"/g/rg-banking","name":"rg-banking","location":"westeurope"}],"nextLink":"%s/subscriptions/sub-123/resourcegroups?api-version=2021-04-01&page=2"}`, base)
	})
	c, srv := newTestClient(t, &mux)
	base = srv.URL

	groups, err := c.ListResourceGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "rg-banking", groups[0].Name)
	assert.Equal(t, "rg-data", groups[1].Name)
}

func TestListResourcesSkipsFailingGroup(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/subscriptions/sub-123/resourceGroups/rg-banking/resources", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"value":[
			{"id":"/s/sub-123/rg/rg-banking/aks","name":"aks-prod","type":"Microsoft.ContainerService/managedClusters","location":"westeurope","tags":{"env":"prod"}},
			{"id":"/s/sub-123/rg/rg-banking/sa","name":"transactstore","type":"Microsoft.Storage/storageAccounts","location":"westeurope","properties":{"tier":"Standard","count":3,"nested":{"x":1}}}
		]}`)
	})
	mux.HandleFunc("/subscriptions/sub-123/resourceGroups/rg-locked/resources", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"AuthorizationFailed"}}`, http.StatusForbidden)
	})
	c, _ := newTestClient(t, &mux)

	var logged []string
	c.Log = func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	groups := []resource.Group{{Name: "rg-banking"}, {Name: "rg-locked"}}
	resources, err := c.ListResources(context.Background(), groups)
	require.NoError(t, err, "a locked group must not fail the run")
	require.Len(t, resources, 2)

	assert.Equal(t, "aks-prod", resources[0].Name)
	assert.Equal(t, "rg-banking", resources[0].ResourceGroup)
	assert.Equal(t, "prod", resources[0].Tags["env"])
	assert.Equal(t, "Standard", resources[1].Properties["tier"])
	assert.Equal(t, "3", resources[1].Properties["count"])
	assert.NotContains(t, resources[1].Properties, "nested")

	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "rg-locked")
}

func TestAdminKubeconfig(t *testing.T) {
	kubeconfig := "apiVersion: v1\nkind: Config\n"
	var mux http.ServeMux
	mux.HandleFunc("/subscriptions/sub-123/resourceGroups/rg-banking/providers/Microsoft.ContainerService/managedClusters/aks-prod/listClusterAdminCredential", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprintf(w, `{"kubeconfigs":[{"name":"clusterAdmin","value":"%s"}]}`,
			base64.StdEncoding.EncodeToString([]byte(kubeconfig)))
	})
	c, _ := newTestClient(t, &mux)

	got, err := c.AdminKubeconfig(context.Background(), "rg-banking", "aks-prod")
	require.NoError(t, err)
	assert.Equal(t, kubeconfig, string(got))
}

func TestAdminKubeconfigEmptyList(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"kubeconfigs":[]}`)
	}))

	_, err := c.AdminKubeconfig(context.Background(), "rg", "aks-prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no kubeconfig returned")
}

func TestTestConnectionRemediation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"expired token", http.StatusUnauthorized, "az login"},
		{"missing role", http.StatusForbidden, "Reader role"},
		{"wrong subscription", http.StatusNotFound, "AZURE_SUBSCRIPTION_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "denied", tt.status)
			}))
			err := c.TestConnection(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTestConnectionNetworkError(t *testing.T) {
	c := NewClient("sub-123", StaticToken("test-token"))
	c.SetBaseURL("http://127.0.0.1:1")

	err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network connectivity")
}

func TestTestConnectionOK(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id":"/subscriptions/sub-123","displayName":"Banking"}`)
	}))
	assert.NoError(t, c.TestConnection(context.Background()))
}

func TestEnvOrCLIToken(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		t.Setenv("AZURE_ACCESS_TOKEN", "from-env")
		var ran bool
		src := EnvOrCLIToken(func(context.Context, time.Duration, []string, string, ...string) ([]byte, error) {
			ran = true
			return nil, nil
		})
		token, err := src(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from-env", token)
		assert.False(t, ran, "CLI must not run when the env var is set")
	})

	t.Run("cli fallback", func(t *testing.T) {
		t.Setenv("AZURE_ACCESS_TOKEN", "")
		var gotArgs []string
		src := EnvOrCLIToken(func(_ context.Context, _ time.Duration, _ []string, name string, arg ...string) ([]byte, error) {
			gotArgs = append([]string{name}, arg...)
			return []byte("cli-token\n"), nil
		})
		token, err := src(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cli-token", token)
		assert.Equal(t, []string{"az", "account", "get-access-token", "--query", "accessToken", "--output", "tsv"}, gotArgs)
	})

	t.Run("cli failure", func(t *testing.T) {
		t.Setenv("AZURE_ACCESS_TOKEN", "")
		src := EnvOrCLIToken(func(context.Context, time.Duration, []string, string, ...string) ([]byte, error) {
			return nil, fmt.Errorf("az not found")
		})
		_, err := src(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AZURE_ACCESS_TOKEN")
	})
}

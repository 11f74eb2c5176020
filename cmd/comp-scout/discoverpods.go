// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/compscout/comp-scout/internal/clierr"
	"github.com/compscout/comp-scout/pkg/cluster"
	"github.com/compscout/comp-scout/pkg/resource"
)

var (
	podsOutput         string
	podsNamespaces     []string
	podsNamespacesOnly bool
)

var discoverPodsCmd = &cobra.Command{
	Use:   "discover-pods",
	Short: "List banking-relevant pods per AKS cluster",
	Long: `Discover-pods enumerates the AKS clusters of the subscription, resolves
credentials for each, and lists the pods of every banking-relevant
namespace. System namespaces are always excluded; unreachable clusters
are skipped with a note rather than failing the run.`,
	RunE: runDiscoverPods,
}

func init() {
	discoverPodsCmd.Flags().StringVarP(&podsOutput, "output", "o", "table", "Output format: table or json")
	discoverPodsCmd.Flags().StringSliceVarP(&podsNamespaces, "namespace", "n", nil, "Only list pods in matching namespaces")
	discoverPodsCmd.Flags().BoolVar(&podsNamespacesOnly, "namespaces-only", false, "List banking-relevant namespaces per cluster instead of pods")
	rootCmd.AddCommand(discoverPodsCmd)
}

func runDiscoverPods(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger, err := NewRunLogger("discover-pods")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing without run log)\n", err)
	}
	defer func() {
		if path := logger.Close(); path != "" {
			fmt.Fprintf(os.Stderr, "Run log: %s\n", path)
		}
	}()

	client, err := newAzureClient()
	if err != nil {
		return err
	}
	client.Log = logger.Log

	groups, err := client.ListResourceGroups(ctx)
	if err != nil {
		return fmt.Errorf("%s", clierr.Pretty(err))
	}
	resources, err := client.ListResources(ctx, groups)
	if err != nil {
		return fmt.Errorf("%s", clierr.Pretty(err))
	}

	discovery := &cluster.PodDiscovery{
		Resolver: &cluster.Resolver{
			Admin:             client,
			DefaultKubeconfig: defaultKubeconfigPath(),
			Log:               logger.Log,
		},
		Discoverer: &cluster.Discoverer{Log: logger.Log},
		Log:        logger.Log,
	}

	if podsNamespacesOnly {
		byCluster := discovery.NamespacesByCluster(ctx, resources)
		if len(byCluster) == 0 {
			fmt.Println(clierr.NothingFound("namespaces"))
			return nil
		}
		if podsOutput == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(byCluster)
		}
		for clusterName, namespaces := range byCluster {
			fmt.Printf("Cluster: %s\n", clusterName)
			for _, ns := range namespaces {
				fmt.Printf("  %s\n", ns)
			}
			fmt.Println()
		}
		return nil
	}

	pods := discovery.DiscoverPods(ctx, resources, podsNamespaces)
	if len(pods) == 0 {
		fmt.Println(clierr.NothingFound("pods"))
		return nil
	}

	if podsOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pods)
	}

	renderPodsTable(pods)
	return nil
}

func renderPodsTable(pods []resource.CloudResource) {
	byCluster := make(map[string][]resource.CloudResource)
	var clusters []string
	for _, p := range pods {
		c := p.Properties["cluster"]
		if _, seen := byCluster[c]; !seen {
			clusters = append(clusters, c)
		}
		byCluster[c] = append(byCluster[c], p)
	}

	for _, c := range clusters {
		fmt.Printf("Cluster: %s\n", c)
		fmt.Printf("  %-25s %-35s %s\n", "NAMESPACE", "POD", "STATUS")
		for _, p := range byCluster[c] {
			fmt.Printf("  %-25s %-35s %s\n", p.Namespace(), p.PodName(), p.Properties["status"])
		}
		fmt.Println()
	}
	fmt.Printf("%d pods across %d clusters\n", len(pods), len(clusters))
}

// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/compscout/comp-scout/internal/clierr"
	"github.com/compscout/comp-scout/pkg/cluster"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Verify connectivity to Azure, kubectl, and the knowledge service",
	Long: `Connect checks every dependency one analysis run needs:

  - The management API token and subscription
  - A local kubectl binary for the cluster fallback paths
  - The knowledge service, when configured

Each failing check prints remediation steps. The knowledge service being
down is a warning, not a failure; analysis degrades to built-in
descriptions without it.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	failed := false

	client, err := newAzureClient()
	if err != nil {
		fmt.Printf("✗ Azure: %v\n", err)
		failed = true
	} else if err := client.TestConnection(ctx); err != nil {
		fmt.Printf("✗ Azure: %s\n", clierr.Pretty(err))
		failed = true
	} else {
		fmt.Printf("✓ Azure: subscription %s reachable\n", client.SubscriptionID())
	}

	if err := checkKubectl(ctx); err != nil {
		fmt.Printf("✗ kubectl: %v\n", err)
		fmt.Println("  Hint: install kubectl or add it to PATH; cluster discovery needs it for fallback paths")
		failed = true
	} else {
		fmt.Println("✓ kubectl: available")
	}

	kb := newKnowledgeClient()
	switch {
	case !kb.Configured():
		fmt.Println("- knowledge service: not configured (set KNOWLEDGE_API_URL and KNOWLEDGE_API_TOKEN to enable enrichment)")
	case kb.Healthy(ctx):
		fmt.Println("✓ knowledge service: reachable")
	default:
		fmt.Println("! knowledge service: configured but unreachable; analysis will use built-in descriptions")
	}

	if failed {
		return fmt.Errorf("one or more connectivity checks failed")
	}
	fmt.Println("\nAll required checks passed.")
	return nil
}

func checkKubectl(ctx context.Context) error {
	_, err := cluster.ExecRunner(ctx, 10*time.Second, nil, "kubectl", "version", "--client")
	if err != nil {
		return fmt.Errorf("kubectl version --client failed: %w", err)
	}
	return nil
}

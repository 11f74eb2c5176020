// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Command comp-scout discovers and classifies Temenos banking components
// running in an Azure subscription.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/compscout/comp-scout/pkg/azure"
	"github.com/compscout/comp-scout/pkg/cluster"
	"github.com/compscout/comp-scout/pkg/knowledge"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "comp-scout",
	Short: "Discover and classify Temenos components in Azure",
	Long: `comp-scout - discover and classify Temenos components in Azure

comp-scout enumerates an Azure subscription, expands AKS clusters into
their workload pods, and classifies what it finds into named Temenos
banking components. It provides commands for:

  - Analyzing a subscription into a deduplicated component inventory
  - Listing banking-relevant pods per AKS cluster and namespace
  - Verifying connectivity to Azure, clusters, and the knowledge service

Classification works offline; a reachable knowledge service enriches each
component with architectural and functional descriptions.

Environment Variables:
  AZURE_SUBSCRIPTION_ID   Subscription to analyze (required)
  AZURE_ACCESS_TOKEN      Management API token (default: az CLI fallback)
  KNOWLEDGE_API_URL       Knowledge service base URL (optional)
  KNOWLEDGE_API_TOKEN     Knowledge service bearer token (optional)
  KNOWLEDGE_REGION        Knowledge query region (default: global)
  KNOWLEDGE_MODEL_ID      Override the knowledge query models (optional)
  KUBECONFIG              Path to kubeconfig file (default: ~/.kube/config)
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("comp-scout version %s (built %s)\n", BuildTag, BuildDate)
		},
	})

	// Add completion command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for comp-scout.

Bash:
  $ source <(comp-scout completion bash)
  # Or add to ~/.bashrc:
  $ comp-scout completion bash >> ~/.bashrc

Zsh:
  $ source <(comp-scout completion zsh)
  # Or install to fpath:
  $ comp-scout completion zsh > "${fpath[1]}/_comp-scout"

Fish:
  $ comp-scout completion fish | source
  # Or install:
  $ comp-scout completion fish > ~/.config/fish/completions/comp-scout.fish

PowerShell:
  PS> comp-scout completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

// newAzureClient wires a management client from the environment.
func newAzureClient() (*azure.Client, error) {
	sub := os.Getenv("AZURE_SUBSCRIPTION_ID")
	if sub == "" {
		return nil, fmt.Errorf("AZURE_SUBSCRIPTION_ID is not set")
	}
	return azure.NewClient(sub, azure.EnvOrCLIToken(cluster.ExecRunner)), nil
}

// newKnowledgeClient wires the knowledge service client from the
// environment. An unconfigured client is valid; the enricher degrades.
func newKnowledgeClient() *knowledge.Client {
	return knowledge.NewClient(os.Getenv("KNOWLEDGE_API_URL"), os.Getenv("KNOWLEDGE_API_TOKEN"))
}

// newEnricher wires the enricher with the optional region and model
// overrides from the environment.
func newEnricher() *knowledge.Enricher {
	e := knowledge.NewEnricher(newKnowledgeClient())
	e.Region = os.Getenv("KNOWLEDGE_REGION")
	e.ModelID = os.Getenv("KNOWLEDGE_MODEL_ID")
	return e
}

// defaultKubeconfigPath resolves KUBECONFIG or the conventional location.
func defaultKubeconfigPath() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return home + "/.kube/config"
}

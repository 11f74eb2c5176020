// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/compscout/comp-scout/internal/clierr"
	"github.com/compscout/comp-scout/pkg/cluster"
	"github.com/compscout/comp-scout/pkg/pipeline"
	"github.com/compscout/comp-scout/pkg/resource"
)

var (
	analyzeOutput      string
	analyzeRefresh     bool
	analyzeSkipPods    bool
	analyzeNamespaces  []string
	analyzeGroups      []string
	analyzeInteractive bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a subscription into a component inventory",
	Long: `Analyze enumerates the subscription, expands AKS clusters into pods,
classifies everything into named Temenos components, and enriches each
component with knowledge-service descriptions when the service is
configured.

Duplicate resources backing the same component are collapsed into one
entry; sibling pods appear under the representative's related services.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "table", "Output format: table, json, or yaml")
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "Drop the knowledge cache before analyzing")
	analyzeCmd.Flags().BoolVar(&analyzeSkipPods, "skip-pods", false, "Do not expand AKS clusters into pods")
	analyzeCmd.Flags().StringSliceVarP(&analyzeNamespaces, "namespace", "n", nil, "Only discover pods in matching namespaces")
	analyzeCmd.Flags().StringSliceVarP(&analyzeGroups, "resource-group", "g", nil, "Restrict analysis to these resource groups")
	analyzeCmd.Flags().BoolVarP(&analyzeInteractive, "interactive", "i", false, "Browse results in an interactive viewer")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger, err := NewRunLogger("analyze")
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

	fmt.Fprintln(os.Stderr, "Enumerating resource groups...")
	groups, err := client.ListResourceGroups(ctx)
	if err != nil {
		return fmt.Errorf("%s", clierr.Pretty(err))
	}
	groups = filterGroups(groups, analyzeGroups)

	fmt.Fprintf(os.Stderr, "Enumerating resources in %d groups...\n", len(groups))
	resources, err := client.ListResources(ctx, groups)
	if err != nil {
		return fmt.Errorf("%s", clierr.Pretty(err))
	}
	logger.LogResources(resources)
	if len(resources) == 0 {
		fmt.Println(clierr.NothingFound("resources"))
		return nil
	}

	enricher := newEnricher()
	enricher.Log = logger.Log

	analyzer := pipeline.NewAnalyzer(enricher)
	analyzer.Log = logger.Log
	analyzer.Pods = &cluster.PodDiscovery{
		Resolver: &cluster.Resolver{
			Admin:             client,
			DefaultKubeconfig: defaultKubeconfigPath(),
			Log:               logger.Log,
		},
		Discoverer: &cluster.Discoverer{Log: logger.Log},
		Log:        logger.Log,
	}

	report, err := analyzer.Analyze(ctx, resources, pipeline.Options{
		ForceRefresh:     analyzeRefresh,
		NamespaceFilter:  analyzeNamespaces,
		SkipPodDiscovery: analyzeSkipPods,
	})
	logger.LogReport(report)
	if err != nil {
		logger.LogResult(0, 0, err)
		return fmt.Errorf("%s", clierr.Pretty(err))
	}
	logger.LogResult(len(report.Components), len(report.Unclassified), nil)

	if analyzeInteractive {
		return runResultsViewer(report)
	}
	return renderReport(os.Stdout, report, analyzeOutput)
}

func filterGroups(groups []resource.Group, wanted []string) []resource.Group {
	if len(wanted) == 0 {
		return groups
	}
	var out []resource.Group
	for _, g := range groups {
		for _, w := range wanted {
			if strings.EqualFold(g.Name, w) {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

func renderReport(w *os.File, report *pipeline.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		out, err := sigsyaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "table":
		renderReportTable(w, report)
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

func renderReportTable(w *os.File, report *pipeline.Report) {
	fmt.Fprintf(w, "%-40s %-35s %s\n", "COMPONENT", "TYPE", "RELATED")
	for _, c := range report.Components {
		name := c.Resource.Name
		related := ""
		if c.Knowledge != nil {
			name = c.Knowledge.ComponentName
			related = strings.Join(c.Knowledge.RelatedServices, ", ")
		}
		fmt.Fprintf(w, "%-40s %-35s %s\n", name, componentType(c), related)
	}
	if len(report.Unclassified) > 0 {
		fmt.Fprintf(w, "\nUnclassified (%d):\n", len(report.Unclassified))
		for _, u := range report.Unclassified {
			fmt.Fprintf(w, "  %s (%s)\n", u.Resource.Name, u.Resource.Type)
		}
	}
	fmt.Fprintf(w, "\n%d components, %d unclassified\n", len(report.Components), len(report.Unclassified))
}

// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package classify

import (
	"regexp"
	"strings"
)

// namespaceCanonical maps well-known namespace names to canonical component
// names. Exact matches are tried before the pattern rules below.
var namespaceCanonical = map[string]string{
	"eventstore":      "Event Store Microservice",
	"adapterservice":  "Adapter Microservice",
	"adapter-service": "Adapter Microservice",
	"genericconfig":   "Generic Config Microservice",
	"generic-config":  "Generic Config Microservice",
	"holdings":        "Holdings Microservice",
	"partyv2":         "Party V2 Microservice",
	"party-v2":        "Party V2 Microservice",
	"transact":        "Temenos Transact",
	"modular-banking": "Modular Banking",
	"modularbanking":  "Modular Banking",
	"webingress":      "Web Ingress Microservice",
	"web-ingress":     "Web Ingress Microservice",

	// Namespaces carrying dates or versions.
	"deposits202507": "Deposits Microservice",

	// Dedicated ingress namespaces get component-specific names.
	"ingress-nginx-deposits-202507": "Deposits Ingress Service",
	"ingress-nginx-lending":         "Lending Ingress Service",
	"ingress-nginx-transact":        "Transact Ingress Service",

	"stmtgen":      "Statement Generation Microservice",
	"stmt-gen":     "Statement Generation Microservice",
	"notification": "Notification Microservice",
	"audit":        "Audit Microservice",
	"file":         "File Management Microservice",
	"workflow":     "Workflow Microservice",
	"integration":  "Integration Microservice",
	"deposits":     "Deposits Microservice",
	"lending":      "Lending Microservice",
	"ingress":      "Ingress Microservice",

	"tap":         "Temenos TAP",
	"tap-service": "Temenos TAP Service",

	"temenos":          "Temenos Component",
	"t24":              "Temenos Transact",
	"temenos-transact": "Temenos Transact",
}

// NamespaceRule pairs a predicate over a lower-cased namespace name with the
// canonical name it resolves to. Rules are ordered most- to least-specific.
type NamespaceRule struct {
	Match func(ns string) bool
	Name  string
}

func anyOf(subs ...string) func(string) bool {
	return func(ns string) bool {
		for _, s := range subs {
			if strings.Contains(ns, s) {
				return true
			}
		}
		return false
	}
}

func allOf(subs ...string) func(string) bool {
	return func(ns string) bool {
		for _, s := range subs {
			if !strings.Contains(ns, s) {
				return false
			}
		}
		return true
	}
}

// namespaceRules resolve namespaces that miss the exact map, first match
// wins. Order matters: "eventstore" must beat the bare "event" fragment,
// ingress-nginx variants must beat the generic ingress rules.
var namespaceRules = []NamespaceRule{
	{anyOf("eventstore", "event-store", "event"), "Event Store Microservice"},
	{anyOf("adapter", "adapt"), "Adapter Microservice"},
	{anyOf("genericconfig", "generic-config", "config"), "Generic Config Microservice"},
	{anyOf("holdings", "holding"), "Holdings Microservice"},
	{anyOf("party", "partyv2", "party-v2"), "Party V2 Microservice"},
	{anyOf("transact", "t24", "temenos-transact"), "Temenos Transact"},
	{anyOf("modular", "modularbanking", "modular-banking"), "Modular Banking"},
	{anyOf("stmtgen", "stmt-gen", "statement"), "Statement Generation Microservice"},
	{anyOf("notification", "notify"), "Notification Microservice"},
	{anyOf("audit", "auditing"), "Audit Microservice"},
	{anyOf("file", "files"), "File Management Microservice"},
	{anyOf("workflow", "workflows"), "Workflow Microservice"},
	{anyOf("integration", "integrate"), "Integration Microservice"},
	{anyOf("deposits", "deposit"), "Deposits Microservice"},
	{anyOf("lending", "lend"), "Lending Microservice"},
	{anyOf("webingress", "web-ingress"), "Web Ingress Microservice"},
	{allOf("ingress", "nginx", "transact"), "Transact Ingress Service"},
	{allOf("ingress", "nginx", "deposits"), "Deposits Ingress Service"},
	{allOf("ingress", "nginx", "lending"), "Lending Ingress Service"},
	{allOf("ingress", "nginx"), "Ingress Service"},
	{anyOf("ingress"), "Ingress Microservice"},
	{anyOf("tap"), "Temenos TAP"},
	{anyOf("temenos"), "Temenos Component"},
}

// CanonicalForNamespace resolves a namespace to a canonical component name,
// or "" if nothing matches. Exact lookup first, then the ordered rules.
func CanonicalForNamespace(ns string) string {
	lower := strings.ToLower(ns)
	if name, ok := namespaceCanonical[lower]; ok {
		return name
	}
	for _, rule := range namespaceRules {
		if rule.Match(lower) {
			return rule.Name
		}
	}
	return ""
}

// PatternRule pairs a name pattern with the component it identifies.
type PatternRule struct {
	Pattern  *regexp.Regexp
	Name     string
	Category string
}

// microservicePatterns identify microservices by resource or pod name.
// Checked before corePatterns so a "transact-adapter" pod resolves to the
// adapter, not to Transact itself.
var microservicePatterns = []PatternRule{
	{regexp.MustCompile(`holdings`), "Holdings Microservice", CategoryMicroservice},
	{regexp.MustCompile(`adapter`), "Adapter Microservice", CategoryMicroservice},
	{regexp.MustCompile(`genericconfig`), "Generic Config Microservice", CategoryMicroservice},
	{regexp.MustCompile(`eventstore|event-store`), "Event Store Microservice", CategoryMicroservice},
	{regexp.MustCompile(`stmtgen`), "Statement Generation Microservice", CategoryMicroservice},
	{regexp.MustCompile(`notification`), "Notification Microservice", CategoryMicroservice},
	{regexp.MustCompile(`audit`), "Audit Microservice", CategoryMicroservice},
	{regexp.MustCompile(`file`), "File Management Microservice", CategoryMicroservice},
	{regexp.MustCompile(`workflow`), "Workflow Microservice", CategoryMicroservice},
	{regexp.MustCompile(`integration`), "Integration Microservice", CategoryMicroservice},
}

// corePatterns identify core platform products by name.
var corePatterns = []PatternRule{
	{regexp.MustCompile(`transact`), "Temenos Transact", CategoryCore},
	{regexp.MustCompile(`payments`), "Temenos Payments", CategoryCore},
	{regexp.MustCompile(`wealth`), "Temenos Wealth", CategoryCore},
	{regexp.MustCompile(`digital`), "Temenos Digital", CategoryCore},
	{regexp.MustCompile(`analytics`), "Temenos Analytics", CategoryCore},
	{regexp.MustCompile(`datahub`), "Temenos Data Hub", CategoryCore},
	{regexp.MustCompile(`modular`), "Temenos Modular Banking", CategoryCore},
	{regexp.MustCompile(`\btap\b`), "Temenos TAP", CategoryCore},
}

// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

// Package clierr provides error classification and user-friendly error formatting for the CLI.
// It helps distinguish between different error types and provides actionable hints.
package clierr

import (
	"errors"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Common error types for CLI output.
const (
	TypeAuth       = "auth"       // Missing or expired credentials
	TypeForbidden  = "forbidden"  // Azure RBAC or cluster RBAC denial
	TypeNotFound   = "not_found"  // Subscription, group, or resource not found
	TypeNetwork    = "network"    // Connection/network errors
	TypeInternal   = "internal"   // Internal/unexpected errors
	TypeValidation = "validation" // Input validation errors
)

// IsAuthError checks if the error indicates a missing or expired token.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "invalidauthenticationtoken") ||
		strings.Contains(msg, "token is missing or expired") ||
		strings.Contains(msg, "expiredauthenticationtoken")
}

// IsForbidden checks if the error is an access denied (RBAC) error.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsForbidden(err) {
		return true
	}
	// Also check for common forbidden error patterns in messages
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "authorizationfailed") ||
		strings.Contains(msg, "access denied")
}

// IsNotFound checks if the error indicates a missing subscription or resource.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsNotFound(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "subscriptionnotfound") ||
		strings.Contains(msg, "resourcegroupnotfound")
}

// IsNetworkError checks if the error is a connection/network error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "context deadline exceeded")
}

// ClassifyError determines the type of error for appropriate handling.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if IsAuthError(err) {
		return TypeAuth
	}
	if IsForbidden(err) {
		return TypeForbidden
	}
	if IsNotFound(err) {
		return TypeNotFound
	}
	if IsNetworkError(err) {
		return TypeNetwork
	}
	return TypeInternal
}

// Pretty formats an error with a user-friendly message and actionable hints.
func Pretty(err error) string {
	if err == nil {
		return ""
	}

	errType := ClassifyError(err)
	baseMsg := err.Error()

	switch errType {
	case TypeAuth:
		return fmt.Sprintf("Authentication failed: %s\n\nHint: Refresh your Azure credentials:\n"+
			"  - az login\n"+
			"  - export AZURE_ACCESS_TOKEN=$(az account get-access-token --query accessToken --output tsv)", baseMsg)

	case TypeForbidden:
		return fmt.Sprintf("Access denied: %s\n\nHint: Check permissions on both planes:\n"+
			"  - The identity needs the Reader role on the subscription\n"+
			"  - kubectl auth can-i list pods to verify cluster access", baseMsg)

	case TypeNotFound:
		return fmt.Sprintf("Not found: %s\n\nHint: Verify the subscription and resource names:\n"+
			"  - az account list --output table\n"+
			"  - Check AZURE_SUBSCRIPTION_ID", baseMsg)

	case TypeNetwork:
		return fmt.Sprintf("Connection error: %s\n\nHint: Check connectivity:\n"+
			"  - curl -sI https://management.azure.com to verify the management API is reachable\n"+
			"  - kubectl cluster-info for cluster connectivity", baseMsg)

	default:
		return fmt.Sprintf("Error: %s", baseMsg)
	}
}

// WrapWithHint wraps an error with an additional hint message.
func WrapWithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\n\nHint: %s", err, hint)
}

// NothingFound returns a user-friendly message when discovery returns no results.
// This is different from an error - it's a valid "empty" result.
func NothingFound(what string) string {
	return fmt.Sprintf("No %s found matching your criteria.\n\n"+
		"This might mean:\n"+
		"  - The subscription has no matching resources\n"+
		"  - Your filter is too restrictive\n"+
		"  - You may not have permission to list these resources", what)
}

// Unwrap returns the underlying error, stripping any wrapper.
func Unwrap(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compscout/comp-scout/pkg/pipeline"
	"github.com/compscout/comp-scout/pkg/resource"
)

// RunLogger logs one command run to a file
type RunLogger struct {
	file      *os.File
	startTime time.Time
	command   string
}

// NewRunLogger creates a new logger for a command run
func NewRunLogger(command string) (*RunLogger, error) {
	// Create .comp-scout/logs directory
	logDir := ".comp-scout/logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	// Create log file with timestamp
	timestamp := time.Now().Format("2006-01-02-150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", command, timestamp))

	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	logger := &RunLogger{
		file:      file,
		startTime: time.Now(),
		command:   command,
	}

	logger.writeHeader()

	return logger, nil
}

func (l *RunLogger) writeHeader() {
	l.file.WriteString("=" + strings.Repeat("=", 79) + "\n")
	l.file.WriteString(fmt.Sprintf("comp-scout: %s\n", l.command))
	l.file.WriteString(fmt.Sprintf("Started: %s\n", l.startTime.Format(time.RFC3339)))
	l.file.WriteString("=" + strings.Repeat("=", 79) + "\n\n")
}

// Log writes a message to the log file
func (l *RunLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05")
	msg := fmt.Sprintf(format, args...)
	l.file.WriteString(fmt.Sprintf("[%s] %s\n", timestamp, msg))
}

// Section writes a section header
func (l *RunLogger) Section(title string) {
	if l == nil || l.file == nil {
		return
	}
	l.file.WriteString(fmt.Sprintf("\n--- %s ---\n", title))
}

// LogResources writes the enumerated resources
func (l *RunLogger) LogResources(resources []resource.CloudResource) {
	if l == nil || l.file == nil {
		return
	}
	l.Section("ENUMERATED RESOURCES")
	l.Log("Found %d resources", len(resources))
	for _, r := range resources {
		l.Log("  %s (%s) group=%s", r.Name, r.Type, r.ResourceGroup)
	}
}

// LogReport writes the analysis outcome
func (l *RunLogger) LogReport(report *pipeline.Report) {
	if l == nil || l.file == nil || report == nil {
		return
	}
	l.Section("COMPONENTS")
	l.Log("Identified %d components", len(report.Components))
	for _, c := range report.Components {
		name := c.Resource.Name
		if c.Knowledge != nil {
			name = c.Knowledge.ComponentName
		}
		l.Log("  %s (%s)", name, componentType(c))
		if c.Knowledge != nil {
			for _, related := range c.Knowledge.RelatedServices {
				l.Log("    related: %s", related)
			}
		}
	}
	if len(report.Unclassified) > 0 {
		l.Section("UNCLASSIFIED")
		for _, u := range report.Unclassified {
			l.Log("  %s (%s): %s", u.Resource.Name, u.Resource.Type, u.Error)
		}
	}
}

// LogResult writes the operation result
func (l *RunLogger) LogResult(identified, unclassified int, err error) {
	if l == nil || l.file == nil {
		return
	}
	l.Section("RESULT")
	if err != nil {
		l.Log("ERROR: %v", err)
	}
	l.Log("Identified: %d", identified)
	l.Log("Unclassified: %d", unclassified)
	l.Log("Duration: %s", time.Since(l.startTime).Round(time.Millisecond))
}

// Close closes the log file and returns its path
func (l *RunLogger) Close() string {
	if l == nil || l.file == nil {
		return ""
	}

	l.file.WriteString(fmt.Sprintf("\n\nCompleted: %s\n", time.Now().Format(time.RFC3339)))
	l.file.WriteString(fmt.Sprintf("Duration: %s\n", time.Since(l.startTime).Round(time.Millisecond)))

	path := l.file.Name()
	l.file.Close()
	return path
}

func componentType(r resource.AnalysisResult) string {
	if r.Knowledge != nil && r.Knowledge.ComponentType != "" {
		return r.Knowledge.ComponentType
	}
	return r.Resource.Type
}

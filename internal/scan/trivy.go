// Package scan runs the vulnerability scanner over a built image and gates
// on the findings.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/go-kit/kit/log"
)

// severityRank orders severities for threshold comparison
var severityRank = map[string]int{
	"UNKNOWN":  0,
	"LOW":      1,
	"MEDIUM":   2,
	"HIGH":     3,
	"CRITICAL": 4,
}

// Vulnerability is one finding from the scanner's JSON report
type Vulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	Severity         string `json:"Severity"`
	Title            string `json:"Title"`
}

// Report is the scanner's JSON output, reduced to what we read
type Report struct {
	Results []struct {
		Target          string          `json:"Target"`
		Vulnerabilities []Vulnerability `json:"Vulnerabilities"`
	} `json:"Results"`
}

// Summary counts findings per severity
type Summary map[string]int

// String renders the summary in descending severity order
func (s Summary) String() string {
	if len(s) == 0 {
		return "no findings"
	}

	severities := make([]string, 0, len(s))
	for sev := range s {
		severities = append(severities, sev)
	}
	sort.Slice(severities, func(i, j int) bool {
		return severityRank[severities[i]] > severityRank[severities[j]]
	})

	parts := make([]string, 0, len(severities))
	for _, sev := range severities {
		parts = append(parts, fmt.Sprintf("%s=%d", sev, s[sev]))
	}
	return strings.Join(parts, " ")
}

// Scanner invokes trivy against an image reference
type Scanner struct {
	Binary string

	logger log.Logger
	// run executes the scanner and returns its stdout; injectable for tests
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewScanner creates a trivy wrapper
func NewScanner(logger log.Logger) *Scanner {
	return &Scanner{
		Binary: "trivy",
		logger: logger,
		run:    runScanner,
	}
}

// ScanImage scans an image and parses the JSON report
func (s *Scanner) ScanImage(ctx context.Context, image string) (*Report, error) {
	s.logger.Log("tool", "trivy", "op", "scan", "image", image)

	out, err := s.run(ctx, s.Binary, "image", "--quiet", "--format", "json", image)
	if err != nil {
		return nil, fmt.Errorf("scanning %s failed: %w", image, err)
	}

	var report Report
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("failed to parse scan report for %s: %w", image, err)
	}
	return &report, nil
}

// Summarize counts the report's findings per severity
func Summarize(report *Report) Summary {
	summary := Summary{}
	for _, result := range report.Results {
		for _, vuln := range result.Vulnerabilities {
			summary[strings.ToUpper(vuln.Severity)]++
		}
	}
	return summary
}

// CheckThreshold fails when the summary contains findings at or above
// failOn. An empty failOn disables the gate.
func CheckThreshold(summary Summary, failOn string) error {
	if failOn == "" {
		return nil
	}

	threshold, ok := severityRank[strings.ToUpper(failOn)]
	if !ok {
		return fmt.Errorf("unknown severity threshold: %s", failOn)
	}

	total := 0
	for sev, count := range summary {
		if severityRank[sev] >= threshold {
			total += count
		}
	}
	if total > 0 {
		return fmt.Errorf("%d findings at or above %s (%s)", total, strings.ToUpper(failOn), summary)
	}
	return nil
}

func runScanner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

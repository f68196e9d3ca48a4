// health.go - Readiness checks over the parameters, circuits and ledger
// the CLI works with.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/ledger"
	"saplingcore/internal/params"
	"saplingcore/sapling"
)

// HealthStatus is the outcome of a check or of a whole report.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// errAbsent marks an input that does not exist yet. A check failing with it
// degrades the report instead of failing it.
var errAbsent = errors.New("not present")

// CheckResult is one check as reported by status.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Detail  string        `json:"detail"`
	Latency time.Duration `json:"latency"`
}

// HealthReport is the outcome of running every check once.
type HealthReport struct {
	OverallStatus HealthStatus  `json:"overall_status"`
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	Checks        []CheckResult `json:"checks"`
}

// healthCheck returns a short detail on success.
type healthCheck struct {
	name string
	run  func() (string, error)
}

// HealthChecker runs the readiness checks in a fixed order.
type HealthChecker struct {
	version string
	checks  []healthCheck
}

// NewHealthChecker checks the parameter files, the circuits and the ledger
// snapshot named by cfg, and whether parameters are loaded in this process.
func NewHealthChecker(cfg *Config, version string) *HealthChecker {
	return &HealthChecker{
		version: version,
		checks: []healthCheck{
			{"parameters_loaded", checkParamsLoaded},
			{"parameter_files", func() (string, error) {
				return checkParamFiles(cfg.SpendParamsPath, cfg.OutputParamsPath)
			}},
			{"circuits", checkCircuits},
			{"ledger", func() (string, error) { return checkLedger(cfg.LedgerPath) }},
		},
	}
}

// Check runs every check. Any failure makes the report unhealthy; an absent
// input only degrades it.
func (hc *HealthChecker) Check() *HealthReport {
	report := &HealthReport{
		OverallStatus: Healthy,
		Version:       hc.version,
		Timestamp:     time.Now(),
		Checks:        make([]CheckResult, 0, len(hc.checks)),
	}
	for _, c := range hc.checks {
		start := time.Now()
		detail, err := c.run()
		res := CheckResult{Name: c.name, Status: Healthy, Detail: detail, Latency: time.Since(start)}
		switch {
		case errors.Is(err, errAbsent):
			res.Status = Degraded
			res.Detail = err.Error()
			if report.OverallStatus == Healthy {
				report.OverallStatus = Degraded
			}
		case err != nil:
			res.Status = Unhealthy
			res.Detail = err.Error()
			report.OverallStatus = Unhealthy
		}
		report.Checks = append(report.Checks, res)
	}
	return report
}

func checkParamsLoaded() (string, error) {
	if !sapling.ParamsLoaded() {
		return "", fmt.Errorf("parameters: %w", errAbsent)
	}
	return "loaded", nil
}

func checkParamFiles(spendPath, outputPath string) (string, error) {
	var sizes [2]int
	for i, path := range []string{spendPath, outputPath} {
		blob, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, errAbsent)
		}
		if err != nil {
			return "", err
		}
		if _, _, err := params.Decode(blob); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		sizes[i] = len(blob)
	}
	return fmt.Sprintf("spend %d bytes, output %d bytes", sizes[0], sizes[1]), nil
}

func checkCircuits() (string, error) {
	spend, output, err := params.Compile()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("spend %d constraints, output %d constraints",
		spend.GetNbConstraints(), output.GetNbConstraints()), nil
}

func checkLedger(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, errAbsent)
	}
	l, err := ledger.LoadFromFile(path)
	if err != nil {
		return "", err
	}
	root := l.Root()
	enc := jubjub.EncodeElement(&root)
	return fmt.Sprintf("%d commitments, root %x", l.Size(), enc), nil
}

package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/cascoin/cascoin-l2/params"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// SubsystemHealth describes the health of one subsystem.
type SubsystemHealth struct {
	Name    string
	Status  string
	Message string
}

// HealthReport aggregates all subsystem checks. OverallStatus is healthy
// only when every subsystem is, degraded when any is degraded, and
// unhealthy when any is unhealthy.
type HealthReport struct {
	OverallStatus string
	Subsystems    []SubsystemHealth
	CheckedAt     int64
	Uptime        int64
}

// CheckFunc returns the status and an optional message for a subsystem.
type CheckFunc func() (status string, message string)

// HealthChecker runs registered subsystem checks in registration order.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	order     []string
	startTime int64
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now().Unix(),
	}
}

// Register adds or replaces a named check.
func (hc *HealthChecker) Register(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if _, ok := hc.checks[name]; !ok {
		hc.order = append(hc.order, name)
	}
	hc.checks[name] = check
}

// CheckAll runs every registered check and consolidates the results.
func (hc *HealthChecker) CheckAll() *HealthReport {
	hc.mu.RLock()
	order := make([]string, len(hc.order))
	copy(order, hc.order)
	checks := make(map[string]CheckFunc, len(hc.checks))
	for k, v := range hc.checks {
		checks[k] = v
	}
	start := hc.startTime
	hc.mu.RUnlock()

	now := time.Now().Unix()
	report := &HealthReport{
		OverallStatus: StatusHealthy,
		CheckedAt:     now,
		Uptime:        now - start,
	}
	for _, name := range order {
		status, msg := checks[name]()
		report.Subsystems = append(report.Subsystems, SubsystemHealth{
			Name: name, Status: status, Message: msg,
		})
		switch status {
		case StatusUnhealthy:
			report.OverallStatus = StatusUnhealthy
		case StatusDegraded:
			if report.OverallStatus != StatusUnhealthy {
				report.OverallStatus = StatusDegraded
			}
		}
	}
	return report
}

// Healthy reports whether every subsystem check passes. An empty checker
// is healthy.
func (hc *HealthChecker) Healthy() bool {
	return hc.CheckAll().OverallStatus == StatusHealthy
}

// Health runs the node's built-in subsystem checks.
func (n *Node) Health() *HealthReport {
	hc := NewHealthChecker()
	hc.Register("node", func() (string, string) {
		if !n.Running() {
			return StatusUnhealthy, "node not running"
		}
		return StatusHealthy, ""
	})
	hc.Register("sequencers", func() (string, string) {
		eligible := len(n.registry.Eligible())
		if eligible == 0 {
			return StatusUnhealthy, "no eligible sequencers"
		}
		if eligible < params.MinMintSequencers {
			return StatusDegraded, fmt.Sprintf("%d eligible sequencers", eligible)
		}
		return StatusHealthy, fmt.Sprintf("%d eligible sequencers", eligible)
	})
	hc.Register("l1", func() (string, string) {
		if _, ok := n.reorgMonitor.Tip(); !ok {
			return StatusDegraded, "no L1 headers tracked yet"
		}
		return StatusHealthy, ""
	})
	hc.Register("supply", func() (string, string) {
		supply := n.state.TotalSupply()
		locked := n.state.TotalValueLocked()
		if supply > locked {
			return StatusUnhealthy,
				fmt.Sprintf("supply %d exceeds locked %d", supply, locked)
		}
		return StatusHealthy, fmt.Sprintf("supply %d locked %d", supply, locked)
	})
	return hc.CheckAll()
}

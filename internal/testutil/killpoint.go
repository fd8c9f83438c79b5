//go:build crashtest

// Package testutil provides test utilities for crash-safety testing.
//
// Kill points provide a mechanism to deterministically exit a process at
// specific code locations for whitebox crash testing (spec.md P5: a
// subsequent mount must see either the prior state or the new state,
// never a mixture). Unlike sync points, kill points terminate the process
// to simulate a real power loss.
//
// Usage:
//
//	// In production code (compiled out without the build tag):
//	testutil.MaybeKill(testutil.KPWriterCommit0)
//
//	// In test harness (set via env var or API):
//	testutil.SetKillPoint(testutil.KPWriterCommit0)
//
// Build with kill points enabled:
//
//	go test -tags crashtest ./...
package testutil

import (
	"os"
	"sync"
	"sync/atomic"
)

type killPointState struct {
	target atomic.Value // string
	armed  atomic.Bool

	mu        sync.RWMutex
	hitCounts map[string]int64
}

var globalKillPoint = &killPointState{
	hitCounts: make(map[string]int64),
}

// KillPointEnvVar is the environment variable used to set the kill point
// target.
const KillPointEnvVar = "FLASHFS_KILL_POINT"

func init() {
	if target := os.Getenv(KillPointEnvVar); target != "" {
		globalKillPoint.target.Store(target)
		globalKillPoint.armed.Store(true)
	}
}

// SetKillPoint sets the target kill point name. When MaybeKill is called
// with this name, the process exits.
func SetKillPoint(name string) {
	globalKillPoint.target.Store(name)
	globalKillPoint.armed.Store(true)
}

// ClearKillPoint clears the kill point target.
func ClearKillPoint() {
	globalKillPoint.target.Store("")
	globalKillPoint.armed.Store(false)
}

// ArmKillPoint enables kill point processing.
func ArmKillPoint() {
	globalKillPoint.armed.Store(true)
}

// DisarmKillPoint disables kill point processing without clearing the
// target.
func DisarmKillPoint() {
	globalKillPoint.armed.Store(false)
}

// IsKillPointArmed reports whether kill points are currently active.
func IsKillPointArmed() bool {
	return globalKillPoint.armed.Load()
}

// GetKillPointTarget returns the currently configured kill point name.
func GetKillPointTarget() string {
	v, _ := globalKillPoint.target.Load().(string)
	return v
}

// GetKillPointHitCount returns how many times name has been reached.
func GetKillPointHitCount(name string) int64 {
	globalKillPoint.mu.RLock()
	defer globalKillPoint.mu.RUnlock()
	return globalKillPoint.hitCounts[name]
}

// ResetKillPointCounts clears all hit counters.
func ResetKillPointCounts() {
	globalKillPoint.mu.Lock()
	defer globalKillPoint.mu.Unlock()
	globalKillPoint.hitCounts = make(map[string]int64)
}

// MaybeKill records a hit at name and exits the process if name is the
// currently armed kill point.
func MaybeKill(name string) {
	globalKillPoint.mu.Lock()
	globalKillPoint.hitCounts[name]++
	globalKillPoint.mu.Unlock()

	if !globalKillPoint.armed.Load() {
		return
	}
	if GetKillPointTarget() == name {
		os.Exit(134) // SIGABRT-like exit code, distinguishable from normal failures
	}
}

// Kill point name constants — the code locations a crash simulation can
// target (spec.md §4.2, §4.5, §4.6).
const (
	// Writer kill points.
	KPWriterAppendBody0      = "Writer.AppendBody:0"
	KPWriterCommit0          = "Writer.Commit:0"
	KPWriterInvalidatePrior0 = "Writer.InvalidatePrior:0"

	// Unlink kill points.
	KPUnlinkInvalidate0 = "Unlink.Invalidate:0"

	// Compaction kill points.
	KPCompactStageCopy0   = "Compact.StageCopy:0"
	KPCompactMarkerSet0   = "Compact.MarkerSet:0"
	KPCompactErase0       = "Compact.Erase:0"
	KPCompactRewrite0     = "Compact.Rewrite:0"
	KPCompactMarkerClear0 = "Compact.MarkerClear:0"

	// Superblock kill points.
	KPSuperblockWrite0 = "Superblock.Write:0"
)

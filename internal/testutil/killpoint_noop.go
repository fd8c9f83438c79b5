//go:build !crashtest

// Package testutil provides test utilities for crash-safety testing.
//
// This file provides no-op implementations of kill point functions for
// production builds. When built without the "crashtest" tag, all kill
// point calls are effectively eliminated by the compiler.
package testutil

// KillPointEnvVar is the environment variable used to set the kill point
// target. In production builds, this is defined but ignored.
const KillPointEnvVar = "FLASHFS_KILL_POINT"

// SetKillPoint is a no-op in production builds.
func SetKillPoint(_ string) {}

// ClearKillPoint is a no-op in production builds.
func ClearKillPoint() {}

// ArmKillPoint is a no-op in production builds.
func ArmKillPoint() {}

// DisarmKillPoint is a no-op in production builds.
func DisarmKillPoint() {}

// IsKillPointArmed always returns false in production builds.
func IsKillPointArmed() bool { return false }

// GetKillPointTarget always returns empty string in production builds.
func GetKillPointTarget() string { return "" }

// GetKillPointHitCount always returns 0 in production builds.
func GetKillPointHitCount(_ string) int64 { return 0 }

// ResetKillPointCounts is a no-op in production builds.
func ResetKillPointCounts() {}

// MaybeKill is a no-op in production builds.
// The compiler should inline and eliminate this entirely.
func MaybeKill(_ string) {}

// Kill point name constants, defined for API compatibility even in
// production builds.
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

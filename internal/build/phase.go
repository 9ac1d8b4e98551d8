// Package build implements the atomic build orchestrator: backup, build,
// verify, then commit or roll back. A failed build never corrupts the
// previously deployed output tree.
package build

// Phase is one named stage of the build state machine. Exactly one phase is
// current at any instant; phases before Completed/Failed are strictly
// ordered except Rollback, which may be entered from ContentProcessing
// through Verification on failure.
type Phase string

const (
	PhaseInitializing      Phase = "Initializing"
	PhaseBackupCreation    Phase = "BackupCreation"
	PhaseContentProcessing Phase = "ContentProcessing"
	PhaseTemplateRendering Phase = "TemplateRendering"
	PhaseAssetCopying      Phase = "AssetCopying"
	PhaseVerification      Phase = "Verification"
	PhaseCleanup           Phase = "Cleanup"
	PhaseRollback          Phase = "Rollback"
	PhaseCompleted         Phase = "Completed"
	PhaseFailed            Phase = "Failed"
)

// Terminal reports whether the phase ends a build.
func (p Phase) Terminal() bool { return p == PhaseCompleted || p == PhaseFailed }

// percent maps each phase to its progress percentage. Within a build the
// sequence is monotonically non-decreasing except on Rollback.
var percent = map[Phase]int{
	PhaseInitializing:      5,
	PhaseBackupCreation:    15,
	PhaseContentProcessing: 40,
	PhaseTemplateRendering: 65,
	PhaseAssetCopying:      80,
	PhaseVerification:      90,
	PhaseCleanup:           95,
	PhaseRollback:          95,
	PhaseCompleted:         100,
	PhaseFailed:            100,
}

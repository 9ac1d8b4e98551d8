package build

import "time"

// Stats aggregates counts over one build attempt.
type Stats struct {
	DocumentsProcessed int `json:"documents_processed"`
	PagesRendered      int `json:"pages_rendered"`
	AssetsCopied       int `json:"assets_copied"`
}

// Result is the terminal value of one build attempt. It is created exactly
// once, at the end of a build, and never mutated afterwards.
type Result struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`

	// OutputDir is set on success and on successful rollback (the restored
	// tree); empty otherwise.
	OutputDir string `json:"output_dir,omitempty"`
	// BackupDir is set only when rollback itself failed, so an operator can
	// recover manually.
	BackupDir string `json:"backup_dir,omitempty"`

	Stats Stats `json:"stats"`
	Err   error `json:"-"`
}

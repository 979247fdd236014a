package domain

// CommonOptions contains shared flags that flow from the CLI into the
// scrape/upload pipeline.
type CommonOptions struct {
	Verbose     bool
	DryRun      bool
	Force       bool
	Limit       int
	Incremental bool
	KeepRemote  bool // keep remote files on delete, detach from collection only
	AutoRebuild bool
}

// DefaultCommonOptions returns CommonOptions with default values.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{Incremental: true, AutoRebuild: true}
}

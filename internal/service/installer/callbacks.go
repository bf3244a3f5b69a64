package installer

// Stage identifies the pipeline step currently executing. Stages advance
// strictly forward; none is ever re-entered within a run.
type Stage int

// Pipeline stages in execution order.
const (
	StageIdle Stage = iota
	StageCheckingCompatibility
	StageCheckingPrivilege
	StageResolvingRelease
	StageSelectingAsset
	StageDownloading
	StageInstalling
	StageSucceeded
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageCheckingCompatibility:
		return "Checking system compatibility"
	case StageCheckingPrivilege:
		return "Checking privileges"
	case StageResolvingRelease:
		return "Fetching release information"
	case StageSelectingAsset:
		return "Locating installation package"
	case StageDownloading:
		return "Downloading package"
	case StageInstalling:
		return "Installing package"
	case StageSucceeded:
		return "Installation completed"
	default:
		return "Idle"
	}
}

// FailureKind classifies a terminal pipeline failure for front ends.
type FailureKind int

// Failure kinds, one per failing stage.
const (
	FailureNone FailureKind = iota
	FailureIncompatible
	FailurePrivilege
	FailureNetwork
	FailureReleaseNotFound
	FailureAssetNotFound
	FailureDownload
	FailureInstall
)

// Callbacks is the contract both front ends implement. The pipeline never
// depends on a concrete front end type; it only feeds this interface.
// All methods are invoked from the goroutine running the pipeline; a
// graphical front end must marshal onto its own UI thread itself.
type Callbacks interface {
	// OnStage reports entry into a pipeline stage.
	OnStage(stage Stage)
	// OnDetail reports a free-form informational line within a stage.
	OnDetail(message string)
	// OnDownloadProgress reports byte-level download progress.
	OnDownloadProgress(percent int, downloaded, total int64)
	// OnInstallStatus reports one line of live package manager output.
	OnInstallStatus(line string)
}

// NopCallbacks discards every report. Used when no front end is attached.
type NopCallbacks struct{}

func (NopCallbacks) OnStage(Stage)                        {}
func (NopCallbacks) OnDetail(string)                      {}
func (NopCallbacks) OnDownloadProgress(int, int64, int64) {}
func (NopCallbacks) OnInstallStatus(string)               {}

// Outcome is the terminal value of one pipeline run.
type Outcome struct {
	// Succeeded reports whether the package was installed.
	Succeeded bool
	// Version is the release version the run resolved, when resolution got that far.
	Version string
	// Log is the captured package manager output, success or failure.
	Log string
	// Failure classifies the failing stage; FailureNone on success.
	Failure FailureKind
	// Err is the terminal error; nil on success.
	Err error
}

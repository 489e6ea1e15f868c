package core

// Phase of an upload as shown to the user.
type Phase string

const (
	PhaseTransfer Phase = "transfer"
	PhaseFinalize Phase = "finalize"
	PhaseDone     Phase = "done"
)

// Byte transfer fills the bar up to TransferCeiling; the rest is reserved for
// writing the record.
const (
	TransferCeiling = 90.0
	FinalizePercent = 95.0
	DonePercent     = 100.0
)

// Progress is one progress report. Estimated is set when the numbers are
// simulated rather than measured.
type Progress struct {
	Path           UploadPath
	Phase          Phase
	Percent        float64
	BytesUploaded  int64
	BytesTotal     int64
	BytesPerSecond float64
	Estimated      bool
}

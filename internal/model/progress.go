package model

// Phase is the coarse stage reported to the user.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseProcessing  Phase = "processing"
	PhaseDone        Phase = "done"
)

// Progress is a per-item progress report.
//
// While downloading, Percent stays within [0, 99] and never decreases.
// It becomes 100 only once the transfer is confirmed. Indeterminate is set
// when the total size is unknown, and Percent is then meaningless.
type Progress struct {
	ItemID        string
	Title         string
	Phase         Phase
	State         ItemState
	Percent       int
	Indeterminate bool
	Bytes         int64
	Total         int64
}

package scan

// State is the stage a scan run is in.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateExtracting
	StateNormalizing
	StateFetchingDetails
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateCapturing:       "capturing",
	StateExtracting:      "extracting",
	StateNormalizing:     "normalizing",
	StateFetchingDetails: "fetching_details",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s within a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

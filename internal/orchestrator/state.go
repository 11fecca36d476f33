package orchestrator

// State is a step in handling one generation request.
//
//	Start → TextReady → (AudioReady | AudioSkipped) → Done
//	Start → Failed → Done
type State uint8

const (
	Start State = iota
	TextReady
	AudioReady
	AudioSkipped
	Failed
	Done
)

var stateNames = [...]string{
	Start:        "start",
	TextReady:    "text_ready",
	AudioReady:   "audio_ready",
	AudioSkipped: "audio_skipped",
	Failed:       "failed",
	Done:         "done",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

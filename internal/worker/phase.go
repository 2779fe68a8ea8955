package worker

// Phase is the worker's position in the delivery cycle.
type Phase int32

// Delivery phases, in cycle order.
const (
	PhaseIdle Phase = iota
	PhaseCheckMute
	PhasePreCue
	PhaseDuck
	PhaseSpeaking
	PhaseUnduck
	PhasePostCue
)

var phaseNames = [...]string{
	PhaseIdle:      "idle",
	PhaseCheckMute: "check-mute",
	PhasePreCue:    "pre-cue",
	PhaseDuck:      "duck",
	PhaseSpeaking:  "speaking",
	PhaseUnduck:    "unduck",
	PhasePostCue:   "post-cue",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

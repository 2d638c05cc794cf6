package engine

import "fmt"

// Phase is a step of a setup run.
type Phase int

const (
	Idle Phase = iota
	Resolving
	BackingUp
	Installing
	Committing
	Done
	Aborted
)

var phaseNames = map[Phase]string{
	Idle:       "idle",
	Resolving:  "resolving",
	BackingUp:  "backing-up",
	Installing: "installing",
	Committing: "committing",
	Done:       "done",
	Aborted:    "aborted",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == Done || p == Aborted
}

// next lists the legal successors of each phase.
var next = map[Phase][]Phase{
	Idle:       {Resolving},
	Resolving:  {BackingUp, Aborted},
	BackingUp:  {Installing, Aborted},
	Installing: {Committing, Aborted},
	Committing: {Done, Aborted},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to Phase) bool {
	for _, p := range next[from] {
		if p == to {
			return true
		}
	}
	return false
}

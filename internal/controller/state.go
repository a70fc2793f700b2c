package controller

import (
	"fmt"
	"slices"
)

// State is one step of the crawl state machine.
type State int

const (
	AwaitSession State = iota
	OpenQuotes
	DiscoverMonthly
	SaveMonthly
	AwaitWeeklyToggle
	DiscoverWeekly
	ParseList
	AwaitFirstMonthly
	SelectExpiration
	AwaitSelected
	SeekStrikeEdge
	AwaitStrikeEdge
	PageStrikes
	AdvanceOrFinish
	AwaitNextReady
	AssembleTable
	RewindStrikes
	NextOrExit
	Export
	Wait
	Terminated
)

var stateNames = [...]string{
	AwaitSession:      "await_session",
	OpenQuotes:        "open_quotes",
	DiscoverMonthly:   "discover_monthly",
	SaveMonthly:       "save_monthly",
	AwaitWeeklyToggle: "await_weekly_toggle",
	DiscoverWeekly:    "discover_weekly",
	ParseList:         "parse_list",
	AwaitFirstMonthly: "await_first_monthly",
	SelectExpiration:  "select_expiration",
	AwaitSelected:     "await_selected",
	SeekStrikeEdge:    "seek_strike_edge",
	AwaitStrikeEdge:   "await_strike_edge",
	PageStrikes:       "page_strikes",
	AdvanceOrFinish:   "advance_or_finish",
	AwaitNextReady:    "await_next_ready",
	AssembleTable:     "assemble_table",
	RewindStrikes:     "rewind_strikes",
	NextOrExit:        "next_or_exit",
	Export:            "export",
	Wait:              "wait",
	Terminated:        "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// transitions lists the forward moves of each state. Wait, Terminated and
// the fault restart into AwaitSession are allowed from anywhere.
var transitions = map[State][]State{
	AwaitSession:      {OpenQuotes},
	OpenQuotes:        {DiscoverMonthly},
	DiscoverMonthly:   {SaveMonthly, ParseList},
	SaveMonthly:       {AwaitWeeklyToggle},
	AwaitWeeklyToggle: {DiscoverWeekly},
	DiscoverWeekly:    {ParseList},
	ParseList:         {AwaitFirstMonthly, DiscoverMonthly},
	AwaitFirstMonthly: {SeekStrikeEdge},
	SelectExpiration:  {SelectExpiration, AwaitSelected, Export},
	AwaitSelected:     {SeekStrikeEdge},
	SeekStrikeEdge:    {AwaitStrikeEdge},
	AwaitStrikeEdge:   {PageStrikes},
	PageStrikes:       {AdvanceOrFinish, RewindStrikes},
	AdvanceOrFinish:   {AwaitNextReady, AssembleTable, RewindStrikes},
	AwaitNextReady:    {PageStrikes},
	AssembleTable:     {RewindStrikes},
	RewindStrikes:     {NextOrExit},
	NextOrExit:        {SelectExpiration},
	Export:            {AwaitSession},
	Terminated:        {},
}

// Allowed reports whether the machine may move from one state to another.
func Allowed(from, to State) bool {
	if from == Terminated {
		return false
	}
	switch to {
	case Wait, Terminated, AwaitSession:
		return true
	}
	if from == Wait {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// awaits reports whether s polls the page and is bounded by the await limit.
func (s State) awaits() bool {
	switch s {
	case AwaitSession, Wait, Terminated, Export, NextOrExit:
		return false
	}
	return true
}

package controller

import "time"

// Status is an immutable view of the controller for the control API.
type Status struct {
	State           string      `json:"state"`
	CycleID         string      `json:"cycle_id,omitempty"`
	Index           int         `json:"index"`
	Entry           string      `json:"entry,omitempty"`
	Weekly          bool        `json:"weekly"`
	List            []string    `json:"list,omitempty"`
	Pending         int         `json:"pending_products"`
	Strikes         int         `json:"strikes"`
	ProductsDone    int         `json:"products_done"`
	ProductsAborted int         `json:"products_aborted"`
	Cycles          int         `json:"cycles"`
	Discoveries     int         `json:"discoveries"`
	Ticks           uint64      `json:"ticks"`
	StateTicks      int         `json:"state_ticks"`
	LastExport      *ExportInfo `json:"last_export,omitempty"`
	LastFault       *Fault      `json:"last_fault,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ExportInfo summarizes the last flushed document.
type ExportInfo struct {
	CycleID  string    `json:"cycle_id"`
	Name     string    `json:"name"`
	Products int       `json:"products"`
	Bytes    int       `json:"bytes"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Fault is the last error that aborted a product or a cycle.
type Fault struct {
	State string    `json:"state"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

func (c *Controller) snapshot() Status {
	st := Status{
		State:           c.state.String(),
		CycleID:         c.cycleID,
		Index:           c.index,
		Weekly:          c.weekly,
		Pending:         c.asm.Pending(),
		Strikes:         len(c.records),
		ProductsDone:    c.done,
		ProductsAborted: c.aborted,
		Cycles:          c.cycles,
		Discoveries:     c.discoveries,
		Ticks:           c.ticks,
		StateTicks:      c.stateTicks,
		UpdatedAt:       c.deps.Now(),
	}
	if c.list.Len() > 0 {
		st.List = c.list.Tokens()
		if e, ok := c.list.At(c.index); ok {
			st.Entry = e.String()
		}
	}
	if c.lastExport != nil {
		e := *c.lastExport
		st.LastExport = &e
	}
	if c.lastFault != nil {
		f := *c.lastFault
		st.LastFault = &f
	}
	return st
}

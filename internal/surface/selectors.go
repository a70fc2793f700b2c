package surface

import "fmt"

// Selectors holds every CSS hook the crawler relies on. The quotes page ships
// hashed class names that change between releases, so all of them can be
// overridden from a YAML file.
type Selectors struct {
	CookieReject string `yaml:"cookie_reject"`
	QuotesTab    string `yaml:"quotes_tab"`

	FilterContainer      string `yaml:"filter_container"`
	FilterContainerIndex int    `yaml:"filter_container_index"`
	OtherRows            string `yaml:"other_rows"`
	ShowMore             string `yaml:"show_more"`
	ShowMoreLabel        string `yaml:"show_more_label"`

	MonthlyButton   string `yaml:"monthly_button"`
	WeeklyButton    string `yaml:"weekly_button"`
	SelectedMonthly string `yaml:"selected_monthly"`
	SelectedWeekly  string `yaml:"selected_weekly"`
	// SelectedIndex is the position of the selected date among the selected
	// buttons; position 0 is the active monthly/weekly toggle itself.
	SelectedIndex int `yaml:"selected_index"`

	StrikeRows  string `yaml:"strike_rows"`
	SideTables  string `yaml:"side_tables"`
	RowCells    string `yaml:"row_cells"`
	Totals      string `yaml:"totals"`
	ArrowTop    string `yaml:"arrow_top"`
	ArrowBottom string `yaml:"arrow_bottom"`
}

// DefaultSelectors returns the hooks observed on the DAX options page.
func DefaultSelectors() Selectors {
	return Selectors{
		CookieReject: "#cookiescript_reject",
		QuotesTab:    `[id="tabsTab-1.1"]`,

		FilterContainer:      "._filterContainer_15sg6_1",
		FilterContainerIndex: 1,
		OtherRows:            "._row_15sg6_30._otherRows_15sg6_38",
		ShowMore:             "._showMoreLessButton_15sg6_121",
		ShowMoreLabel:        "Show more",

		MonthlyButton:   "._filterButton_15sg6_42._monthly_15sg6_63",
		WeeklyButton:    "._filterButton_15sg6_42._weekly_15sg6_72",
		SelectedMonthly: "._filterButton_15sg6_42._selected_15sg6_67._monthly_15sg6_63",
		SelectedWeekly:  "._filterButton_15sg6_42._selected_15sg6_67._weekly_15sg6_72",
		SelectedIndex:   1,

		StrikeRows:  "._body_row_1xods_65._row_desktop_1xods_33",
		SideTables:  ".react-table",
		RowCells:    "tbody > tr:nth-child(%d) > td",
		Totals:      "._total_cell_content_1xw9d_14",
		ArrowTop:    "._arrow_1htfc_32._arrow_top_1htfc_35",
		ArrowBottom: "._arrow_1htfc_32._arrow_bottom_1htfc_42",
	}
}

// Validate reports the first empty hook.
func (s Selectors) Validate() error {
	fields := []struct {
		name, val string
	}{
		{"quotes_tab", s.QuotesTab},
		{"filter_container", s.FilterContainer},
		{"other_rows", s.OtherRows},
		{"show_more", s.ShowMore},
		{"monthly_button", s.MonthlyButton},
		{"weekly_button", s.WeeklyButton},
		{"selected_monthly", s.SelectedMonthly},
		{"selected_weekly", s.SelectedWeekly},
		{"strike_rows", s.StrikeRows},
		{"side_tables", s.SideTables},
		{"row_cells", s.RowCells},
		{"totals", s.Totals},
		{"arrow_top", s.ArrowTop},
		{"arrow_bottom", s.ArrowBottom},
	}
	for _, f := range fields {
		if f.val == "" {
			return fmt.Errorf("selector %s is empty", f.name)
		}
	}
	return nil
}

func (s Selectors) Sel(css string) Selector { return Selector{CSS: css} }

// Cells addresses the cells of visible body row i (0-based) of the table-th
// side table (0 call, 1 put).
func (s Selectors) Cells(table, i int) Selector {
	return Selector{Scope: s.SideTables, ScopeIndex: table, CSS: fmt.Sprintf(s.RowCells, i+1)}
}

// Selected returns the selected-button selector for the given view.
func (s Selectors) Selected(weekly bool) Selector {
	if weekly {
		return Selector{CSS: s.SelectedWeekly}
	}
	return Selector{CSS: s.SelectedMonthly}
}

// Buttons returns the date button selector for the given view. Match 0 is
// the view toggle; dates follow from 1.
func (s Selectors) Buttons(weekly bool) Selector {
	if weekly {
		return Selector{CSS: s.WeeklyButton}
	}
	return Selector{CSS: s.MonthlyButton}
}

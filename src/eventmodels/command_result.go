package eventmodels

// CommandResult describes what was handed to the terminal. For file drops
// Path is the written file; for the add-on Response holds the decoded body.
type CommandResult struct {
	Role     LegRole                `json:"role"`
	Command  string                 `json:"command"`
	Path     string                 `json:"path,omitempty"`
	Response map[string]interface{} `json:"response,omitempty"`
}

type BracketResult struct {
	OcoID      string         `json:"ocoId,omitempty"`
	Deferred   bool           `json:"deferred"`
	Entry      *CommandResult `json:"entry"`
	TakeProfit *CommandResult `json:"takeProfit,omitempty"`
	StopLoss   *CommandResult `json:"stopLoss,omitempty"`
}

// Legs returns the commands that were sent, entry first.
func (r *BracketResult) Legs() []*CommandResult {
	var legs []*CommandResult
	for _, leg := range []*CommandResult{r.Entry, r.TakeProfit, r.StopLoss} {
		if leg != nil {
			legs = append(legs, leg)
		}
	}

	return legs
}

package eventmodels

type FlattenRequest struct {
	Account            string
	Symbol             string
	StrategyTag        string
	StrategyInstanceID string
}

// IsStrategyScoped reports whether the close is narrowed to one strategy
// instance. Both the tag and the instance id are required for that.
func (r FlattenRequest) IsStrategyScoped() bool {
	return r.StrategyTag != "" && r.StrategyInstanceID != ""
}

// Scoped returns r with the strategy fields cleared unless both are present.
func (r FlattenRequest) Scoped() FlattenRequest {
	if !r.IsStrategyScoped() {
		r.StrategyTag = ""
		r.StrategyInstanceID = ""
	}

	return r
}

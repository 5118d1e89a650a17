package eventmodels

// OcoGroup links legs that cancel each other. Legs are in submission order.
// When the entry is a market order it is not a member of the group.
type OcoGroup struct {
	ID   string
	Legs []OrderRequest
}

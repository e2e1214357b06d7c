package entity

// PriceSource tells where a USD quote came from.
type PriceSource string

const (
	// PriceSourceFixed means the symbol is in the fixed USD table.
	PriceSourceFixed PriceSource = "fixed"
	// PriceSourceFeed means the price came from the external price feed.
	PriceSourceFeed PriceSource = "feed"
)

// PriceStatus distinguishes a usable quote from "no data". A symbol with no
// feed id is unsupported; a feed fetch that errored is unavailable. Neither
// may be rendered as $0.00.
type PriceStatus string

const (
	PriceOK          PriceStatus = "ok"
	PriceUnsupported PriceStatus = "unsupported"
	PriceUnavailable PriceStatus = "unavailable"
)

// TokenPrice is a USD price observation for a token symbol.
type TokenPrice struct {
	Symbol    string      `json:"symbol"`
	USD       float64     `json:"usd"`
	Timestamp int64       `json:"timestamp"`
	Source    PriceSource `json:"source"`
	Status    PriceStatus `json:"status"`
}

// Usable reports whether the price may enter USD-value calculations.
func (p TokenPrice) Usable() bool {
	return p.Status == PriceOK
}

package entity

// PythPriceFeed represents one price feed entry from the Hermes
// latest_price_feeds endpoint.
type PythPriceFeed struct {
	ID       string    `json:"id"`
	Price    PythPrice `json:"price"`
	EmaPrice PythPrice `json:"ema_price"`
}

// PythPrice carries a fixed-point price observation. The actual USD value is
// Price * 10^Expo.
type PythPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

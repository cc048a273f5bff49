package domain

import "time"

// Item is a marketplace listing tracked across poll cycles. Quantity always
// reflects the most recent successful fetch that mentioned the id, or 0 when
// the id was absent from that fetch. Items are never deleted so existing
// subscriptions stay valid.
type Item struct {
	ID              int64
	Quantity        int
	DisplayName     string
	Description     string
	PriceMinorUnits int
	PriceDecimals   int
	LogoURL         string
	Branch          string
	Address         string
	Latitude        float64
	Longitude       float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FetchedItem is one listing as returned by a marketplace fetch.
type FetchedItem struct {
	ItemID          int64
	Quantity        int
	DisplayName     string
	Description     string
	PriceMinorUnits int
	PriceDecimals   int
	LogoURL         string
	Branch          string
	Address         string
	Latitude        float64
	Longitude       float64
}

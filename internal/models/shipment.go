// Package models defines the core data model for rate aggregation:
// shipments, quotes, merchant provider configuration, and fallback policy.
package models

import "time"

// Address represents a shipping origin or destination.
type Address struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Parcel holds the physical facts of a single package. Each parcel declares
// its own weight and dimension units; nothing downstream converts between
// units implicitly.
type Parcel struct {
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weight_unit"`
	Length        float64 `json:"length"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	DimensionUnit string  `json:"dimension_unit"`
}

// Volume returns the parcel volume in cubic units of its dimension unit.
func (p Parcel) Volume() float64 {
	return p.Length * p.Width * p.Height
}

// LineItem represents a purchased item within the shipment.
type LineItem struct {
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	ProductType string  `json:"product_type,omitempty"`
}

// ShipmentDetails is the immutable snapshot of a shipment used for rating.
// It is constructed once per request and never mutated afterwards; the
// derived accessors below are pure reads.
type ShipmentDetails struct {
	Origin          Address    `json:"origin"`
	Destination     Address    `json:"destination"`
	Parcels         []Parcel   `json:"parcels"`
	Items           []LineItem `json:"items"`
	TotalOrderValue float64    `json:"total_order_value"`
	Currency        string     `json:"currency"`
	ShipDate        *time.Time `json:"ship_date,omitempty"`
}

// TotalWeight sums parcel weights. Units are the parcels' own; mixing units
// across parcels is the caller's problem, not silently reconciled here.
func (s *ShipmentDetails) TotalWeight() float64 {
	var total float64
	for _, p := range s.Parcels {
		total += p.Weight
	}
	return total
}

// TotalVolume sums parcel volumes.
func (s *ShipmentDetails) TotalVolume() float64 {
	var total float64
	for _, p := range s.Parcels {
		total += p.Volume()
	}
	return total
}

// TotalQuantity sums line item quantities.
func (s *ShipmentDetails) TotalQuantity() int {
	var total int
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// ItemCount returns the number of distinct line items.
func (s *ShipmentDetails) ItemCount() int {
	return len(s.Items)
}

// ProductTypes returns the distinct product types present in the shipment,
// in first-seen order.
func (s *ShipmentDetails) ProductTypes() []string {
	seen := make(map[string]bool)
	types := make([]string, 0)
	for _, item := range s.Items {
		if item.ProductType == "" || seen[item.ProductType] {
			continue
		}
		seen[item.ProductType] = true
		types = append(types, item.ProductType)
	}
	return types
}

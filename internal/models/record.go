package models

import "time"

// Record is one document read from the source collection.
// Fields holds the full document data exactly as the store returned it,
// including the timestamp field the record was selected on.
type Record struct {
	ID        string
	CreatedAt time.Time
	Fields    map[string]interface{}
}

// GeoPoint is a store-native latitude/longitude value.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Reference is a store-native pointer to another document, kept as its full path.
type Reference struct {
	Path string
}

// Vector is a store-native embedding vector. Single-precision vectors are
// widened to float64 without loss.
type Vector []float64

package model

import (
	"time"
)

// Property represents a catalog listing
type Property struct {
	ID         int64     `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Location   string    `json:"location_name" db:"location_name"`
	Price      float64   `json:"price" db:"price"`
	AreaSize   string    `json:"area_size" db:"area_size"`
	Type       string    `json:"type" db:"type"`
	CoverPhoto string    `json:"cover_photo" db:"cover_photo"`
	Bedrooms   *int      `json:"bedrooms" db:"bedrooms"`
	Baths      *int      `json:"baths" db:"baths"`
	CreatedAt  time.Time `json:"-" db:"created_at"`
}

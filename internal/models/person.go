package models

import "time"

// RememberedPerson is an enrolled reference image with its name.
type RememberedPerson struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	ImageBase64 string    `json:"imageBase64"`
	CreatedAt   time.Time `json:"createdAt"`
}

package domain

import "time"

type Product struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Images      []string  `json:"image"`
	Category    string    `json:"category"`
	Sizes       []string  `json:"sizes"`
	Bestseller  bool      `json:"bestseller"`
	CreatedAt   time.Time `json:"date"`
}

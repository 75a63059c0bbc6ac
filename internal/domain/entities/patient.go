package entities

import "time"

// Patient is the party record a booking refers to
type Patient struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Doctor is a consultation doctor that can be assigned to a booking
type Doctor struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

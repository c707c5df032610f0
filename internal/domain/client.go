package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/stillpoint/massage-bookings/internal/utils"
)

// Client is a person on the practice's books. Guests are created on the
// fly at commit time when no authenticated profile backs the booking.
type Client struct {
	ID                      int64     `json:"id"`
	FirstName               string    `json:"first_name"`
	LastName                string    `json:"last_name"`
	Email                   string    `json:"email"`
	Phone                   string    `json:"phone"`
	IsGuest                 bool      `json:"is_guest"`
	HasHadFreeConsultation  bool      `json:"has_had_free_consultation"`
	ConsultationCount       int       `json:"consultation_count"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ClientInfo is the contact block collected by the booking wizard,
// pre-filled from a profile when one exists.
type ClientInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (ci *ClientInfo) Normalize() {
	ci.FirstName = utils.NormalizeString(ci.FirstName)
	ci.LastName = utils.NormalizeString(ci.LastName)
	ci.Email = utils.NormalizeEmail(ci.Email)
	ci.Phone = utils.NormalizePhone(ci.Phone)
}

func (ci *ClientInfo) Validate() error {
	if ci.FirstName == "" || ci.LastName == "" {
		return fmt.Errorf("first and last name are required")
	}
	if !utils.IsValidEmail(ci.Email) {
		return fmt.Errorf("a valid email address is required")
	}
	if !utils.IsValidPhone(ci.Phone) {
		return fmt.Errorf("a valid phone number is required")
	}
	return nil
}

func (ci *ClientInfo) FullName() string {
	return strings.TrimSpace(ci.FirstName + " " + ci.LastName)
}

// GuestProfileInput creates a guest client record at commit time.
type GuestProfileInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

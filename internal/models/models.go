package models

import "time"

// Gender values accepted at sign-up
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Facility status values
const (
	FacilityActive   = "active"
	FacilityInactive = "inactive"
	FacilityOff      = "off"
)

// Reservation status values
const (
	ReservationAvailable = "available"
	ReservationWait      = "wait"
)

// Member represents a registered member of the community center
type Member struct {
	ID        string    `json:"member_id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	Birth     Date      `json:"birth"`
	Age       int       `json:"age"`
	PhoneNum  string    `json:"phone_num"`
	CreatedAt time.Time `json:"created_at"`
}

// Facility represents a bookable room
type Facility struct {
	ID   int64  `json:"facility_id"`
	Name string `json:"facility_name"`
}

// FacilityStatus is the reservation eligibility of a facility
type FacilityStatus struct {
	FacilityID   int64  `json:"facility_id"`
	FacilityName string `json:"facility_name,omitempty"`
	Status       string `json:"status"`
}

// Reservation represents one booking event against a facility
type Reservation struct {
	ID         int64     `json:"reservation_id"`
	FacilityID int64     `json:"facility_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// RosterEntry is a member listed on a reservation
type RosterEntry struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// FacilityReservation is a reservation with the names of its members
type FacilityReservation struct {
	ReservationID int64     `json:"reservation_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	Users         []string  `json:"users"`
}

// Board represents a bulletin board post
type Board struct {
	ID        int64     `json:"board_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

// IsValidFacilityStatus reports whether status is one of the known facility states
func IsValidFacilityStatus(status string) bool {
	switch status {
	case FacilityActive, FacilityInactive, FacilityOff:
		return true
	}
	return false
}

// AgeAt returns the full years elapsed between birth and now
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// DayOf returns the calendar date of t in loc, as midnight UTC
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package domain

import (
	"time"
)

// Experiment represents an experiment that participants sign up for
type Experiment struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	LeaderID int    `json:"leader_id" db:"leader_id"`
	Open     bool   `json:"open" db:"open"`
}

// Participant represents a participant domain entity
type Participant struct {
	ID           int          `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	Phone        string       `json:"phone" db:"phone"`
	BirthDate    CalendarDate `json:"birth_date" db:"-"`
	Language     string       `json:"language" db:"language"`
	Multilingual bool         `json:"multilingual" db:"multilingual"`
	Sex          Sex          `json:"sex" db:"sex"`
	Handedness   Handedness   `json:"handedness" db:"handedness"`
	Dyslexic     bool         `json:"dyslexic" db:"dyslexic"`
	SocialStatus SocialStatus `json:"social_status" db:"social_status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Appointment links a participant to a timeslot of an experiment
type Appointment struct {
	ID           int         `json:"id"`
	ExperimentID int         `json:"experiment_id"`
	Timeslot     time.Time   `json:"timeslot"`
	Participant  Participant `json:"participant"`
}

// Sex 参加者の性別
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexOther  Sex = "O"
)

// Handedness 利き手
type Handedness string

const (
	HandednessLeft  Handedness = "L"
	HandednessRight Handedness = "R"
)

// SocialStatus 学生かどうか
type SocialStatus string

const (
	SocialStatusStudent SocialStatus = "D"
	SocialStatusOther   SocialStatus = "O"
)

// IsValid validates if the sex code is valid
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	default:
		return false
	}
}

// IsValid validates if the handedness code is valid
func (h Handedness) IsValid() bool {
	switch h {
	case HandednessLeft, HandednessRight:
		return true
	default:
		return false
	}
}

// IsValid validates if the social status code is valid
func (s SocialStatus) IsValid() bool {
	switch s {
	case SocialStatusStudent, SocialStatusOther:
		return true
	default:
		return false
	}
}

// Leader represents an experiment leader who may manage participants
type Leader struct {
	ID           int    `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	IsActive     bool   `json:"is_active" db:"is_active"`
}

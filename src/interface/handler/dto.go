package handler

import (
	"time"

	"ppn-portal/src/domain"
	"ppn-portal/src/table"
	"ppn-portal/src/usecase"
)

// RegisterRequestDTO represents HTTP request for registering a participant
type RegisterRequestDTO struct {
	Name         string    `json:"name" form:"name" validate:"required,max=100,safe_text,no_sql_injection"`
	Email        string    `json:"email" form:"email" validate:"required,email,max=254"`
	Phone        string    `json:"phone" form:"phone" validate:"omitempty,phone"`
	BirthDate    string    `json:"birth_date" form:"birth_date" validate:"required,birthdate"`
	Language     string    `json:"language" form:"language" validate:"required,max=50,safe_text"`
	Multilingual bool      `json:"multilingual" form:"multilingual"`
	Sex          string    `json:"sex" form:"sex" validate:"required,oneof=M F O"`
	Handedness   string    `json:"handedness" form:"handedness" validate:"required,oneof=L R"`
	Dyslexic     bool      `json:"dyslexic" form:"dyslexic"`
	SocialStatus string    `json:"social_status" form:"social_status" validate:"required,oneof=D O"`
	ExperimentID int       `json:"experiment_id" form:"experiment_id" validate:"omitempty,min=1"`
	Timeslot     time.Time `json:"timeslot" form:"timeslot" time_format:"2006-01-02T15:04" validate:"required_with=ExperimentID"`
}

// TimeslotFormLayout is the value format of a datetime-local input
const TimeslotFormLayout = "2006-01-02T15:04"

// ToUsecase converts the DTO into a usecase request
func (r RegisterRequestDTO) ToUsecase() usecase.RegisterRequest {
	return usecase.RegisterRequest{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		BirthDate:    r.BirthDate,
		Language:     r.Language,
		Multilingual: r.Multilingual,
		Sex:          r.Sex,
		Handedness:   r.Handedness,
		Dyslexic:     r.Dyslexic,
		SocialStatus: r.SocialStatus,
		ExperimentID: r.ExperimentID,
		Timeslot:     r.Timeslot,
	}
}

// RegistrationResponseDTO represents HTTP response after a registration
type RegistrationResponseDTO struct {
	Participant domain.Participant  `json:"participant"`
	Appointment *domain.Appointment `json:"appointment,omitempty"`
}

// BirthDatePreviewDTO represents the JSON form of a birth date preview
type BirthDatePreviewDTO struct {
	Kind      string `json:"kind"`
	Value     string `json:"value"`
	Date      string `json:"date,omitempty"`
	Formatted string `json:"formatted,omitempty"`
	HTML      string `json:"html"`
}

// LoginRequestDTO represents HTTP request for a leader login
type LoginRequestDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// MessageResponseDTO represents a localized confirmation message
type MessageResponseDTO struct {
	Message string `json:"message"`
}

// ConfirmationRequiredDTO is returned when an action needs confirmed=yes
type ConfirmationRequiredDTO struct {
	Error  string `json:"error"`
	Prompt string `json:"prompt"`
}

// ParticipantTableDTO represents the server-side processing response
type ParticipantTableDTO struct {
	table.View
	Columns []string `json:"columns"`
}

// ErrorResponseDTO represents HTTP error response
type ErrorResponseDTO struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

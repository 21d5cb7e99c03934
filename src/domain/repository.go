package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrExperimentNotFound  = errors.New("experiment not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrLeaderNotFound      = errors.New("leader not found")
)

// ParticipantRepository defines the interface for participant data operations
type ParticipantRepository interface {
	GetExperiment(ctx context.Context, experimentID int) (*Experiment, error)
	ListAppointments(ctx context.Context, experimentID int) ([]Appointment, error)
	DeleteAppointment(ctx context.Context, experimentID, appointmentID int) error
	CreateParticipant(ctx context.Context, participant *Participant) (*Participant, error)
	CreateAppointment(ctx context.Context, experimentID, participantID int, timeslot time.Time) (*Appointment, error)
	// CreateParticipantWithAppointment stores a participant and their
	// appointment together; on failure neither is stored.
	CreateParticipantWithAppointment(ctx context.Context, participant *Participant, experimentID int, timeslot time.Time) (*Participant, *Appointment, error)
}

// LeaderRepository defines the interface for leader data operations
type LeaderRepository interface {
	GetByID(ctx context.Context, id int) (*Leader, error)
	GetByEmail(ctx context.Context, email string) (*Leader, error)
	Create(ctx context.Context, leader *Leader) (*Leader, error)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ppn-portal/src/database"
	"ppn-portal/src/domain"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// ParticipantRepository implements domain.ParticipantRepository on SQL
type ParticipantRepository struct {
	db     *database.DB
	logger *logrus.Logger
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *database.DB, logger *logrus.Logger) *ParticipantRepository {
	return &ParticipantRepository{
		db:     db,
		logger: logger,
	}
}

type participantRow struct {
	ID           int       `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	BirthDate    string    `db:"birth_date"`
	Language     string    `db:"language"`
	Multilingual bool      `db:"multilingual"`
	Sex          string    `db:"sex"`
	Handedness   string    `db:"handedness"`
	Dyslexic     bool      `db:"dyslexic"`
	SocialStatus string    `db:"social_status"`
	CreatedAt    time.Time `db:"created_at"`
}

type appointmentRow struct {
	AppointmentID int       `db:"appointment_id"`
	ExperimentID  int       `db:"experiment_id"`
	Timeslot      time.Time `db:"timeslot"`
	participantRow
}

func (r participantRow) toDomain() (domain.Participant, error) {
	var birth domain.CalendarDate
	if err := birth.UnmarshalText([]byte(r.BirthDate)); err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		BirthDate:    birth,
		Language:     r.Language,
		Multilingual: r.Multilingual,
		Sex:          domain.Sex(r.Sex),
		Handedness:   domain.Handedness(r.Handedness),
		Dyslexic:     r.Dyslexic,
		SocialStatus: domain.SocialStatus(r.SocialStatus),
		CreatedAt:    r.CreatedAt,
	}, nil
}

// GetExperiment retrieves an experiment by ID
func (r *ParticipantRepository) GetExperiment(ctx context.Context, experimentID int) (*domain.Experiment, error) {
	var exp domain.Experiment
	query := r.db.Rebind(`SELECT id, name, leader_id, open FROM experiments WHERE id = ?`)

	if err := r.db.GetContext(ctx, &exp, query, experimentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExperimentNotFound
		}
		r.logger.WithError(err).WithField("experiment_id", experimentID).Error("実験の取得に失敗")
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return &exp, nil
}

// CreateExperiment stores a new experiment
func (r *ParticipantRepository) CreateExperiment(ctx context.Context, exp *domain.Experiment) (*domain.Experiment, error) {
	query := r.db.Rebind(`INSERT INTO experiments (name, leader_id, open) VALUES (?, ?, ?) RETURNING id`)

	created := *exp
	if err := r.db.QueryRowxContext(ctx, query, exp.Name, exp.LeaderID, exp.Open).Scan(&created.ID); err != nil {
		r.logger.WithError(err).Error("実験の作成に失敗")
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}
	return &created, nil
}

// ListAppointments lists the appointments of an experiment with their participants
func (r *ParticipantRepository) ListAppointments(ctx context.Context, experimentID int) ([]domain.Appointment, error) {
	query := r.db.Rebind(`
		SELECT a.id AS appointment_id, a.experiment_id, a.timeslot,
		       p.id, p.name, p.email, p.phone, p.birth_date, p.language, p.multilingual,
		       p.sex, p.handedness, p.dyslexic, p.social_status, p.created_at
		FROM appointments a
		JOIN participants p ON p.id = a.participant_id
		WHERE a.experiment_id = ?
		ORDER BY a.timeslot, p.name`)

	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, experimentID); err != nil {
		r.logger.WithError(err).WithField("experiment_id", experimentID).Error("予約一覧の取得に失敗")
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	appointments := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		p, err := row.participantRow.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to read participant %d: %w", row.ID, err)
		}
		appointments = append(appointments, domain.Appointment{
			ID:           row.AppointmentID,
			ExperimentID: row.ExperimentID,
			Timeslot:     row.Timeslot,
			Participant:  p,
		})
	}
	return appointments, nil
}

// DeleteAppointment unsubscribes a participant from an experiment
func (r *ParticipantRepository) DeleteAppointment(ctx context.Context, experimentID, appointmentID int) error {
	query := r.db.Rebind(`DELETE FROM appointments WHERE id = ? AND experiment_id = ?`)

	res, err := r.db.ExecContext(ctx, query, appointmentID, experimentID)
	if err != nil {
		r.logger.WithError(err).Error("予約の削除に失敗")
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if n == 0 {
		return domain.ErrAppointmentNotFound
	}

	r.logger.WithFields(logrus.Fields{
		"experiment_id":  experimentID,
		"appointment_id": appointmentID,
	}).Info("予約を削除しました")
	return nil
}

// CreateParticipant stores a new participant
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	created, err := r.insertParticipant(ctx, r.db, p)
	if err != nil {
		return nil, err
	}
	r.logger.WithField("participant_id", created.ID).Info("参加者を作成しました")
	return created, nil
}

// CreateAppointment signs a participant up for a timeslot
func (r *ParticipantRepository) CreateAppointment(ctx context.Context, experimentID, participantID int, timeslot time.Time) (*domain.Appointment, error) {
	return r.insertAppointment(ctx, r.db, experimentID, participantID, timeslot)
}

// CreateParticipantWithAppointment stores a participant and signs them up
// in one transaction
func (r *ParticipantRepository) CreateParticipantWithAppointment(ctx context.Context, p *domain.Participant, experimentID int, timeslot time.Time) (*domain.Participant, *domain.Appointment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := r.insertParticipant(ctx, tx, p)
	if err != nil {
		return nil, nil, err
	}
	appointment, err := r.insertAppointment(ctx, tx, experimentID, created.ID, timeslot)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		r.logger.WithError(err).Error("参加登録のコミットに失敗")
		return nil, nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	appointment.Participant = *created
	r.logger.WithFields(logrus.Fields{
		"participant_id": created.ID,
		"appointment_id": appointment.ID,
	}).Info("参加者を作成して予約しました")
	return created, appointment, nil
}

func (r *ParticipantRepository) insertParticipant(ctx context.Context, q sqlx.QueryerContext, p *domain.Participant) (*domain.Participant, error) {
	query := r.db.Rebind(`
		INSERT INTO participants (name, email, phone, birth_date, language, multilingual, sex, handedness, dyslexic, social_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	created := *p
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	err := q.QueryRowxContext(ctx, query,
		p.Name, p.Email, p.Phone, p.BirthDate.String(), p.Language, p.Multilingual,
		string(p.Sex), string(p.Handedness), p.Dyslexic, string(p.SocialStatus), created.CreatedAt,
	).Scan(&created.ID)
	if err != nil {
		r.logger.WithError(err).Error("参加者の作成に失敗")
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &created, nil
}

func (r *ParticipantRepository) insertAppointment(ctx context.Context, q sqlx.QueryerContext, experimentID, participantID int, timeslot time.Time) (*domain.Appointment, error) {
	var exists int
	check := r.db.Rebind(`SELECT COUNT(*) FROM experiments WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &exists, check, experimentID); err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrExperimentNotFound
	}

	query := r.db.Rebind(`INSERT INTO appointments (experiment_id, participant_id, timeslot) VALUES (?, ?, ?) RETURNING id`)

	var id int
	if err := q.QueryRowxContext(ctx, query, experimentID, participantID, timeslot.UTC()).Scan(&id); err != nil {
		r.logger.WithError(err).Error("予約の作成に失敗")
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	return &domain.Appointment{
		ID:           id,
		ExperimentID: experimentID,
		Timeslot:     timeslot.UTC(),
		Participant:  domain.Participant{ID: participantID},
	}, nil
}

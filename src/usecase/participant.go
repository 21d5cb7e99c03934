package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"ppn-portal/src/birthdate"
	"ppn-portal/src/domain"
	"ppn-portal/src/i18n"
	"ppn-portal/src/mask"
	"ppn-portal/src/security"
	"ppn-portal/src/table"

	"github.com/sirupsen/logrus"
)

var (
	ErrExperimentNotFound  = domain.ErrExperimentNotFound
	ErrAppointmentNotFound = domain.ErrAppointmentNotFound
	ErrExperimentClosed    = errors.New("experiment is closed for registration")
	ErrNotConfirmed        = errors.New("action was not confirmed")
	ErrInvalidQuery        = errors.New("invalid table query")
	ErrBirthDateRequired   = errors.New("birth date is required")
	ErrBirthDateInvalid    = errors.New("birth date is invalid")
	ErrBirthDateTooEarly   = errors.New("birth date is before the minimum date")
	ErrInvalidSex          = errors.New("sex must be M, F or O")
	ErrInvalidHandedness   = errors.New("handedness must be L or R")
	ErrInvalidSocialStatus = errors.New("social status must be D or O")
)

// 参加者テーブルの列キー（表示順）
var columnKeys = []string{
	"participants:column:date",
	"participants:column:time",
	"participants:column:name",
	"participants:column:email",
	"participants:column:phone",
	"participants:column:birth_date",
	"participants:column:language",
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Archiver keeps a copy of every downloaded export
type Archiver interface {
	ArchiveExport(ctx context.Context, experimentID int, data []byte) (string, error)
}

// ParticipantRow is one table row with the appointment it belongs to
type ParticipantRow struct {
	AppointmentID int
	Cells         []string
}

// FilterState is the footer filter input of one column after the query
type FilterState struct {
	Placeholder string
	Value       string
	Class       string
}

// ParticipantPage is the participant table of one experiment
type ParticipantPage struct {
	Experiment *domain.Experiment
	Columns    []string
	Filters    []FilterState
	View       table.View
	// Rows の並びは View.Rows と同じ
	Rows []ParticipantRow
}

// RegisterRequest represents input for registering a participant
type RegisterRequest struct {
	Name         string
	Email        string
	Phone        string
	BirthDate    string
	Language     string
	Multilingual bool
	Sex          string
	Handedness   string
	Dyslexic     bool
	SocialStatus string
	ExperimentID int
	Timeslot     time.Time
}

// Registration is the result of a successful registration
type Registration struct {
	Participant *domain.Participant
	Appointment *domain.Appointment
}

// BirthDatePreview is the masked birth-date field after focus left it
type BirthDatePreview struct {
	Value    string
	Result   birthdate.Result
	Fragment *birthdate.Fragment
}

// ParticipantUsecase defines the interface for participant business logic
type ParticipantUsecase interface {
	ListParticipants(ctx context.Context, experimentID int, q table.Query, lang string) (*ParticipantPage, error)
	RemoveParticipant(ctx context.Context, experimentID, appointmentID int, c table.Confirmer, lang string) error
	ExportCSV(ctx context.Context, experimentID int, w io.Writer, c table.Confirmer, lang string) error
	RegisterParticipant(ctx context.Context, req RegisterRequest, lang string) (*Registration, error)
	PreviewBirthDate(raw, lang string) BirthDatePreview
}

// Options tunes the participant usecase
type Options struct {
	MinBirthDate domain.CalendarDate
	Archiver     Archiver
	Logger       *logrus.Logger
}

type participantUsecase struct {
	repo     domain.ParticipantRepository
	catalog  *i18n.Catalog
	guard    *security.QueryGuard
	archiver Archiver
	minDate  domain.CalendarDate
	logger   *logrus.Logger
}

// NewParticipantUsecase creates a new participant usecase
func NewParticipantUsecase(repo domain.ParticipantRepository, catalog *i18n.Catalog, opts Options) ParticipantUsecase {
	minDate := opts.MinBirthDate
	if minDate.IsZero() {
		minDate = birthdate.DefaultMinDate
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &participantUsecase{
		repo:     repo,
		catalog:  catalog,
		guard:    security.NewQueryGuard(),
		archiver: opts.Archiver,
		minDate:  minDate,
		logger:   logger,
	}
}

// ListParticipants builds the participant table of an experiment and applies q
func (u *participantUsecase) ListParticipants(ctx context.Context, experimentID int, q table.Query, lang string) (*ParticipantPage, error) {
	if err := u.guard.ValidateQuery(q, len(columnKeys)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	exp, appointments, err := u.load(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	columns := u.columns(lang)
	rows := make([][]string, len(appointments))
	ids := make([]string, len(appointments))
	for i, a := range appointments {
		rows[i] = participantCells(a)
		ids[i] = strconv.Itoa(a.ID)
	}

	dt := table.New(columns, rows, table.DefaultConfig()).WithRowIDs(ids)

	// 列検索はフッターの入力欄を通して適用する
	loc := u.catalog.Localizer(lang)
	inputs := make([]table.FilterInput, len(columns))
	for i, title := range columns {
		inputs[i] = table.NewTextInput(loc.Format("participants:filter", title))
	}
	fc := table.NewFilterController(dt, inputs)
	for index, text := range q.ColumnSearch {
		input := inputs[index]
		fc.OnFocus(input)
		input.SetValue(text)
		fc.OnFilterInput(input)
		fc.OnBlur(input)
	}

	rest := q
	rest.ColumnSearch = nil
	if err := rest.Apply(dt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	dt.Draw()

	view := dt.View()
	view.Draw = q.Draw

	page := &ParticipantPage{
		Experiment: exp,
		Columns:    columns,
		Filters:    make([]FilterState, len(inputs)),
		View:       view,
		Rows:       make([]ParticipantRow, len(view.Rows)),
	}
	for i, input := range inputs {
		page.Filters[i] = FilterState{Placeholder: fc.Placeholder(i), Value: input.Value(), Class: input.Class()}
	}
	for i, row := range view.Rows {
		id, _ := strconv.Atoi(view.RowIDs[i])
		page.Rows[i] = ParticipantRow{AppointmentID: id, Cells: row}
	}

	return page, nil
}

// RemoveParticipant unsubscribes a participant once the leader confirmed it
func (u *participantUsecase) RemoveParticipant(ctx context.Context, experimentID, appointmentID int, c table.Confirmer, lang string) error {
	actions := table.NewActions(u.catalog.Localizer(lang).Lookup)
	if !actions.ConfirmRemoveParticipant(c) {
		return ErrNotConfirmed
	}

	if err := u.repo.DeleteAppointment(ctx, experimentID, appointmentID); err != nil {
		return err
	}

	u.logger.WithFields(logrus.Fields{
		"experiment_id":  experimentID,
		"appointment_id": appointmentID,
	}).Info("参加者の登録を解除しました")
	return nil
}

// ExportCSV writes the participants of an experiment as CSV once the leader
// confirmed the download. A copy is archived when an Archiver is configured.
func (u *participantUsecase) ExportCSV(ctx context.Context, experimentID int, w io.Writer, c table.Confirmer, lang string) error {
	actions := table.NewActions(u.catalog.Localizer(lang).Lookup)
	if !actions.ConfirmDownload(c) {
		return ErrNotConfirmed
	}

	_, appointments, err := u.load(ctx, experimentID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(u.columns(lang)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	for _, a := range appointments {
		if err := cw.Write(participantCells(a)); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	fields := logrus.Fields{
		"experiment_id": experimentID,
		"participants":  len(appointments),
	}
	if u.archiver != nil {
		key, err := u.archiver.ArchiveExport(ctx, experimentID, buf.Bytes())
		if err != nil {
			// ダウンロード自体は成功しているので失敗はログのみ
			u.logger.WithError(err).WithFields(fields).Error("エクスポートの保存に失敗")
		} else {
			fields["archive_key"] = key
		}
	}
	u.logger.WithFields(fields).Info("参加者CSVをエクスポートしました")
	return nil
}

// RegisterParticipant validates and stores a participant, signing them up
// for a timeslot when the request names an experiment.
func (u *participantUsecase) RegisterParticipant(ctx context.Context, req RegisterRequest, lang string) (*Registration, error) {
	result := u.evaluator(lang).Evaluate(req.BirthDate)
	switch result.Kind {
	case birthdate.Empty:
		return nil, ErrBirthDateRequired
	case birthdate.Invalid:
		return nil, ErrBirthDateInvalid
	case birthdate.TooEarly:
		return nil, ErrBirthDateTooEarly
	}

	participant := &domain.Participant{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		BirthDate:    result.Date,
		Language:     req.Language,
		Multilingual: req.Multilingual,
		Sex:          domain.Sex(req.Sex),
		Handedness:   domain.Handedness(req.Handedness),
		Dyslexic:     req.Dyslexic,
		SocialStatus: domain.SocialStatus(req.SocialStatus),
		CreatedAt:    time.Now().UTC(),
	}
	if !participant.Sex.IsValid() {
		return nil, ErrInvalidSex
	}
	if !participant.Handedness.IsValid() {
		return nil, ErrInvalidHandedness
	}
	if !participant.SocialStatus.IsValid() {
		return nil, ErrInvalidSocialStatus
	}

	if req.ExperimentID != 0 {
		exp, err := u.repo.GetExperiment(ctx, req.ExperimentID)
		if err != nil {
			return nil, err
		}
		if !exp.Open {
			return nil, ErrExperimentClosed
		}
	}

	reg := &Registration{}
	var err error
	if req.ExperimentID != 0 {
		reg.Participant, reg.Appointment, err = u.repo.CreateParticipantWithAppointment(ctx, participant, req.ExperimentID, req.Timeslot)
	} else {
		reg.Participant, err = u.repo.CreateParticipant(ctx, participant)
	}
	if err != nil {
		return nil, err
	}

	u.logger.WithFields(logrus.Fields{
		"participant_id": reg.Participant.ID,
		"experiment_id":  req.ExperimentID,
	}).Info("参加者を登録しました")
	return reg, nil
}

// PreviewBirthDate types raw into a masked birth-date field, leaves the
// field and returns its value and formatted_birthday_value display
func (u *participantUsecase) PreviewBirthDate(raw, lang string) BirthDatePreview {
	field := mask.NewField("")
	binding := birthdate.Attach(field, u.birthDateConfig(lang))
	field.Focus()
	field.Type(raw)
	field.Blur()

	return BirthDatePreview{
		Value:    field.Value(),
		Result:   binding.Last(),
		Fragment: field.Display(),
	}
}

func (u *participantUsecase) birthDateConfig(lang string) birthdate.Config {
	return birthdate.Config{
		Evaluator: u.evaluator(lang),
		Lookup:    u.catalog.Localizer(lang).Lookup,
	}
}

func (u *participantUsecase) evaluator(lang string) birthdate.Evaluator {
	e := u.catalog.Localizer(lang).Evaluator()
	e.MinDate = u.minDate
	return e
}

func (u *participantUsecase) columns(lang string) []string {
	loc := u.catalog.Localizer(lang)
	columns := make([]string, len(columnKeys))
	for i, key := range columnKeys {
		columns[i] = loc.Lookup(key)
	}
	return columns
}

func (u *participantUsecase) load(ctx context.Context, experimentID int) (*domain.Experiment, []domain.Appointment, error) {
	exp, err := u.repo.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, nil, err
	}
	appointments, err := u.repo.ListAppointments(ctx, experimentID)
	if err != nil {
		return nil, nil, err
	}
	return exp, appointments, nil
}

func participantCells(a domain.Appointment) []string {
	p := a.Participant
	return []string{
		a.Timeslot.Format(dateLayout),
		a.Timeslot.Format(timeLayout),
		p.Name,
		p.Email,
		p.Phone,
		p.BirthDate.String(),
		p.Language,
	}
}

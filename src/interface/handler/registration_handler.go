package handler

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"ppn-portal/src/birthdate"
	"ppn-portal/src/i18n"
	"ppn-portal/src/middleware"
	"ppn-portal/src/usecase"
	"ppn-portal/src/validator"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RegistrationHandler handles participant sign-up
type RegistrationHandler struct {
	participantUsecase usecase.ParticipantUsecase
	validator          *validator.CustomValidator
	catalog            *i18n.Catalog
	logger             *logrus.Logger
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(participantUsecase usecase.ParticipantUsecase, v *validator.CustomValidator, catalog *i18n.Catalog, logger *logrus.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		participantUsecase: participantUsecase,
		validator:          v,
		catalog:            catalog,
		logger:             logger,
	}
}

type registerLabels struct {
	Name         string
	Email        string
	Phone        string
	BirthDate    string
	Language     string
	Sex          string
	Handedness   string
	SocialStatus string
	Timeslot     string
	Submit       string
}

type registerPageData struct {
	Lang         string
	Title        string
	ExperimentID int
	Timeslot     string
	TimeslotMin  string
	BirthDate    string
	Placeholder  string
	MaskPattern  string
	Display      template.HTML
	Labels       registerLabels
}

// ShowForm renders the sign-up form. A birth_date query pre-fills the
// masked field and its formatted display.
func (h *RegistrationHandler) ShowForm(c *gin.Context) {
	lang := middleware.Language(c)
	loc := h.catalog.Localizer(lang)

	preview := h.participantUsecase.PreviewBirthDate(c.Query("birth_date"), lang)

	experimentID, _ := strconv.Atoi(c.Query("experiment"))
	data := registerPageData{
		Lang:         lang,
		Title:        loc.Lookup("register:title"),
		ExperimentID: experimentID,
		BirthDate:    preview.Value,
		Placeholder:  birthdate.Placeholder,
		MaskPattern:  birthdate.MaskPattern,
		Display:      preview.Fragment.HTML(),
		Labels: registerLabels{
			Name:         loc.Lookup("participants:column:name"),
			Email:        loc.Lookup("participants:column:email"),
			Phone:        loc.Lookup("participants:column:phone"),
			BirthDate:    loc.Lookup("participants:column:birth_date"),
			Language:     loc.Lookup("participants:column:language"),
			Sex:          loc.Lookup("register:field:sex"),
			Handedness:   loc.Lookup("register:field:handedness"),
			SocialStatus: loc.Lookup("register:field:social_status"),
			Timeslot:     loc.Lookup("register:field:timeslot"),
			Submit:       loc.Lookup("register:submit"),
		},
	}

	if experimentID > 0 {
		if slot, err := time.Parse(TimeslotFormLayout, c.Query("timeslot")); err == nil {
			data.Timeslot = slot.Format(TimeslotFormLayout)
		}
		data.TimeslotMin = time.Now().Format(TimeslotFormLayout)
	}

	renderHTML(c, h.logger, http.StatusOK, "register.tmpl", data)
}

// PreviewBirthDate returns the formatted_birthday_value fragment for the
// typed birth date. JSON is returned when the client asks for it.
func (h *RegistrationHandler) PreviewBirthDate(c *gin.Context) {
	preview := h.participantUsecase.PreviewBirthDate(c.Query("birth_date"), middleware.Language(c))

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		dto := BirthDatePreviewDTO{
			Kind:      preview.Result.Kind.String(),
			Value:     preview.Value,
			Formatted: preview.Result.Display,
			HTML:      string(preview.Fragment.HTML()),
		}
		if preview.Result.Kind == birthdate.Valid {
			dto.Date = preview.Result.Date.String()
		}
		c.JSON(http.StatusOK, dto)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(preview.Fragment.HTML()))
}

// Register signs up a participant
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequestDTO
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("リクエストのバインドに失敗")
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	lang := middleware.Language(c)
	if err := h.validator.Validate(req, lang); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, verrs)
			return
		}
		h.logger.WithError(err).Error("バリデーションに失敗")
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{Error: "Invalid request", Message: err.Error()})
		return
	}

	reg, err := h.participantUsecase.RegisterParticipant(c.Request.Context(), req.ToUsecase(), lang)
	if err != nil {
		h.respondError(c, err, req.ExperimentID, lang)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponseDTO{
		Participant: *reg.Participant,
		Appointment: reg.Appointment,
	})
}

func (h *RegistrationHandler) respondError(c *gin.Context, err error, experimentID int, lang string) {
	loc := h.catalog.Localizer(lang)
	entry := h.logger.WithError(err).WithField("experiment_id", experimentID)

	fieldError := func(field, tag, message string) {
		c.JSON(http.StatusUnprocessableEntity, validator.ValidationErrors{
			Errors: []validator.ValidationError{{Field: field, Tag: tag, Message: message}},
		})
	}

	switch {
	case errors.Is(err, usecase.ErrBirthDateRequired):
		fieldError("birth_date", "required", loc.Lookup("birthdate:error:required"))
	case errors.Is(err, usecase.ErrBirthDateInvalid):
		fieldError("birth_date", "birthdate", loc.Lookup(birthdate.KeyInvalid))
	case errors.Is(err, usecase.ErrBirthDateTooEarly):
		fieldError("birth_date", "birthdate", loc.Lookup(birthdate.KeyTooEarly))
	case errors.Is(err, usecase.ErrInvalidSex):
		fieldError("sex", "oneof", err.Error())
	case errors.Is(err, usecase.ErrInvalidHandedness):
		fieldError("handedness", "oneof", err.Error())
	case errors.Is(err, usecase.ErrInvalidSocialStatus):
		fieldError("social_status", "oneof", err.Error())
	case errors.Is(err, usecase.ErrExperimentNotFound):
		entry.Warn("参加登録に失敗")
		c.JSON(http.StatusNotFound, ErrorResponseDTO{Error: "Experiment not found", Message: loc.Lookup("experiment:error:not_found")})
	case errors.Is(err, usecase.ErrExperimentClosed):
		entry.Warn("参加登録に失敗")
		c.JSON(http.StatusConflict, ErrorResponseDTO{Error: "Experiment closed", Message: loc.Lookup("experiment:error:closed")})
	default:
		entry.Error("参加登録に失敗")
		c.JSON(http.StatusInternalServerError, ErrorResponseDTO{Error: "Failed to register participant"})
	}
}

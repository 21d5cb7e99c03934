package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"ppn-portal/src/i18n"
	"ppn-portal/src/middleware"
	"ppn-portal/src/table"
	"ppn-portal/src/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ConfirmParam は確認ダイアログで「はい」を選んだことを示すクエリ
const ConfirmParam = "confirmed"

// ParticipantHandler handles the participant table of an experiment
type ParticipantHandler struct {
	participantUsecase usecase.ParticipantUsecase
	catalog            *i18n.Catalog
	logger             *logrus.Logger
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(participantUsecase usecase.ParticipantUsecase, catalog *i18n.Catalog, logger *logrus.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		participantUsecase: participantUsecase,
		catalog:            catalog,
		logger:             logger,
	}
}

// RequestConfirmer answers confirmation prompts from the confirmed query
// parameter. The page script adds it once the leader accepted the browser
// dialog; without script the confirmation page adds it.
func RequestConfirmer(c *gin.Context) table.Confirmer {
	return table.ConfirmFunc(func(string) bool {
		return c.Query(ConfirmParam) == "yes"
	})
}

type participantPageData struct {
	Lang            string
	Title           string
	Message         string
	Columns         []string
	Filters         []usecase.FilterState
	Rows            []usecase.ParticipantRow
	Buttons         []table.PageButton
	PagingType      string
	Info            string
	ConfigJSON      string
	DataURL         string
	DownloadURL     string
	AppointmentsURL string
	DownloadLabel   string
	DownloadPrompt  string
	RemoveLabel     string
	RemovePrompt    string
}

// ShowParticipants renders the participant table page
func (h *ParticipantHandler) ShowParticipants(c *gin.Context) {
	experimentID, ok := h.experimentID(c)
	if !ok {
		return
	}

	q, err := table.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{Error: "Invalid query parameters", Message: err.Error()})
		return
	}

	lang := middleware.Language(c)
	page, err := h.participantUsecase.ListParticipants(c.Request.Context(), experimentID, q, lang)
	if err != nil {
		h.respondError(c, err, experimentID, "参加者一覧の取得に失敗")
		return
	}

	loc := h.catalog.Localizer(lang)
	actions := table.NewActions(loc.Lookup)
	cfg, err := json.Marshal(table.DefaultConfig())
	if err != nil {
		h.logger.WithError(err).Error("テーブル設定のエンコードに失敗")
		c.JSON(http.StatusInternalServerError, ErrorResponseDTO{Error: "Failed to render page"})
		return
	}

	base := fmt.Sprintf("/leader/experiments/%d", experimentID)
	data := participantPageData{
		Lang:            lang,
		Title:           loc.Format("participants:title", page.Experiment.Name),
		Columns:         page.Columns,
		Filters:         page.Filters,
		Rows:            page.Rows,
		Buttons:         page.View.Buttons,
		PagingType:      table.DefaultConfig().PagingType,
		Info:            fmt.Sprintf("%d / %d", page.View.RecordsFiltered, page.View.RecordsTotal),
		ConfigJSON:      string(cfg),
		DataURL:         base + "/participants/data",
		DownloadURL:     base + "/participants/download",
		AppointmentsURL: base + "/appointments",
		DownloadLabel:   loc.Lookup("participants:download"),
		DownloadPrompt:  actions.DownloadPrompt(),
		RemoveLabel:     loc.Lookup("participants:remove"),
		RemovePrompt:    actions.RemoveParticipantPrompt(),
	}
	if c.Query("message") == "unsubscribed" {
		data.Message = loc.Lookup("timeslots:message:unsubscribed_participant")
	}

	renderHTML(c, h.logger, http.StatusOK, "participants.tmpl", data)
}

// ParticipantData answers server-side processing requests of the table
func (h *ParticipantHandler) ParticipantData(c *gin.Context) {
	experimentID, ok := h.experimentID(c)
	if !ok {
		return
	}

	q, err := table.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{Error: "Invalid query parameters", Message: err.Error()})
		return
	}

	page, err := h.participantUsecase.ListParticipants(c.Request.Context(), experimentID, q, middleware.Language(c))
	if err != nil {
		h.respondError(c, err, experimentID, "参加者データの取得に失敗")
		return
	}

	c.JSON(http.StatusOK, ParticipantTableDTO{View: page.View, Columns: page.Columns})
}

// RemoveParticipant unsubscribes the participant of an appointment
func (h *ParticipantHandler) RemoveParticipant(c *gin.Context) {
	experimentID, ok := h.experimentID(c)
	if !ok {
		return
	}
	appointmentID, err := strconv.Atoi(c.Param("appointment"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{
			Error:   "Invalid appointment ID",
			Message: "Appointment ID must be a number",
		})
		return
	}

	lang := middleware.Language(c)
	err = h.participantUsecase.RemoveParticipant(c.Request.Context(), experimentID, appointmentID, RequestConfirmer(c), lang)
	if err != nil {
		h.respondError(c, err, experimentID, "参加者の登録解除に失敗")
		return
	}

	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		c.Redirect(http.StatusSeeOther, fmt.Sprintf("/leader/experiments/%d/participants?message=unsubscribed", experimentID))
		return
	}
	c.JSON(http.StatusOK, MessageResponseDTO{
		Message: h.catalog.Localizer(lang).Lookup("timeslots:message:unsubscribed_participant"),
	})
}

// DownloadCSV sends the participants of an experiment as a CSV file
func (h *ParticipantHandler) DownloadCSV(c *gin.Context) {
	experimentID, ok := h.experimentID(c)
	if !ok {
		return
	}

	// 途中で失敗したときにヘッダーを送らないようにバッファへ書く
	var buf bytes.Buffer
	err := h.participantUsecase.ExportCSV(c.Request.Context(), experimentID, &buf, RequestConfirmer(c), middleware.Language(c))
	if err != nil {
		h.respondError(c, err, experimentID, "CSVエクスポートに失敗")
		return
	}

	filename := fmt.Sprintf("participants-%d-%s.csv", experimentID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type hiddenField struct {
	Name  string
	Value string
}

type confirmPageData struct {
	Lang     string
	Title    string
	Prompt   string
	Method   string
	Action   string
	Hidden   []hiddenField
	YesLabel string
	NoLabel  string
	BackURL  string
}

// renderConfirmation asks a browser to confirm the request. Accepting
// repeats it with confirmed=yes, declining goes back to the table.
func (h *ParticipantHandler) renderConfirmation(c *gin.Context, experimentID int, prompt string) {
	lang := middleware.Language(c)
	loc := h.catalog.Localizer(lang)

	query := c.Request.URL.Query()
	query.Set(ConfirmParam, "yes")

	back := url.Values{"lang": {lang}}
	data := confirmPageData{
		Lang:     lang,
		Title:    loc.Lookup("confirm:title"),
		Prompt:   prompt,
		Method:   c.Request.Method,
		Action:   c.Request.URL.Path,
		YesLabel: loc.Lookup("confirm:yes"),
		NoLabel:  loc.Lookup("confirm:no"),
		BackURL:  fmt.Sprintf("/leader/experiments/%d/participants?%s", experimentID, back.Encode()),
	}
	if c.Request.Method == http.MethodGet {
		// GET フォームは action のクエリを捨てるので入力欄で渡す
		for _, key := range slices.Sorted(maps.Keys(query)) {
			for _, v := range query[key] {
				data.Hidden = append(data.Hidden, hiddenField{Name: key, Value: v})
			}
		}
	} else {
		data.Action += "?" + query.Encode()
	}

	renderHTML(c, h.logger, http.StatusConflict, "confirm.tmpl", data)
}

func (h *ParticipantHandler) experimentID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("experiment"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{
			Error:   "Invalid experiment ID",
			Message: "Experiment ID must be a positive number",
		})
		return 0, false
	}
	return id, true
}

func (h *ParticipantHandler) respondError(c *gin.Context, err error, experimentID int, msg string) {
	lang := middleware.Language(c)
	actions := table.NewActions(h.catalog.Localizer(lang).Lookup)

	entry := h.logger.WithError(err).WithField("experiment_id", experimentID)

	switch {
	case errors.Is(err, usecase.ErrNotConfirmed):
		prompt := actions.DownloadPrompt()
		if c.Param("appointment") != "" {
			prompt = actions.RemoveParticipantPrompt()
		}
		entry.Info("確認が必要です")
		if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
			h.renderConfirmation(c, experimentID, prompt)
			return
		}
		c.JSON(http.StatusConflict, ConfirmationRequiredDTO{Error: "Confirmation required", Prompt: prompt})
	case errors.Is(err, usecase.ErrExperimentNotFound):
		entry.Warn(msg)
		c.JSON(http.StatusNotFound, ErrorResponseDTO{Error: "Experiment not found"})
	case errors.Is(err, usecase.ErrAppointmentNotFound):
		entry.Warn(msg)
		c.JSON(http.StatusNotFound, ErrorResponseDTO{Error: "Appointment not found"})
	case errors.Is(err, usecase.ErrInvalidQuery):
		entry.Warn(msg)
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{Error: "Invalid table query", Message: err.Error()})
	default:
		entry.Error(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponseDTO{Error: "Internal server error"})
	}
}

package handler_test

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"ppn-portal/src/birthdate"
	"ppn-portal/src/domain"
	"ppn-portal/src/i18n"
	"ppn-portal/src/interface/handler"
	"ppn-portal/src/middleware"
	"ppn-portal/src/service"
	"ppn-portal/src/table"
	"ppn-portal/src/usecase"
	"ppn-portal/src/validator"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockParticipantUsecase は usecase.ParticipantUsecase のモック実装
type MockParticipantUsecase struct {
	mock.Mock
}

func (m *MockParticipantUsecase) ListParticipants(ctx context.Context, experimentID int, q table.Query, lang string) (*usecase.ParticipantPage, error) {
	args := m.Called(ctx, experimentID, q, lang)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ParticipantPage), args.Error(1)
}

func (m *MockParticipantUsecase) RemoveParticipant(ctx context.Context, experimentID, appointmentID int, c table.Confirmer, lang string) error {
	args := m.Called(ctx, experimentID, appointmentID, c, lang)
	return args.Error(0)
}

func (m *MockParticipantUsecase) ExportCSV(ctx context.Context, experimentID int, w io.Writer, c table.Confirmer, lang string) error {
	args := m.Called(ctx, experimentID, w, c, lang)
	return args.Error(0)
}

func (m *MockParticipantUsecase) RegisterParticipant(ctx context.Context, req usecase.RegisterRequest, lang string) (*usecase.Registration, error) {
	args := m.Called(ctx, req, lang)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Registration), args.Error(1)
}

func (m *MockParticipantUsecase) PreviewBirthDate(raw, lang string) usecase.BirthDatePreview {
	args := m.Called(raw, lang)
	return args.Get(0).(usecase.BirthDatePreview)
}

// MockAuthService は service.AuthService のモック実装
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResponse), args.Error(1)
}

func (m *MockAuthService) Authenticate(ctx context.Context, token string) (*domain.Leader, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Leader), args.Error(1)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	catalog, err := i18n.NewCatalog()
	require.NoError(t, err)
	return catalog
}

func perform(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// attr は prefix の直後から次の引用符までの属性値を返す
func attr(t *testing.T, body, prefix string) string {
	t.Helper()
	i := strings.Index(body, prefix)
	require.NotEqual(t, -1, i, "%s not found", prefix)
	rest := body[i+len(prefix):]
	return html.UnescapeString(rest[:strings.Index(rest, `"`)])
}

func setupParticipantRouter(t *testing.T, uc usecase.ParticipantUsecase) *gin.Engine {
	t.Helper()
	catalog := newCatalog(t)
	h := handler.NewParticipantHandler(uc, catalog, quietLogger())

	r := gin.New()
	r.Use(middleware.LanguageMiddleware(catalog))
	exp := r.Group("/leader/experiments/:experiment")
	exp.GET("/participants", h.ShowParticipants)
	exp.GET("/participants/data", h.ParticipantData)
	exp.GET("/participants/download", h.DownloadCSV)
	exp.POST("/appointments/:appointment/delete", h.RemoveParticipant)
	return r
}

func samplePage() *usecase.ParticipantPage {
	return &usecase.ParticipantPage{
		Experiment: &domain.Experiment{ID: 7, Name: "Leesexperiment", Open: true},
		Columns:    []string{"Datum", "Naam"},
		Filters: []usecase.FilterState{
			{Placeholder: "Zoek Datum", Value: "Zoek Datum", Class: table.SearchInitClass},
			{Placeholder: "Zoek Naam", Value: "jan", Class: ""},
		},
		View: table.View{
			Draw:            3,
			Rows:            [][]string{{"2024-03-04", "Jan"}},
			RowIDs:          []string{"31"},
			RecordsTotal:    3,
			RecordsFiltered: 1,
			Pages:           1,
			PageLength:      table.All,
		},
		Rows: []usecase.ParticipantRow{{AppointmentID: 31, Cells: []string{"2024-03-04", "Jan"}}},
	}
}

func TestParticipantHandler_ShowParticipants(t *testing.T) {
	t.Run("参加者一覧ページ", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ListParticipants", mock.Anything, 7, mock.Anything, "nl").Return(samplePage(), nil)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants?lang=nl", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

		body := w.Body.String()
		assert.Contains(t, body, "Deelnemers van Leesexperiment")
		assert.Contains(t, body, `<th>Naam</th>`)
		assert.Contains(t, body, `class="search_init" data-placeholder="Zoek Datum"`)
		assert.Contains(t, body, `value="jan" class="" data-placeholder="Zoek Naam"`)
		assert.Contains(t, body, `action="/leader/experiments/7/appointments/31/delete" data-confirm="Weet u zeker dat u deze deelnemer wilt uitschrijven?"`)
		assert.Contains(t, body, `href="/leader/experiments/7/participants/download" data-confirm=`)
		assert.NotContains(t, body, "confirmed=yes")
		assert.Contains(t, body, `<script src="/static/portal.js" defer></script>`)
		uc.AssertExpectations(t)
	})

	t.Run("描画されたURLをそのまま送ると確認を求める", func(t *testing.T) {
		notConfirmed := mock.MatchedBy(func(c table.Confirmer) bool { return !c.Confirm("?") })
		uc := new(MockParticipantUsecase)
		uc.On("ListParticipants", mock.Anything, 7, mock.Anything, "nl").Return(samplePage(), nil)
		uc.On("RemoveParticipant", mock.Anything, 7, 31, notConfirmed, "nl").Return(usecase.ErrNotConfirmed)
		uc.On("ExportCSV", mock.Anything, 7, mock.Anything, notConfirmed, "nl").Return(usecase.ErrNotConfirmed)
		r := setupParticipantRouter(t, uc)

		page := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants", nil)).Body.String()
		action := attr(t, page, `<form method="post" action="`)
		href := attr(t, page, `<a id="download_csv" href="`)

		w := perform(r, httptest.NewRequest(http.MethodPost, action, nil))
		assert.Equal(t, http.StatusConflict, w.Code)

		w = perform(r, httptest.NewRequest(http.MethodGet, href, nil))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, w.Header().Get("Content-Disposition"))

		uc.AssertExpectations(t)
	})

	t.Run("登録解除後のメッセージ", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ListParticipants", mock.Anything, 7, mock.Anything, "en").Return(samplePage(), nil)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants?lang=en&message=unsubscribed", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "The participant has been unsubscribed")
	})

	t.Run("存在しない実験", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ListParticipants", mock.Anything, 9, mock.Anything, mock.Anything).Return(nil, usecase.ErrExperimentNotFound)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/9/participants", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("不正な実験ID", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/abc/participants", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		uc.AssertNotCalled(t, "ListParticipants", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestParticipantHandler_ParticipantData(t *testing.T) {
	t.Run("サーバーサイド処理", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		query := mock.MatchedBy(func(q table.Query) bool {
			return q.Draw == 3 && q.ColumnSearch[1] == "jan"
		})
		uc.On("ListParticipants", mock.Anything, 7, query, "nl").Return(samplePage(), nil)
		r := setupParticipantRouter(t, uc)

		url := "/leader/experiments/7/participants/data?draw=3&columns%5B1%5D%5Bsearch%5D%5Bvalue%5D=jan"
		w := perform(r, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(3), resp["draw"])
		assert.Equal(t, float64(3), resp["recordsTotal"])
		assert.Equal(t, float64(1), resp["recordsFiltered"])
		assert.Equal(t, []interface{}{"31"}, resp["rowIds"])
		assert.Equal(t, []interface{}{"Datum", "Naam"}, resp["columns"])
		uc.AssertExpectations(t)
	})

	t.Run("解析できないクエリ", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants/data?draw=abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("不正な検索語", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ListParticipants", mock.Anything, 7, mock.Anything, mock.Anything).Return(nil, usecase.ErrInvalidQuery)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants/data", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParticipantHandler_RemoveParticipant(t *testing.T) {
	confirmed := mock.MatchedBy(func(c table.Confirmer) bool { return c.Confirm("?") })

	t.Run("確認済みの登録解除", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("RemoveParticipant", mock.Anything, 7, 31, confirmed, "en").Return(nil)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodPost, "/leader/experiments/7/appointments/31/delete?confirmed=yes&lang=en", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp handler.MessageResponseDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "The participant has been unsubscribed", resp.Message)
		uc.AssertExpectations(t)
	})

	t.Run("ブラウザからはリダイレクト", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("RemoveParticipant", mock.Anything, 7, 31, confirmed, "nl").Return(nil)
		r := setupParticipantRouter(t, uc)

		req := httptest.NewRequest(http.MethodPost, "/leader/experiments/7/appointments/31/delete?confirmed=yes", nil)
		req.Header.Set("Accept", "text/html")
		w := perform(r, req)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/leader/experiments/7/participants?message=unsubscribed", w.Header().Get("Location"))
	})

	t.Run("確認なし", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("RemoveParticipant", mock.Anything, 7, 31, mock.Anything, "nl").Return(usecase.ErrNotConfirmed)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodPost, "/leader/experiments/7/appointments/31/delete", nil))
		require.Equal(t, http.StatusConflict, w.Code)

		var resp handler.ConfirmationRequiredDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Weet u zeker dat u deze deelnemer wilt uitschrijven?", resp.Prompt)
	})

	t.Run("ブラウザには確認ページ", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("RemoveParticipant", mock.Anything, 7, 31, mock.Anything, "en").Return(usecase.ErrNotConfirmed)
		r := setupParticipantRouter(t, uc)

		req := httptest.NewRequest(http.MethodPost, "/leader/experiments/7/appointments/31/delete?lang=en", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
		w := perform(r, req)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

		body := w.Body.String()
		assert.Contains(t, body, "Are you sure you want to unsubscribe this participant?")
		assert.Equal(t, "/leader/experiments/7/appointments/31/delete?confirmed=yes&lang=en", attr(t, body, `<form id="confirm" method="POST" action="`))
		assert.Equal(t, "/leader/experiments/7/participants?lang=en", attr(t, body, `<a href="`))
	})

	t.Run("存在しない予約", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("RemoveParticipant", mock.Anything, 7, 99, mock.Anything, mock.Anything).Return(usecase.ErrAppointmentNotFound)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodPost, "/leader/experiments/7/appointments/99/delete?confirmed=yes", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("不正な予約ID", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodPost, "/leader/experiments/7/appointments/x/delete", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParticipantHandler_DownloadCSV(t *testing.T) {
	t.Run("確認済みのダウンロード", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ExportCSV", mock.Anything, 7, mock.Anything, mock.Anything, "nl").
			Run(func(args mock.Arguments) {
				_, _ = args.Get(2).(io.Writer).Write([]byte("Datum,Naam\n2024-03-04,Jan\n"))
			}).
			Return(nil)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants/download?confirmed=yes", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="participants-7-`))
		assert.Equal(t, "Datum,Naam\n2024-03-04,Jan\n", w.Body.String())
	})

	t.Run("確認なし", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ExportCSV", mock.Anything, 7, mock.Anything, mock.Anything, "en").Return(usecase.ErrNotConfirmed)
		r := setupParticipantRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants/download?lang=en", nil))
		require.Equal(t, http.StatusConflict, w.Code)

		var resp handler.ConfirmationRequiredDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "The CSV file contains personal data. Are you sure you want to download it?", resp.Prompt)
		assert.Empty(t, w.Header().Get("Content-Disposition"))
	})

	t.Run("ブラウザには確認ページ", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("ExportCSV", mock.Anything, 7, mock.Anything, mock.Anything, "nl").Return(usecase.ErrNotConfirmed)
		r := setupParticipantRouter(t, uc)

		req := httptest.NewRequest(http.MethodGet, "/leader/experiments/7/participants/download?lang=nl", nil)
		req.Header.Set("Accept", "text/html")
		w := perform(r, req)
		require.Equal(t, http.StatusConflict, w.Code)

		body := w.Body.String()
		assert.Contains(t, body, "Het CSV-bestand bevat persoonsgegevens.")
		assert.Contains(t, body, `<form id="confirm" method="GET" action="/leader/experiments/7/participants/download">`)
		assert.Contains(t, body, `<input type="hidden" name="confirmed" value="yes">`)
		assert.Contains(t, body, `<input type="hidden" name="lang" value="nl">`)
	})
}

func TestRequestConfirmer(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	c.Request = httptest.NewRequest(http.MethodGet, "/?confirmed=yes", nil)
	assert.True(t, handler.RequestConfirmer(c).Confirm("prompt"))

	c.Request = httptest.NewRequest(http.MethodGet, "/?confirmed=no", nil)
	assert.False(t, handler.RequestConfirmer(c).Confirm("prompt"))

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, handler.RequestConfirmer(c).Confirm("prompt"))
}

func setupRegistrationRouter(t *testing.T, uc usecase.ParticipantUsecase) *gin.Engine {
	t.Helper()
	catalog := newCatalog(t)
	v, err := validator.NewCustomValidator(catalog, domain.CalendarDate{})
	require.NoError(t, err)
	h := handler.NewRegistrationHandler(uc, v, catalog, quietLogger())

	r := gin.New()
	r.Use(middleware.LanguageMiddleware(catalog))
	r.GET("/register", h.ShowForm)
	r.GET("/register/birthdate", h.PreviewBirthDate)
	r.POST("/register", h.Register)
	return r
}

func preview(value string, r birthdate.Result) usecase.BirthDatePreview {
	f := birthdate.NewFragment(birthdate.DisplayID)
	birthdate.Present(r, f, nil)
	return usecase.BirthDatePreview{Value: value, Result: r, Fragment: f}
}

func TestRegistrationHandler_PreviewBirthDate(t *testing.T) {
	valid := birthdate.Result{
		Kind:    birthdate.Valid,
		Display: "1 februari 1990",
		Date:    domain.CalendarDate{Year: 1990, Month: time.February, Day: 1},
	}

	t.Run("HTML断片を返す", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("PreviewBirthDate", "01021990", "nl").Return(preview("01-02-1990", valid))
		r := setupRegistrationRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/register/birthdate?birth_date=01021990", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `<div id="formatted_birthday_value">1 februari 1990</div>`, w.Body.String())
		uc.AssertExpectations(t)
	})

	t.Run("JSONで返す", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("PreviewBirthDate", "01021990", "nl").Return(preview("01-02-1990", valid))
		r := setupRegistrationRouter(t, uc)

		req := httptest.NewRequest(http.MethodGet, "/register/birthdate?birth_date=01021990", nil)
		req.Header.Set("Accept", "application/json")
		w := perform(r, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp handler.BirthDatePreviewDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "valid", resp.Kind)
		assert.Equal(t, "01-02-1990", resp.Value)
		assert.Equal(t, "1990-02-01", resp.Date)
		assert.Equal(t, "1 februari 1990", resp.Formatted)
	})
}

func TestRegistrationHandler_ShowForm(t *testing.T) {
	empty := birthdate.Result{Kind: birthdate.Empty}

	t.Run("実験なし", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("PreviewBirthDate", "", "en").Return(preview("", empty))
		r := setupRegistrationRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/register?lang=en", nil))
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Contains(t, body, `placeholder="dd-mm-yyyy" data-mask="99-99-9999"`)
		assert.Contains(t, body, `<div id="formatted_birthday_value" style="display: none;"></div>`)
		assert.Contains(t, body, "Sign up as a participant")
		assert.Contains(t, body, "Date of birth")
		assert.NotContains(t, body, `name="experiment_id"`)
		assert.NotContains(t, body, `name="timeslot"`)
	})

	t.Run("実験と時間帯を指定", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("PreviewBirthDate", "12061995", "nl").Return(preview("12-06-1995", birthdate.Result{Kind: birthdate.Valid, Display: "12 juni 1995"}))
		r := setupRegistrationRouter(t, uc)

		w := perform(r, httptest.NewRequest(http.MethodGet, "/register?experiment=7&timeslot=2024-03-05T10:00&birth_date=12061995", nil))
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Contains(t, body, `name="experiment_id" value="7"`)
		assert.Contains(t, body, `name="timeslot" value="2024-03-05T10:00"`)
		assert.Contains(t, body, `name="birth_date" value="12-06-1995"`)
		assert.Contains(t, body, "12 juni 1995")
	})
}

// formFields は描画されたフォームの input と select の name を返す
func formFields(body string) []string {
	var names []string
	for _, part := range strings.Split(body, ` name="`)[1:] {
		names = append(names, part[:strings.Index(part, `"`)])
	}
	return names
}

func TestRegistrationHandler_RegisterFromForm(t *testing.T) {
	empty := birthdate.Result{Kind: birthdate.Empty}
	uc := new(MockParticipantUsecase)
	uc.On("PreviewBirthDate", "", "nl").Return(preview("", empty))

	slot, err := time.ParseInLocation(handler.TimeslotFormLayout, "2024-03-05T10:00", time.Local)
	require.NoError(t, err)
	req := mock.MatchedBy(func(r usecase.RegisterRequest) bool {
		return r.ExperimentID == 7 && r.Timeslot.Equal(slot) && r.BirthDate == "01-02-1990" && r.Handedness == "L"
	})
	reg := &usecase.Registration{
		Participant: &domain.Participant{ID: 5, Name: "Jan de Vries"},
		Appointment: &domain.Appointment{ID: 40, ExperimentID: 7},
	}
	uc.On("RegisterParticipant", mock.Anything, req, "nl").Return(reg, nil)
	r := setupRegistrationRouter(t, uc)

	page := perform(r, httptest.NewRequest(http.MethodGet, "/register?experiment=7", nil)).Body.String()
	values := map[string]string{
		"experiment_id": attr(t, page, `name="experiment_id" value="`),
		"timeslot":      "2024-03-05T10:00",
		"name":          "Jan de Vries",
		"email":         "jan@example.nl",
		"phone":         "0612345678",
		"birth_date":    "01-02-1990",
		"language":      "Nederlands",
		"sex":           "M",
		"handedness":    "L",
		"social_status": "O",
	}

	form := url.Values{}
	for _, name := range formFields(page) {
		v, ok := values[name]
		require.True(t, ok, "unexpected field %s", name)
		form.Set(name, v)
	}
	assert.Len(t, form, len(values))

	post := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := perform(r, post)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	uc.AssertExpectations(t)
}

func registerBody(birthDate string) string {
	return `{
		"name": "Jan de Vries",
		"email": "jan@example.nl",
		"phone": "+31 6 1234 5678",
		"birth_date": "` + birthDate + `",
		"language": "Nederlands",
		"sex": "M",
		"handedness": "R",
		"social_status": "D",
		"experiment_id": 7,
		"timeslot": "2024-03-05T10:00:00Z"
	}`
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegistrationHandler_Register(t *testing.T) {
	t.Run("参加登録成功", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		req := mock.MatchedBy(func(r usecase.RegisterRequest) bool {
			return r.BirthDate == "01-02-1990" && r.ExperimentID == 7 && r.Sex == "M"
		})
		reg := &usecase.Registration{
			Participant: &domain.Participant{ID: 5, Name: "Jan de Vries"},
			Appointment: &domain.Appointment{ID: 40, ExperimentID: 7},
		}
		uc.On("RegisterParticipant", mock.Anything, req, "nl").Return(reg, nil)
		r := setupRegistrationRouter(t, uc)

		w := perform(r, postJSON("/register", registerBody("01-02-1990")))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp handler.RegistrationResponseDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 5, resp.Participant.ID)
		require.NotNil(t, resp.Appointment)
		assert.Equal(t, 40, resp.Appointment.ID)
		uc.AssertExpectations(t)
	})

	t.Run("存在しない日付は検証エラー", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		r := setupRegistrationRouter(t, uc)

		w := perform(r, postJSON("/register?lang=nl", registerBody("31-02-2000")))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp validator.ValidationErrors
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "birth_date", resp.Errors[0].Field)
		assert.Equal(t, "Ongeldige datum", resp.Errors[0].Message)
		uc.AssertNotCalled(t, "RegisterParticipant", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("1900年より前", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		r := setupRegistrationRouter(t, uc)

		w := perform(r, postJSON("/register?lang=en", registerBody("31-12-1899")))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Date of birth must be in the year 1900 or later")
	})

	t.Run("締め切られた実験", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		uc.On("RegisterParticipant", mock.Anything, mock.Anything, "en").Return(nil, usecase.ErrExperimentClosed)
		r := setupRegistrationRouter(t, uc)

		w := perform(r, postJSON("/register?lang=en", registerBody("01-02-1990")))
		require.Equal(t, http.StatusConflict, w.Code)

		var resp handler.ErrorResponseDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "This experiment is closed for registration", resp.Message)
	})

	t.Run("不正なJSON", func(t *testing.T) {
		uc := new(MockParticipantUsecase)
		r := setupRegistrationRouter(t, uc)

		w := perform(r, postJSON("/register", `{"name":`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func setupAuthRouter(t *testing.T, auth service.AuthService) *gin.Engine {
	t.Helper()
	catalog := newCatalog(t)
	h := handler.NewAuthHandler(auth, catalog, quietLogger(), false)

	r := gin.New()
	r.Use(middleware.LanguageMiddleware(catalog))
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	return r
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("ログイン成功でクッキーを設定", func(t *testing.T) {
		auth := new(MockAuthService)
		auth.On("Login", mock.Anything, "lisa@example.nl", "geheim").Return(&service.LoginResponse{
			AccessToken: "token-abc",
			TokenType:   "Bearer",
			ExpiresAt:   time.Now().Add(time.Hour),
			Leader:      domain.Leader{ID: 1, Email: "lisa@example.nl", IsActive: true},
		}, nil)
		r := setupAuthRouter(t, auth)

		w := perform(r, postJSON("/auth/login", `{"email":"lisa@example.nl","password":"geheim"}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Set-Cookie"), middleware.TokenCookie+"=token-abc")
		assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")

		var resp service.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "token-abc", resp.AccessToken)
		auth.AssertExpectations(t)
	})

	t.Run("認証情報の誤り", func(t *testing.T) {
		auth := new(MockAuthService)
		auth.On("Login", mock.Anything, "lisa@example.nl", "fout").Return(nil, service.ErrInvalidCredentials)
		r := setupAuthRouter(t, auth)

		w := perform(r, postJSON("/auth/login?lang=en", `{"email":"lisa@example.nl","password":"fout"}`))
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var resp handler.ErrorResponseDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Invalid email address or password", resp.Message)
		assert.Empty(t, w.Header().Get("Set-Cookie"))
	})

	t.Run("無効化されたアカウント", func(t *testing.T) {
		auth := new(MockAuthService)
		auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, service.ErrLeaderInactive)
		r := setupAuthRouter(t, auth)

		w := perform(r, postJSON("/auth/login", `{"email":"lisa@example.nl","password":"geheim"}`))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("メールアドレスの形式が不正", func(t *testing.T) {
		auth := new(MockAuthService)
		r := setupAuthRouter(t, auth)

		w := perform(r, postJSON("/auth/login", `{"email":"lisa","password":"geheim"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		auth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	r := setupAuthRouter(t, new(MockAuthService))

	w := perform(r, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), middleware.TokenCookie+"=;")
}

package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ppn-portal/src/domain"
	"ppn-portal/src/infrastructure/remote"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.Handler) *remote.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := remote.NewClient(remote.Config{
		BaseURL:  server.URL + "/api",
		Token:    "secret",
		RetryMax: 2,
		Timeout:  5 * time.Second,
	}, log)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := remote.NewClient(remote.Config{}, logrus.New())
	assert.Error(t, err)
}

func TestClient_ListAppointments(t *testing.T) {
	birth, _ := domain.NewCalendarDate(1990, time.July, 1)
	want := []domain.Appointment{{
		ID:           3,
		ExperimentID: 7,
		Timeslot:     time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
		Participant:  domain.Participant{ID: 11, Name: "Anna", BirthDate: birth, Sex: domain.SexFemale},
	}}

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/experiments/7/appointments", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))

	got, err := c.ListAppointments(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Anna", got[0].Participant.Name)
	assert.Equal(t, birth, got[0].Participant.BirthDate)
	assert.True(t, got[0].Timeslot.Equal(want[0].Timeslot))
}

func TestClient_NotFoundMapsToDomainErrors(t *testing.T) {
	c := newClient(t, http.NotFoundHandler())
	ctx := context.Background()

	_, err := c.GetExperiment(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrExperimentNotFound)

	_, err = c.ListAppointments(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrExperimentNotFound)

	err = c.DeleteAppointment(ctx, 1, 2)
	assert.ErrorIs(t, err, domain.ErrAppointmentNotFound)

	_, err = c.CreateAppointment(ctx, 1, 2, time.Now())
	assert.ErrorIs(t, err, domain.ErrExperimentNotFound)
}

func TestClient_DeleteAppointment(t *testing.T) {
	var called atomic.Bool
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/experiments/7/appointments/3", r.URL.Path)
		called.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteAppointment(context.Background(), 7, 3))
	assert.True(t, called.Load())
}

func TestClient_CreateParticipant(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/participants", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2001-02-28", body["birth_date"])

		body["id"] = 42
		json.NewEncoder(w).Encode(body)
	}))

	birth, _ := domain.NewCalendarDate(2001, time.February, 28)
	created, err := c.CreateParticipant(context.Background(), &domain.Participant{Name: "Piet", BirthDate: birth})
	require.NoError(t, err)
	assert.Equal(t, 42, created.ID)
	assert.Equal(t, birth, created.BirthDate)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(domain.Experiment{ID: 7, Name: "Leesexperiment", Open: true})
	}))

	exp, err := c.GetExperiment(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Leesexperiment", exp.Name)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var attempts atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.CreateParticipant(context.Background(), &domain.Participant{Name: "Piet"})
	require.Error(t, err)

	var se *remote.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_RetriesDelete(t *testing.T) {
	var attempts atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteAppointment(context.Background(), 7, 3))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_CreateParticipantWithAppointment(t *testing.T) {
	slot := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	t.Run("1回のリクエストで登録", func(t *testing.T) {
		var attempts atomic.Int32
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/experiments/7/registrations", r.URL.Path)

			var body struct {
				Participant map[string]any `json:"participant"`
				Timeslot    time.Time      `json:"timeslot"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Anna", body.Participant["name"])
			assert.True(t, body.Timeslot.Equal(slot))

			json.NewEncoder(w).Encode(map[string]any{
				"participant": map[string]any{"id": 5, "name": "Anna"},
				"appointment": map[string]any{"id": 40, "experiment_id": 7, "timeslot": slot},
			})
		}))

		p, a, err := c.CreateParticipantWithAppointment(context.Background(), &domain.Participant{Name: "Anna"}, 7, slot)
		require.NoError(t, err)
		assert.Equal(t, 5, p.ID)
		assert.Equal(t, 40, a.ID)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("存在しない実験", func(t *testing.T) {
		c := newClient(t, http.NotFoundHandler())
		_, _, err := c.CreateParticipantWithAppointment(context.Background(), &domain.Participant{Name: "Anna"}, 7, slot)
		assert.ErrorIs(t, err, domain.ErrExperimentNotFound)
	})
}

func TestClient_UnexpectedStatus(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	}))

	_, err := c.GetExperiment(context.Background(), 7)
	require.Error(t, err)

	var se *remote.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

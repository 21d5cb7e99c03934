package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ppn-portal/src/domain"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Config holds the remote backend settings
type Config struct {
	BaseURL  string
	Token    string
	RetryMax int
	Timeout  time.Duration
}

// Client reads and writes participants through the remote backend API.
// It implements domain.ParticipantRepository.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	logger  *logrus.Logger
}

// StatusError is returned for non-2xx responses that have no domain meaning
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// NewClient creates a new remote backend client
func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	retryClient.CheckRetry = checkRetry
	retryClient.Logger = nil
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.WithFields(logrus.Fields{
				"method":  req.Method,
				"url":     req.URL.String(),
				"attempt": attempt,
			}).Warn("バックエンドへのリクエストを再試行します")
		}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    retryClient,
		logger:  logger,
	}, nil
}

type methodKey struct{}

// checkRetry は冪等なメソッドだけを再試行する。POST を再送すると参加者が重複する。
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	switch ctx.Value(methodKey{}) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	default:
		return false, nil
	}
}

type createAppointmentRequest struct {
	ParticipantID int       `json:"participant_id"`
	Timeslot      time.Time `json:"timeslot"`
}

type registrationRequest struct {
	Participant *domain.Participant `json:"participant"`
	Timeslot    time.Time           `json:"timeslot"`
}

type registrationResponse struct {
	Participant domain.Participant `json:"participant"`
	Appointment domain.Appointment `json:"appointment"`
}

// GetExperiment retrieves an experiment by ID
func (c *Client) GetExperiment(ctx context.Context, experimentID int) (*domain.Experiment, error) {
	var exp domain.Experiment
	err := c.do(ctx, http.MethodGet, experimentPath(experimentID), nil, &exp)
	if isNotFound(err) {
		return nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// ListAppointments lists the appointments of an experiment
func (c *Client) ListAppointments(ctx context.Context, experimentID int) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := c.do(ctx, http.MethodGet, experimentPath(experimentID, "appointments"), nil, &appointments)
	if isNotFound(err) {
		return nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// DeleteAppointment unsubscribes a participant from an experiment
func (c *Client) DeleteAppointment(ctx context.Context, experimentID, appointmentID int) error {
	err := c.do(ctx, http.MethodDelete, experimentPath(experimentID, "appointments", strconv.Itoa(appointmentID)), nil, nil)
	if isNotFound(err) {
		return domain.ErrAppointmentNotFound
	}
	return err
}

// CreateParticipant stores a new participant
func (c *Client) CreateParticipant(ctx context.Context, participant *domain.Participant) (*domain.Participant, error) {
	var created domain.Participant
	if err := c.do(ctx, http.MethodPost, "participants", participant, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateAppointment signs a participant up for a timeslot
func (c *Client) CreateAppointment(ctx context.Context, experimentID, participantID int, timeslot time.Time) (*domain.Appointment, error) {
	body := createAppointmentRequest{ParticipantID: participantID, Timeslot: timeslot.UTC()}

	var created domain.Appointment
	err := c.do(ctx, http.MethodPost, experimentPath(experimentID, "appointments"), body, &created)
	if isNotFound(err) {
		return nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateParticipantWithAppointment stores a participant and signs them up in
// one request, so the backend creates both or neither.
func (c *Client) CreateParticipantWithAppointment(ctx context.Context, participant *domain.Participant, experimentID int, timeslot time.Time) (*domain.Participant, *domain.Appointment, error) {
	body := registrationRequest{Participant: participant, Timeslot: timeslot.UTC()}

	var created registrationResponse
	err := c.do(ctx, http.MethodPost, experimentPath(experimentID, "registrations"), body, &created)
	if isNotFound(err) {
		return nil, nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &created.Participant, &created.Appointment, nil
}

func experimentPath(experimentID int, elem ...string) string {
	return "experiments/" + strconv.Itoa(experimentID) + joinElems(elem)
}

func joinElems(elem []string) string {
	var s string
	for _, e := range elem {
		s += "/" + url.PathEscape(e)
	}
	return s
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, response any) error {
	uri, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	ctx = context.WithValue(ctx, methodKey{}, method)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, uri, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("url", uri).Error("バックエンドへのリクエストに失敗")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, URL: uri, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if response == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

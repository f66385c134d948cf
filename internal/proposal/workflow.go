// Package proposal validates and transmits new-location proposals.
package proposal

import (
	"context"
	"errors"
	"net/http"

	"diaspora-map/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusFailed     Status = "failed"
)

// Outcome labels used in the audit log and metrics.
const (
	OutcomeInvalid   = "invalid"
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)

const failureMessage = "The proposal could not be sent. Please try again."

// ErrInFlight is returned when a submission is already waiting for the backend.
var ErrInFlight = errors.New("proposal submission already in progress")

// Submitter sends a proposal and reports the response status.
type Submitter interface {
	CreateProposal(ctx context.Context, form models.ProposalForm, idempotencyKey string) (int, error)
}

// Recorder keeps an audit trail of transmitted proposals.
type Recorder interface {
	Record(ctx context.Context, attempt *models.ProposalAttempt) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *models.ProposalAttempt) error { return nil }

// Request is a validated proposal ready to be sent.
type Request struct {
	Form           models.ProposalForm
	IdempotencyKey string
}

// Outcome is the result of sending a Request.
type Outcome struct {
	StatusCode int
	Err        error
}

// Succeeded reports whether the backend created the proposal.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.StatusCode == http.StatusCreated
}

type Option func(*Workflow)

func WithRecorder(r Recorder) Option {
	return func(w *Workflow) {
		if r != nil {
			w.recorder = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logr = l
		}
	}
}

// WithSessionID tags recorded attempts.
func WithSessionID(id string) Option {
	return func(w *Workflow) { w.sessionID = id }
}

// OnOutcome is called with every validation failure, submission and failure.
func OnOutcome(fn func(outcome string)) Option {
	return func(w *Workflow) { w.onOutcome = fn }
}

// Workflow is the state of one submission form. Prepare, Complete, Open and
// View mutate or read state and belong to the owning session's event loop;
// Send only performs I/O and may run elsewhere.
type Workflow struct {
	submitter Submitter
	recorder  Recorder
	logr      *zap.Logger
	sessionID string
	onOutcome func(string)

	status  Status
	form    models.ProposalForm
	errors  FieldErrors
	message string
	key     string
}

func NewWorkflow(submitter Submitter, opts ...Option) *Workflow {
	w := &Workflow{
		submitter: submitter,
		recorder:  nopRecorder{},
		logr:      zap.NewNop(),
		status:    StatusEditing,
		key:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) Status() Status {
	return w.status
}

// Open shows the form. After a successful submission the form starts empty
// with a new idempotency key; after a failure the previous input and key are
// kept so the user can correct and resend.
func (w *Workflow) Open() {
	switch w.status {
	case StatusSubmitted:
		w.reset()
	case StatusFailed:
		w.message = ""
		w.status = StatusEditing
	}
}

func (w *Workflow) reset() {
	w.form = models.ProposalForm{}
	w.key = uuid.NewString()
	w.errors = nil
	w.message = ""
	w.status = StatusEditing
}

// Prepare validates form and moves to submitting. Validation failures return
// a *ValidationError and leave the workflow editing. A form prepared after a
// successful submission is a new proposal and gets a new idempotency key.
func (w *Workflow) Prepare(form models.ProposalForm) (Request, error) {
	switch w.status {
	case StatusSubmitting:
		return Request{}, ErrInFlight
	case StatusSubmitted:
		w.reset()
	}

	w.form = form
	if verr := Validate(form); verr != nil {
		w.errors = verr.Fields
		w.message = ""
		w.status = StatusEditing
		w.outcome(OutcomeInvalid)
		return Request{}, verr
	}

	w.errors = nil
	w.message = ""
	w.status = StatusSubmitting
	return Request{Form: form, IdempotencyKey: w.key}, nil
}

// Send issues exactly one create request and records the attempt.
func (w *Workflow) Send(ctx context.Context, req Request) Outcome {
	code, err := w.submitter.CreateProposal(ctx, req.Form, req.IdempotencyKey)
	o := Outcome{StatusCode: code, Err: err}

	attempt := &models.ProposalAttempt{
		IdempotencyKey: req.IdempotencyKey,
		SessionID:      w.sessionID,
		Name:           req.Form.Name,
		Address:        req.Form.Address,
		Description:    req.Form.Description,
		Website:        req.Form.Website,
		Email:          req.Form.Email,
		Phone:          req.Form.Phone,
		StatusCode:     code,
		Outcome:        OutcomeFailed,
	}
	if o.Succeeded() {
		attempt.Outcome = OutcomeSubmitted
	}
	if err != nil {
		msg := err.Error()
		attempt.Error = &msg
	}
	if rerr := w.recorder.Record(ctx, attempt); rerr != nil {
		w.logr.Warn("failed to record proposal attempt", zap.Error(rerr))
	}
	return o
}

// Complete applies the outcome of Send.
func (w *Workflow) Complete(o Outcome) Status {
	if o.Succeeded() {
		w.status = StatusSubmitted
		w.message = ""
		w.logr.Info("location proposal submitted", zap.String("name", w.form.Name))
		w.outcome(OutcomeSubmitted)
		return w.status
	}

	w.status = StatusFailed
	w.message = failureMessage
	w.logr.Warn("location proposal failed", zap.Int("status", o.StatusCode), zap.Error(o.Err))
	w.outcome(OutcomeFailed)
	return w.status
}

// Submit runs Prepare, Send and Complete in sequence.
func (w *Workflow) Submit(ctx context.Context, form models.ProposalForm) (Status, error) {
	req, err := w.Prepare(form)
	if err != nil {
		return w.status, err
	}
	return w.Complete(w.Send(ctx, req)), nil
}

// View renders the form state.
func (w *Workflow) View() models.ProposalView {
	v := models.ProposalView{
		Status:  string(w.status),
		Form:    w.form,
		Message: w.message,
	}
	if len(w.errors) > 0 {
		v.Errors = make(map[string]string, len(w.errors))
		for k, msg := range w.errors {
			v.Errors[k] = msg
		}
	}
	return v
}

// IdempotencyKey returns the key the next Send will use.
func (w *Workflow) IdempotencyKey() string {
	return w.key
}

func (w *Workflow) outcome(o string) {
	if w.onOutcome != nil {
		w.onOutcome(o)
	}
}

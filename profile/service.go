package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alovak/cardprofile/internal/cardnum"
	"github.com/alovak/cardprofile/internal/docstore"
	"github.com/alovak/cardprofile/internal/expiry"
	"github.com/alovak/cardprofile/internal/payment"
	"github.com/alovak/cardprofile/internal/validate"
	"github.com/alovak/cardprofile/profile/models"
	"golang.org/x/exp/slog"
)

// State identifies where the profile session is in its lifecycle.
type State string

const (
	StateLoading     State = "loading"
	StateIdleEmpty   State = "idle_empty"
	StateIdlePresent State = "idle_present"
	StateFormCreate  State = "form_create"
	StateFormEdit    State = "form_edit"
	StateSaving      State = "saving"
	StateDeleting    State = "deleting"
)

// ErrInvalidTransition rejects an action the current state does not allow,
// including any action arriving while a store call is in flight.
var ErrInvalidTransition = fmt.Errorf("invalid transition")

// Service is the synchronization state machine between the card display,
// the edit form and the single remote document. Transitions hold at most
// one store call in flight; actions arriving meanwhile are rejected. Every
// transition resolves to a defined state plus a notice — a store failure
// never escapes as a crash.
type Service struct {
	client *docstore.Client
	sim    *payment.Simulator
	logger *slog.Logger

	loadTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	state     State
	record    *models.Record
	draft     *models.Draft
	fieldErrs map[string]string
	notice    models.Notice
}

func NewService(client *docstore.Client, sim *payment.Simulator, logger *slog.Logger, loadTimeout time.Duration) *Service {
	if loadTimeout <= 0 {
		loadTimeout = 10 * time.Second
	}
	return &Service{
		client:      client,
		sim:         sim,
		logger:      logger,
		loadTimeout: loadTimeout,
		now:         time.Now,
		state:       StateIdleEmpty,
	}
}

// SetClock overrides the time source used for the expired flag. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Snapshot is the displayable view of the session.
type Snapshot struct {
	State       State             `json:"state"`
	Record      *models.Record    `json:"record,omitempty"`
	Draft       *models.Draft     `json:"draft,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Notice      models.Notice     `json:"notice"`
	// Expired is derived when expiryDate parses as MM/YY; free-text expiry
	// reads as not expired.
	Expired bool `json:"expired"`
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, Notice: s.notice}
	if len(s.fieldErrs) > 0 {
		snap.FieldErrors = make(map[string]string, len(s.fieldErrs))
		for k, v := range s.fieldErrs {
			snap.FieldErrors[k] = v
		}
	}
	if s.record != nil {
		rec := *s.record
		snap.Record = &rec
		if expired, err := expiry.Expired(rec.ExpiryDate, s.now()); err == nil {
			snap.Expired = expired
		}
	}
	if s.draft != nil {
		d := *s.draft
		snap.Draft = &d
	}
	return snap
}

// Load fetches the card, racing the store call against the load timeout.
// Whichever resolves first wins; the loser's eventual result lands in a
// buffered channel and is dropped, never applied to state. Loading always
// ends in an idle state — on timeout or store error the prior idle state
// is restored and the failure surfaces as a notice.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdleEmpty, StateIdlePresent:
	default:
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	prior := s.state
	s.state = StateLoading
	s.mu.Unlock()

	type fetched struct {
		rec *models.Record
		err error
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()
	done := make(chan fetched, 1)
	go func() {
		rec, err := s.client.Fetch(fetchCtx)
		done <- fetched{rec, err}
	}()

	var res fetched
	select {
	case res = <-done:
	case <-fetchCtx.Done():
		res = fetched{nil, fetchCtx.Err()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case res.err == nil:
		s.record = res.rec
		s.state = StateIdlePresent
		s.notice = models.Notice{Kind: models.NoticeLoaded}
	case errors.Is(res.err, docstore.ErrNotFound):
		s.record = nil
		s.state = StateIdleEmpty
		s.notice = models.Notice{}
	case errors.Is(res.err, context.DeadlineExceeded):
		s.logger.Error("loading card timed out", slog.Duration("timeout", s.loadTimeout))
		s.state = prior
		s.notice = models.Notice{Kind: models.NoticeTimeout, Detail: "Failed to fetch card data: request timeout"}
	default:
		s.logger.Error("loading card", "err", res.err)
		s.state = prior
		s.notice = models.Notice{Kind: models.NoticeStoreError, Detail: "Failed to fetch card data: " + res.err.Error()}
	}
	return nil
}

// Create opens a blank form.
func (s *Service) Create() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdleEmpty, StateIdlePresent:
	default:
		return ErrInvalidTransition
	}
	draft := models.DefaultDraft()
	s.draft = &draft
	s.fieldErrs = nil
	s.notice = models.Notice{}
	s.state = StateFormCreate
	return nil
}

// Edit opens the form seeded from the loaded record.
func (s *Service) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdlePresent || s.record == nil {
		return ErrInvalidTransition
	}
	draft := models.DraftFromRecord(*s.record)
	s.draft = &draft
	s.fieldErrs = nil
	s.notice = models.Notice{}
	s.state = StateFormEdit
	return nil
}

// Cancel discards the draft and returns to the idle state.
func (s *Service) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateFormCreate, StateFormEdit:
	default:
		return ErrInvalidTransition
	}
	s.draft = nil
	s.fieldErrs = nil
	s.notice = models.Notice{}
	s.state = s.idleFor()
	return nil
}

// Submit validates the draft and saves it. Validation failures keep the
// form open with field errors and no store call. A store failure returns
// to the form with the draft intact, so no input is lost.
func (s *Service) Submit(ctx context.Context, draft models.Draft) error {
	s.mu.Lock()
	var formState State
	switch s.state {
	case StateFormCreate, StateFormEdit:
		formState = s.state
	default:
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.draft = &draft

	if errs := validate.Draft(draft, draft.PaymentActive); len(errs) > 0 {
		s.fieldErrs = errs
		s.notice = models.Notice{Kind: models.NoticeValidation, Detail: "Please fix the highlighted fields"}
		s.mu.Unlock()
		return nil
	}
	s.fieldErrs = nil

	// Mask raw digit input; a value that already carries mask groups was
	// seeded from the stored record and must not be re-fed to the formatter.
	number := strings.TrimSpace(draft.CardNumber)
	if !strings.Contains(number, "*") {
		number = cardnum.Mask(number)
	}
	rec := draft.ToRecord(number)
	if s.record != nil {
		rec.CreatedAt = s.record.CreatedAt
	}

	s.state = StateSaving
	s.mu.Unlock()

	err := s.client.Upsert(ctx, &rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("saving card", "err", err)
		s.state = formState
		s.notice = models.Notice{Kind: models.NoticeStoreError, Detail: "Failed to save card data: " + err.Error()}
		return nil
	}

	s.record = &rec
	s.draft = nil
	s.state = StateIdlePresent
	s.notice = models.Notice{Kind: models.NoticeSaved, Detail: "Card saved successfully"}

	// re-fetch to reconcile store-assigned timestamps
	if fresh, ferr := s.client.Fetch(ctx); ferr == nil {
		s.record = fresh
	}
	return nil
}

// Confirm blocks for a yes/no answer before a delete proceeds.
type Confirm func() bool

// Delete removes the card after explicit confirmation. A declined
// confirmation is a no-op. Store absence counts as success, so repeating
// a delete never raises an error.
func (s *Service) Delete(ctx context.Context, confirm Confirm) error {
	s.mu.Lock()
	if s.state != StateIdlePresent {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if confirm != nil && !confirm() {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDeleting
	s.mu.Unlock()

	err := s.client.Delete(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("deleting card", "err", err)
		s.state = StateIdlePresent
		s.notice = models.Notice{Kind: models.NoticeStoreError, Detail: "Failed to delete card data: " + err.Error()}
		return nil
	}
	s.record = nil
	s.draft = nil
	s.state = StateIdleEmpty
	s.notice = models.Notice{Kind: models.NoticeDeleted, Detail: "Card deleted"}
	return nil
}

// PatchRecord merges fields into the stored document and reloads it.
// Patching when no card exists is a hard error (never a create); the
// caller gets ErrNotFound to surface it.
func (s *Service) PatchRecord(ctx context.Context, fields map[string]any) error {
	s.mu.Lock()
	if s.state != StateIdlePresent {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.state = StateSaving
	s.mu.Unlock()

	err := s.client.Patch(ctx, fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// the document vanished underneath the session
			s.record = nil
			s.state = StateIdleEmpty
			s.notice = models.Notice{Kind: models.NoticeStoreError, Detail: "No card to update"}
			return err
		}
		s.logger.Error("patching card", "err", err)
		s.state = StateIdlePresent
		s.notice = models.Notice{Kind: models.NoticeStoreError, Detail: "Failed to update card data: " + err.Error()}
		return nil
	}

	s.state = StateIdlePresent
	s.notice = models.Notice{Kind: models.NoticeSaved, Detail: "Card updated"}
	if fresh, ferr := s.client.Fetch(ctx); ferr == nil {
		s.record = fresh
	}
	return nil
}

// Pay runs the payment simulator and, on success, persists the balance
// delta through the same saving transition a manual edit-submit takes.
func (s *Service) Pay(ctx context.Context, amount, method string) (payment.Result, error) {
	s.mu.Lock()
	if s.state != StateIdlePresent || s.record == nil {
		s.mu.Unlock()
		return payment.Result{}, ErrInvalidTransition
	}
	s.mu.Unlock()

	res, err := s.sim.Process(ctx, amount, method)
	if err != nil {
		if errors.Is(err, payment.ErrRejected) {
			s.mu.Lock()
			s.notice = models.Notice{Kind: models.NoticeRejected, Detail: err.Error()}
			s.mu.Unlock()
		}
		return payment.Result{}, err
	}
	return res, s.CompletePayment(ctx, res)
}

// CompletePayment persists a successful payment outcome. A zero delta
// (khalti, connectips) records the status without touching the document.
func (s *Service) CompletePayment(ctx context.Context, res payment.Result) error {
	s.mu.Lock()
	if s.state != StateIdlePresent || s.record == nil {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if res.BalanceDelta == 0 {
		s.notice = models.Notice{Kind: models.NoticePayment, Detail: res.Status}
		s.mu.Unlock()
		return nil
	}

	rec := *s.record
	rec.Balance += res.BalanceDelta
	s.state = StateSaving
	s.mu.Unlock()

	err := s.client.Upsert(ctx, &rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("saving payment", "err", err)
		s.state = StateIdlePresent
		s.notice = models.Notice{Kind: models.NoticeStoreError, Detail: "Failed to save card data: " + err.Error()}
		return nil
	}
	s.record = &rec
	s.state = StateIdlePresent
	s.notice = models.Notice{Kind: models.NoticePayment, Detail: res.Status}
	if fresh, ferr := s.client.Fetch(ctx); ferr == nil {
		s.record = fresh
	}
	return nil
}

func (s *Service) idleFor() State {
	if s.record != nil {
		return StateIdlePresent
	}
	return StateIdleEmpty
}

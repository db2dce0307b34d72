package payment

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/everypay/everypay-sdk-go/pkg/backend"
	"github.com/everypay/everypay-sdk-go/pkg/config"
	"github.com/everypay/everypay-sdk-go/pkg/model"
)

// State identifies where the session is in the payment protocol. Exactly one
// state is active at a time.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateAwaitingAuthorization
	StateAuthorizing
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateAuthorizing:
		return "authorizing"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// pendingRequest is the single outstanding caller continuation pair. It is
// consumed exactly once, by exactly one of the success, failure, or
// cancellation paths.
type pendingRequest struct {
	onSuccess func(*model.PaymentResult)
	onFailure func(error)
}

// outcome parks the authorize result between requesting sheet closure and the
// dismissal-complete callback that delivers it.
type outcome struct {
	result *model.PaymentResult
	err    error
}

// Session orchestrates one payment attempt at a time. Its complete mutable
// surface is {state, pctx, pending, parked outcome}, guarded by one mutex and
// reset on every terminal transition. Every external callback gates on the
// current state and pending-request liveness; a stale or duplicate callback
// is logged and ignored, never resolved twice.
type Session struct {
	backend backend.Service
	sheet   Sheet
	log     *zap.Logger

	mu       sync.Mutex
	state    State
	pctx     *Context
	cfg      *config.Config
	baseCtx  context.Context
	pending  *pendingRequest
	linkData *model.LinkData
	parked   *outcome
}

// NewSession builds a session around a backend service and a payment sheet.
func NewSession(svc backend.Service, sheet Sheet) *Session {
	return &Session{
		backend: svc,
		sheet:   sheet,
		log:     zap.L(),
		state:   StateIdle,
	}
}

// State returns the current orchestrator state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InProgress reports whether a payment attempt is currently outstanding.
func (s *Session) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// StartPayment begins a payment attempt. Exactly one of onSuccess/onFailure
// is invoked exactly once per call. A call made while another attempt is in
// flight fails immediately with payment_in_progress and does not disturb the
// in-flight attempt.
func (s *Session) StartPayment(ctx context.Context, cfg *config.Config, onSuccess func(*model.PaymentResult), onFailure func(error)) {
	if onSuccess == nil {
		onSuccess = func(*model.PaymentResult) {}
	}
	if onFailure == nil {
		onFailure = func(error) {}
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		s.log.Warn("rejecting payment start: another attempt is in progress")
		onFailure(model.NewInProgressError())
		return
	}

	if err := cfg.Validate(); err != nil {
		s.mu.Unlock()
		onFailure(err)
		return
	}
	pctx, err := NewContext(cfg)
	if err != nil {
		s.mu.Unlock()
		onFailure(err)
		return
	}

	s.pending = &pendingRequest{onSuccess: onSuccess, onFailure: onFailure}
	s.pctx = &pctx
	s.cfg = cfg
	s.baseCtx = ctx
	s.state = StateInitializing
	s.mu.Unlock()

	s.log.Info("payment attempt started",
		zap.String("account", cfg.AccountName),
		zap.String("amount", cfg.Amount.StringFixed(2)),
		zap.String("currency", cfg.CurrencyCode))

	go s.runInitialization()
}

// runInitialization performs the Initializing phase on its own goroutine:
// optional merchant identifier lookup, backend init (unless the caller's
// backend already initialized the session), optional link data fetch, then
// sheet presentation.
func (s *Session) runInitialization() {
	pctx, cfg, ok := s.snapshot(StateInitializing)
	if !ok {
		return
	}

	if pctx.MerchantID == "" && pctx.PaymentMethodsURL != "" {
		callCtx, cancel := context.WithTimeout(s.base(), cfg.Timeouts.Fetch)
		ident, err := s.backend.FetchIdentifier(callCtx, pctx.AccountName, pctx.APIUsername, pctx.Amount, pctx.PaymentMethodsURL)
		cancel()
		if err != nil {
			s.failAttempt(err)
			return
		}
		if !ident.Found {
			s.failAttempt(model.NewValidationError("wallet payments are not available for this account"))
			return
		}
		if !s.update(StateInitializing, func(c Context) Context {
			return c.WithMerchantIdentifier(ident.Identifier)
		}) {
			return
		}
		pctx, cfg, ok = s.snapshot(StateInitializing)
		if !ok {
			return
		}
	}

	if !pctx.AlreadyInitialized {
		callCtx, cancel := context.WithTimeout(s.base(), cfg.Timeouts.Initialize)
		res, err := s.backend.Initialize(callCtx, cfg)
		cancel()
		if err != nil {
			s.failAttempt(err)
			return
		}
		if !s.update(StateInitializing, func(c Context) Context {
			return c.WithInitResult(res)
		}) {
			return
		}
		pctx, cfg, ok = s.snapshot(StateInitializing)
		if !ok {
			return
		}
	}

	// Link data enriches the result for recurring/link flows; a failed fetch
	// never fails the attempt.
	if pctx.PaymentDetailURL != "" && pctx.AccessToken != "" {
		callCtx, cancel := context.WithTimeout(s.base(), cfg.Timeouts.Fetch)
		data, err := s.backend.FetchLinkData(callCtx, pctx.PaymentDetailURL, pctx.PaymentReference, pctx.AccessToken)
		cancel()
		if err != nil {
			s.log.Warn("link data fetch failed", zap.Error(err))
		} else {
			s.mu.Lock()
			if s.state == StateInitializing && s.pending != nil {
				s.linkData = data
			}
			s.mu.Unlock()
		}
	}

	s.presentSheet()
}

// presentSheet gates on the full context invariant set and transitions to
// AwaitingAuthorization before handing control to the native sheet.
func (s *Session) presentSheet() {
	s.mu.Lock()
	if s.pending == nil || s.state != StateInitializing {
		s.mu.Unlock()
		s.log.Debug("skipping sheet presentation: attempt no longer initializing")
		return
	}
	if !s.pctx.ValidForStartingPayment() {
		s.mu.Unlock()
		s.failAttempt(model.NewValidationError("payment context is incomplete after initialization"))
		return
	}
	pctx := *s.pctx
	s.state = StateAwaitingAuthorization
	s.mu.Unlock()

	req := Request{
		MerchantID:   pctx.MerchantID,
		CountryCode:  pctx.CountryCode,
		CurrencyCode: pctx.CurrencyCode,
		SummaryItems: []SummaryItem{{Label: pctx.PaymentLabel, Amount: pctx.Amount}},
	}
	cb := Callbacks{
		Authorized: s.handleAuthorized,
		Cancelled:  s.handleCancelled,
		Dismissed:  s.handleDismissed,
	}

	s.log.Info("presenting payment sheet",
		zap.String("merchant_id", pctx.MerchantID),
		zap.String("payment_reference", pctx.PaymentReference))

	if err := s.sheet.Present(req, cb); err != nil {
		s.mu.Lock()
		stillOurs := s.pending != nil && s.state == StateAwaitingAuthorization
		s.mu.Unlock()
		if stillOurs {
			s.failAttempt(model.NewValidationError("payment sheet presentation failed: " + err.Error()))
		}
	}
}

// handleAuthorized is the sheet's "user authorized with token" callback.
func (s *Session) handleAuthorized(token Token) {
	s.mu.Lock()
	if s.pending == nil || s.state != StateAwaitingAuthorization {
		st := s.state
		s.mu.Unlock()
		s.log.Warn("ignoring authorization callback", zap.Stringer("state", st))
		return
	}
	s.state = StateAuthorizing
	s.mu.Unlock()

	s.log.Info("wallet token received", zap.String("transaction_id", token.TransactionID))
	go s.runAuthorization(token)
}

// runAuthorization submits the token, parks the outcome, and asks the sheet
// to close. The dismissal-complete callback delivers the parked outcome; the
// sheet owns a modal presentation that must come down before the caller is
// resolved.
func (s *Session) runAuthorization(token Token) {
	pctx, cfg, ok := s.snapshot(StateAuthorizing)
	if !ok {
		return
	}

	if len(token.PaymentData) == 0 {
		s.park(&outcome{err: model.NewValidationError("wallet token carries no payment data")})
		return
	}

	callCtx, cancel := context.WithTimeout(s.base(), cfg.Timeouts.Authorize)
	res, err := s.backend.Authorize(callCtx, token.PaymentData, pctx.PaymentReference, pctx.AuthorizePaymentURL, pctx.AccessToken)
	cancel()

	switch {
	case err != nil:
		s.park(&outcome{err: err})
	case res.Verdict == model.VerdictApproved:
		s.mu.Lock()
		linkData := s.linkData
		s.mu.Unlock()
		s.park(&outcome{result: &model.PaymentResult{
			PaymentReference:  res.PaymentReference,
			Verdict:           res.Verdict,
			AuthorizeResponse: res.Raw,
			InitResponse:      pctx.InitResponse,
			LinkData:          linkData,
		}})
	default:
		s.park(&outcome{err: model.NewDeclinedError(res.PaymentState)})
	}
}

// park stores the attempt outcome, moves to Finalizing, and requests sheet
// closure with the matching status.
func (s *Session) park(o *outcome) {
	s.mu.Lock()
	if s.pending == nil || s.state != StateAuthorizing {
		s.mu.Unlock()
		s.log.Warn("dropping authorize outcome: attempt no longer authorizing")
		return
	}
	s.parked = o
	s.state = StateFinalizing
	s.mu.Unlock()

	status := StatusSuccess
	if o.err != nil {
		status = StatusFailure
	}
	s.sheet.Close(status)
}

// handleCancelled is the sheet's "user dismissed without authorizing"
// callback. It can race with a dismissal after a completed authorization, so
// it is a no-op once the pending request is consumed or the attempt has moved
// past AwaitingAuthorization.
func (s *Session) handleCancelled() {
	s.mu.Lock()
	if s.pending == nil || s.state != StateAwaitingAuthorization {
		st := s.state
		s.mu.Unlock()
		s.log.Debug("ignoring cancellation callback", zap.Stringer("state", st))
		return
	}
	pending := s.pending
	s.reset()
	s.mu.Unlock()

	s.log.Info("payment cancelled by user")
	pending.onFailure(model.NewCancelledError())
}

// handleDismissed is the sheet's dismissal-complete callback: the final
// transition that resolves the pending request with the parked outcome.
// Duplicate dismissals find the pending request consumed and are no-ops.
func (s *Session) handleDismissed() {
	s.mu.Lock()
	if s.pending == nil || s.state != StateFinalizing || s.parked == nil {
		st := s.state
		s.mu.Unlock()
		s.log.Debug("ignoring dismissal callback", zap.Stringer("state", st))
		return
	}
	pending := s.pending
	parked := s.parked
	s.reset()
	s.mu.Unlock()

	if parked.err != nil {
		s.log.Info("payment attempt failed", zap.Error(parked.err))
		pending.onFailure(parked.err)
		return
	}
	s.log.Info("payment attempt succeeded",
		zap.String("payment_reference", parked.result.PaymentReference))
	pending.onSuccess(parked.result)
}

// failAttempt resolves the pending request's failure continuation and resets
// the session. Used on every pre-authorization failure path.
func (s *Session) failAttempt(err error) {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		s.log.Warn("dropping failure for consumed attempt", zap.Error(err))
		return
	}
	pending := s.pending
	s.reset()
	s.mu.Unlock()

	s.log.Info("payment attempt failed", zap.Error(err))
	pending.onFailure(err)
}

// reset clears the session's entire mutable surface. Caller holds s.mu.
func (s *Session) reset() {
	s.state = StateIdle
	s.pctx = nil
	s.cfg = nil
	s.baseCtx = nil
	s.pending = nil
	s.linkData = nil
	s.parked = nil
}

// snapshot returns a copy of the live context and config when the attempt is
// still in the wanted state; otherwise the phase goroutine must stop.
func (s *Session) snapshot(want State) (Context, *config.Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.state != want || s.pctx == nil {
		return Context{}, nil, false
	}
	return *s.pctx, s.cfg, true
}

// update applies fn to the live context when the attempt is still in the
// wanted state. Returns false when the attempt has moved on.
func (s *Session) update(want State, fn func(Context) Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.state != want || s.pctx == nil {
		return false
	}
	next := fn(*s.pctx)
	s.pctx = &next
	return true
}

// base returns the attempt's caller-supplied context, falling back to
// Background when the attempt was already reset.
func (s *Session) base() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

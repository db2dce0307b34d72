package sdk

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/everypay/everypay-sdk-go/pkg/backend"
	"github.com/everypay/everypay-sdk-go/pkg/config"
	"github.com/everypay/everypay-sdk-go/pkg/model"
	"github.com/everypay/everypay-sdk-go/pkg/payment"
)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// SDK drives wallet payments through a payment sheet and an EveryPay-style
// backend. One SDK instance runs at most one payment attempt at a time.
type SDK struct {
	session *payment.Session
	sheet   payment.Sheet

	mu        sync.RWMutex
	onSuccess []func(*model.PaymentResult)
	onFailed  []func(error)
}

// Option configures the SDK.
type Option func(*options)

type options struct {
	httpClient *http.Client
	service    backend.Service
}

// WithHTTPClient sets the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBackend replaces the backend service entirely. Used for tests and for
// merchants with a non-standard API gateway.
func WithBackend(svc backend.Service) Option {
	return func(o *options) { o.service = svc }
}

// New builds an SDK around the given payment sheet.
func New(sheet payment.Sheet, opts ...Option) *SDK {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	svc := o.service
	if svc == nil {
		svc = backend.NewClient(o.httpClient)
	}
	return &SDK{
		session: payment.NewSession(svc, sheet),
		sheet:   sheet,
	}
}

// CanMakePayments reports whether the sheet can present wallet payments on
// this device/environment.
func (s *SDK) CanMakePayments() bool {
	return s.sheet.CanMakePayments()
}

// InProgress reports whether a payment attempt is currently outstanding.
func (s *SDK) InProgress() bool {
	return s.session.InProgress()
}

// OnPaymentSuccess registers a listener fired whenever any attempt succeeds,
// in addition to the per-call continuation.
func (s *SDK) OnPaymentSuccess(f func(*model.PaymentResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSuccess = append(s.onSuccess, f)
}

// OnPaymentFailed registers a listener fired whenever any attempt fails or is
// cancelled. Listeners branch on model.CodeOf to tell cancellation apart.
func (s *SDK) OnPaymentFailed(f func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailed = append(s.onFailed, f)
}

// StartPayment begins a payment attempt, callback style. Exactly one of
// onSuccess/onFailure fires exactly once per call. Registered listeners fire
// first, then the per-call continuation.
func (s *SDK) StartPayment(ctx context.Context, cfg *config.Config, onSuccess func(*model.PaymentResult), onFailure func(error)) {
	s.session.StartPayment(ctx, cfg,
		func(res *model.PaymentResult) {
			s.mu.RLock()
			listeners := append([]func(*model.PaymentResult){}, s.onSuccess...)
			s.mu.RUnlock()
			for _, f := range listeners {
				f(res)
			}
			if onSuccess != nil {
				onSuccess(res)
			}
		},
		func(err error) {
			s.mu.RLock()
			listeners := append([]func(error){}, s.onFailed...)
			s.mu.RUnlock()
			for _, f := range listeners {
				f(err)
			}
			if onFailure != nil {
				onFailure(err)
			}
		},
	)
}

// Pay begins a payment attempt and blocks until its terminal resolution,
// promise style.
func (s *SDK) Pay(ctx context.Context, cfg *config.Config) (*model.PaymentResult, error) {
	type resolution struct {
		result *model.PaymentResult
		err    error
	}
	done := make(chan resolution, 1)
	s.StartPayment(ctx, cfg,
		func(res *model.PaymentResult) { done <- resolution{result: res} },
		func(err error) { done <- resolution{err: err} },
	)
	r := <-done
	return r.result, r.err
}

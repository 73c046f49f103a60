package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/retaildesk/internal/cart"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/go-playground/validator/v10"
)

const (
	opSubmit = "submit"
	opVerify = "verify"
)

// Backend is the slice of the REST client the machine drives.
type Backend interface {
	Checkout(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, saleID int64, md5 string) (*types.VerifyPaymentResponse, error)
}

// Refresher reloads cached figures after a sale settles.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Recorder receives transition and latency observations.
type Recorder interface {
	Transition(from, to string)
	ObserveDuration(operation string, duration time.Duration)
	IncFailure(operation string)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string) {}

func (nopRecorder) ObserveDuration(string, time.Duration) {}

func (nopRecorder) IncFailure(string) {}

// SubmitInput carries everything besides the cart lines that a sale needs.
type SubmitInput struct {
	CustomerID    int64               `validate:"required,gt=0"`
	SoldByID      int64               `validate:"required,gt=0"`
	PaymentMethod enums.PaymentMethod `validate:"required"`
}

// Outcome is a point-in-time copy of the machine.
type Outcome struct {
	State   enums.CheckoutState
	Sale    *types.Sale
	Session PaymentSession
	Message string
	Err     error
}

type Options struct {
	Cart      *cart.Cart
	Backend   Backend
	Refresher Refresher
	Metrics   Recorder
	Logger    *logger.Logger
	// QRTTL bounds how long a QR payment may stay unverified. Zero disables expiry.
	QRTTL time.Duration
	Now   func() time.Time
}

// Machine runs one checkout at a time over a cart.
type Machine struct {
	cart      *cart.Cart
	backend   Backend
	refresher Refresher
	metrics   Recorder
	logg      *logger.Logger
	validate  *validator.Validate
	qrTTL     time.Duration
	now       func() time.Time

	submitting atomic.Bool
	verifying  atomic.Bool

	mu      sync.Mutex
	state   enums.CheckoutState
	session PaymentSession
	sale    *types.Sale
	message string
	lastErr error
}

func NewMachine(opts Options) (*Machine, error) {
	if opts.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if opts.QRTTL < 0 {
		return nil, fmt.Errorf("qr ttl must not be negative")
	}
	m := &Machine{
		cart:      opts.Cart,
		backend:   opts.Backend,
		refresher: opts.Refresher,
		metrics:   opts.Metrics,
		logg:      opts.Logger,
		validate:  validator.New(),
		qrTTL:     opts.QRTTL,
		now:       opts.Now,
		state:     enums.CheckoutStateBuilding,
		session:   PaymentSession{State: enums.PaymentSessionIdle},
	}
	if m.metrics == nil {
		m.metrics = nopRecorder{}
	}
	if m.logg == nil {
		m.logg = logger.Nop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

func (m *Machine) Cart() *cart.Cart {
	return m.cart
}

func (m *Machine) State() enums.CheckoutState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomeLocked()
}

// Submit sends the cart to the backend. Sync payment methods complete on
// success; QR leaves the machine awaiting verification.
func (m *Machine) Submit(ctx context.Context, in SubmitInput) (Outcome, error) {
	if !m.submitting.CompareAndSwap(false, true) {
		return m.Outcome(), pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer m.submitting.Store(false)

	m.mu.Lock()
	if m.state != enums.CheckoutStateBuilding {
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, stateConflict("submit", out.State)
	}
	if err := m.validateInput(in); err != nil {
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, err
	}
	if m.cart.IsEmpty() {
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, pkgerrors.New(pkgerrors.CodeEmptyCart, "add at least one product before checkout")
	}

	deferred := in.PaymentMethod.IsDeferred()
	items := m.cart.OrderLines()
	m.lastErr = nil
	m.message = ""
	m.transitionLocked(ctx, enums.CheckoutStateSubmitting)
	if deferred {
		m.session = PaymentSession{State: enums.PaymentSessionAwaitingQR, CreatedAt: m.now()}
	}
	m.mu.Unlock()

	req := types.CheckoutRequest{
		CustomerID:    in.CustomerID,
		Items:         items,
		SoldBy:        in.SoldByID,
		PaymentMethod: in.PaymentMethod,
	}
	start := time.Now()
	resp, err := m.backend.Checkout(ctx, req)
	m.metrics.ObserveDuration(opSubmit, time.Since(start))

	if err == nil && deferred && (resp == nil || !resp.AwaitsPayment()) {
		err = pkgerrors.New(pkgerrors.CodeDependency, "checkout response missing payment payload")
	}
	if err == nil && resp == nil {
		err = pkgerrors.New(pkgerrors.CodeDependency, "empty checkout response")
	}

	m.mu.Lock()
	if err != nil {
		m.metrics.IncFailure(opSubmit)
		m.lastErr = err
		m.message = pkgerrors.UserMessage(err)
		if deferred {
			m.resolveSessionLocked(enums.PaymentSessionFailed)
		}
		m.transitionLocked(ctx, enums.CheckoutStateFailed)
		out := m.outcomeLocked()
		m.mu.Unlock()
		m.logg.Error(ctx, "checkout submit failed", err)
		return out, err
	}

	sale := resp.Sale
	m.sale = &sale
	ctx = m.logg.WithSaleID(ctx, sale.ID)
	if deferred {
		created := m.session.CreatedAt
		m.session = PaymentSession{
			State:          enums.PaymentSessionAwaitingVerification,
			SaleID:         sale.ID,
			QRPayload:      resp.QRString,
			TransactionRef: resp.MD5,
			CreatedAt:      created,
		}
		if m.qrTTL > 0 {
			m.session.ExpiresAt = created.Add(m.qrTTL)
		}
		m.transitionLocked(ctx, enums.CheckoutStateAwaitingVerification)
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, nil
	}

	m.cart.Clear()
	m.transitionLocked(ctx, enums.CheckoutStateCompleted)
	out := m.outcomeLocked()
	m.mu.Unlock()

	m.refresh(ctx)
	return out, nil
}

// Verify asks the backend whether the pending QR payment settled. Once the
// checkout has an outcome further calls return it without contacting the
// backend.
func (m *Machine) Verify(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	if m.state.IsTerminal() {
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, nil
	}
	if m.state != enums.CheckoutStateAwaitingVerification {
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, stateConflict("verify", out.State)
	}
	if !m.verifying.CompareAndSwap(false, true) {
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, pkgerrors.New(pkgerrors.CodeConflict, "verification already in progress")
	}
	defer m.verifying.Store(false)

	ctx = m.logg.WithSaleID(ctx, m.session.SaleID)
	if m.session.Expired(m.now()) {
		err := pkgerrors.New(pkgerrors.CodeStateConflict, "payment session expired").
			WithDetails(map[string]any{"expires_at": m.session.ExpiresAt})
		m.lastErr = err
		m.message = err.Message()
		m.resolveSessionLocked(enums.PaymentSessionCancelled)
		m.transitionLocked(ctx, enums.CheckoutStateCancelled)
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, err
	}
	saleID, ref := m.session.SaleID, m.session.TransactionRef
	m.mu.Unlock()

	start := time.Now()
	resp, err := m.backend.VerifyPayment(ctx, saleID, ref)
	m.metrics.ObserveDuration(opVerify, time.Since(start))
	if err == nil && resp == nil {
		err = pkgerrors.New(pkgerrors.CodeDependency, "empty verification response")
	}

	m.mu.Lock()
	if err != nil {
		// The payment may still settle; the operator can verify again.
		m.metrics.IncFailure(opVerify)
		m.lastErr = err
		m.message = pkgerrors.UserMessage(err)
		out := m.outcomeLocked()
		m.mu.Unlock()
		m.logg.Warn(ctx, "payment verification request failed")
		return out, err
	}

	if !resp.Status {
		msg := resp.Message
		if msg == "" {
			msg = "payment not confirmed"
		}
		failure := pkgerrors.New(pkgerrors.CodePaymentFailed, msg).
			WithDetails(map[string]any{"sale_id": saleID})
		m.lastErr = failure
		m.message = msg
		m.resolveSessionLocked(enums.PaymentSessionFailed)
		m.transitionLocked(ctx, enums.CheckoutStateVerifyFailed)
		out := m.outcomeLocked()
		m.mu.Unlock()
		return out, failure
	}

	if resp.Sale != nil {
		sale := *resp.Sale
		m.sale = &sale
	}
	m.message = resp.Message
	m.lastErr = nil
	m.resolveSessionLocked(enums.PaymentSessionVerified)
	m.cart.Clear()
	m.transitionLocked(ctx, enums.CheckoutStateVerified)
	out := m.outcomeLocked()
	m.mu.Unlock()

	m.refresh(ctx)
	return out, nil
}

// Cancel abandons the current checkout locally. While building it discards
// the cart; while awaiting verification it resolves the payment as cancelled.
func (m *Machine) Cancel(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case enums.CheckoutStateBuilding:
		m.cart.Clear()
	case enums.CheckoutStateSubmitting:
		return m.outcomeLocked(), stateConflict("cancel", m.state)
	case enums.CheckoutStateAwaitingVerification:
		if m.verifying.Load() {
			return m.outcomeLocked(), pkgerrors.New(pkgerrors.CodeConflict, "verification already in progress")
		}
		m.message = "payment cancelled"
		m.resolveSessionLocked(enums.PaymentSessionCancelled)
		m.transitionLocked(m.logg.WithSaleID(ctx, m.session.SaleID), enums.CheckoutStateCancelled)
	}
	return m.outcomeLocked(), nil
}

// Retry returns a failed or cancelled checkout to building with its lines intact.
func (m *Machine) Retry(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case enums.CheckoutStateFailed, enums.CheckoutStateVerifyFailed, enums.CheckoutStateCancelled:
	default:
		return m.outcomeLocked(), stateConflict("retry", m.state)
	}
	m.resetLocked(ctx)
	return m.outcomeLocked(), nil
}

// Reset starts a new sale after any outcome. The cart is emptied.
func (m *Machine) Reset(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == enums.CheckoutStateSubmitting || m.state == enums.CheckoutStateAwaitingVerification {
		return m.outcomeLocked(), stateConflict("reset", m.state)
	}
	m.cart.Clear()
	if m.state != enums.CheckoutStateBuilding {
		m.resetLocked(ctx)
	}
	return m.outcomeLocked(), nil
}

func (m *Machine) resetLocked(ctx context.Context) {
	m.sale = nil
	m.message = ""
	m.lastErr = nil
	m.session = PaymentSession{State: enums.PaymentSessionIdle}
	m.transitionLocked(ctx, enums.CheckoutStateBuilding)
}

func (m *Machine) transitionLocked(ctx context.Context, to enums.CheckoutState) {
	from := m.state
	m.state = to
	if to == enums.CheckoutStateBuilding {
		m.cart.Thaw()
	} else {
		m.cart.Freeze()
	}
	m.metrics.Transition(from.String(), to.String())

	ctx = m.logg.WithCheckoutState(ctx, to.String())
	m.logg.Info(m.logg.WithField(ctx, "from_state", from.String()), "checkout transition")
}

func (m *Machine) resolveSessionLocked(state enums.PaymentSessionState) {
	m.session.State = state
	m.session.QRPayload = ""
	m.session.TransactionRef = ""
}

func (m *Machine) outcomeLocked() Outcome {
	out := Outcome{
		State:   m.state,
		Session: m.session,
		Message: m.message,
		Err:     m.lastErr,
	}
	if m.sale != nil {
		sale := *m.sale
		out.Sale = &sale
	}
	return out
}

func (m *Machine) validateInput(in SubmitInput) error {
	if err := m.validate.Struct(in); err != nil {
		details := map[string]string{}
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout input").WithDetails(details)
	}
	if !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", in.PaymentMethod))
	}
	return nil
}

func (m *Machine) refresh(ctx context.Context) {
	if m.refresher == nil {
		return
	}
	if err := m.refresher.Refresh(ctx); err != nil {
		m.logg.Error(ctx, "refresh after checkout failed", err)
	}
}

func stateConflict(op string, state enums.CheckoutState) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s while %s", op, state)).
		WithDetails(map[string]any{"state": state.String()})
}

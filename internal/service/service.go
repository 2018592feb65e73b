package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/repository"
	"order-tracking-service/internal/session"
)

// OrderSource is the remote order API.
type OrderSource interface {
	ListOrders(ctx context.Context, token string) ([]model.Order, error)
	GetOrder(ctx context.Context, token, leadID string) (*model.Order, error)
	GetEligibility(ctx context.Context, token, leadID string) (*model.Eligibility, error)
	ChangeAddress(ctx context.Context, token, leadID string, req model.ChangeRequest) (*model.Order, error)
	ChangeDeliveryDate(ctx context.Context, token, leadID string, req model.ChangeRequest) (*model.Order, error)
	Document(ctx context.Context, token, leadID string, kind lifecycle.DocumentKind) ([]byte, error)
}

// OrderRepository is the status mirror.
type OrderRepository interface {
	Create(ctx context.Context, o *model.TrackedOrder) error
	FindByLeadID(ctx context.Context, leadID string) (*model.TrackedOrder, error)
	ApplyStatus(ctx context.Context, leadID, status string, record model.StatusRecord) error
	UpdateDelivery(ctx context.Context, leadID, address string, expected *time.Time) error
	AppendChange(ctx context.Context, leadID string, rec model.ChangeRecord) error
	FindAll(ctx context.Context) ([]*model.TrackedOrder, error)
	FindByStatus(ctx context.Context, status string) ([]*model.TrackedOrder, error)
	FindByCustomerID(ctx context.Context, customerID string) ([]*model.TrackedOrder, error)
}

var (
	ErrForbidden       = errors.New("you cannot access another customer's order")
	ErrInvalidFilter   = errors.New("unknown status filter")
	ErrInvalidDocument = errors.New("unknown document")
	// ErrChangeNotAllowed is wrapped by ChangeNotAllowedError.
	ErrChangeNotAllowed = errors.New("order can no longer be changed")
)

// ChangeNotAllowedError explains why an edit was refused.
type ChangeNotAllowedError struct {
	Reason string
}

func (e *ChangeNotAllowedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrChangeNotAllowed, e.Reason)
}

func (e *ChangeNotAllowedError) Unwrap() error {
	return ErrChangeNotAllowed
}

const minAddressLength = 10

type OrderService struct {
	source   OrderSource
	repo     OrderRepository
	hub      *Hub
	validate *validator.Validate
	window   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewOrderService(source OrderSource, repo OrderRepository, hub *Hub, window time.Duration, log *zap.Logger) *OrderService {
	if window <= 0 {
		window = lifecycle.DefaultChangeWindow
	}
	return &OrderService{
		source:   source,
		repo:     repo,
		hub:      hub,
		validate: validator.New(),
		window:   window,
		now:      time.Now,
		log:      log,
	}
}

// ListOrders returns the customer's orders, optionally filtered. Stats are
// computed over every order, before filtering. The filter is "all" (or
// empty), "active", or an exact stage; order_placed and pending are distinct
// filters.
func (s *OrderService) ListOrders(ctx context.Context, sess *session.Session, filter string) (*dto.OrderList, error) {
	match, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}

	orders, err := s.source.ListOrders(ctx, sess.Token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &dto.OrderList{Orders: []dto.OrderSummary{}}
	stages := make([]lifecycle.Stage, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		stage := lifecycle.Normalize(o.Status)
		stages = append(stages, stage)
		if match(stage) {
			out.Orders = append(out.Orders, summarize(o, nil, s.window, now))
		}
	}
	out.Stats = computeStats(stages)
	return out, nil
}

func parseFilter(filter string) (func(lifecycle.Stage) bool, error) {
	f := strings.ToLower(strings.TrimSpace(filter))
	switch f {
	case "", "all":
		return func(lifecycle.Stage) bool { return true }, nil
	case "active":
		return func(st lifecycle.Stage) bool { return !st.IsTerminal() }, nil
	}
	want := lifecycle.Stage(f)
	if !want.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}
	return func(st lifecycle.Stage) bool { return st == want }, nil
}

// fetch loads the order and its change eligibility concurrently.
func (s *OrderService) fetch(ctx context.Context, sess *session.Session, leadID string) (*model.Order, *model.Eligibility, error) {
	var (
		order *model.Order
		elig  *model.Eligibility
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		order, err = s.source.GetOrder(gctx, sess.Token, leadID)
		return err
	})
	g.Go(func() error {
		var err error
		elig, err = s.source.GetEligibility(gctx, sess.Token, leadID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := authorize(sess, order.CustomerID); err != nil {
		return nil, nil, err
	}
	return order, elig, nil
}

// authorize guards orders read from the backend, which checks the forwarded
// token itself; an order without an owner passes.
func authorize(sess *session.Session, customerID string) error {
	if customerID == "" || customerID == sess.UserID || sess.IsAdmin() {
		return nil
	}
	return ErrForbidden
}

// authorizeMirror guards mirrored orders. Nothing else checks them, so an
// order without an owner is visible to admins only.
func authorizeMirror(sess *session.Session, customerID string) error {
	if sess.IsAdmin() || (customerID != "" && customerID == sess.UserID) {
		return nil
	}
	return ErrForbidden
}

// GetOrder returns the full order view.
func (s *OrderService) GetOrder(ctx context.Context, sess *session.Session, leadID string) (*dto.OrderView, error) {
	order, elig, err := s.fetch(ctx, sess, leadID)
	if err != nil {
		return nil, err
	}
	return orderView(order, elig, s.window, s.now()), nil
}

// Timeline returns only the timeline steps.
func (s *OrderService) Timeline(ctx context.Context, sess *session.Session, leadID string) ([]lifecycle.Step, error) {
	order, err := s.source.GetOrder(ctx, sess.Token, leadID)
	if err != nil {
		return nil, err
	}
	if err := authorize(sess, order.CustomerID); err != nil {
		return nil, err
	}
	return lifecycle.Timeline(lifecycle.Normalize(order.Status), order.OrderDate), nil
}

// ChangeEligibility reports whether the address or date may still change.
func (s *OrderService) ChangeEligibility(ctx context.Context, sess *session.Session, leadID string) (*dto.ChangeEligibility, error) {
	order, elig, err := s.fetch(ctx, sess, leadID)
	if err != nil {
		return nil, err
	}
	stage := lifecycle.Normalize(order.Status)
	placedAt := elig.OrderPlacedAt
	if placedAt.IsZero() {
		placedAt = order.OrderDate
	}
	return &dto.ChangeEligibility{
		LeadID:                    order.LeadID,
		Stage:                     stage,
		OrderPlacedAt:             placedAt,
		ChangeWindow:              changeWindow(stage, order, elig, s.window, s.now()),
		AddressChangeHistory:      nonNil(elig.AddressChangeHistory),
		DeliveryDateChangeHistory: nonNil(elig.DeliveryDateChangeHistory),
	}, nil
}

// Countdown streams the change window once per second until it closes or
// ctx ends.
func (s *OrderService) Countdown(ctx context.Context, sess *session.Session, leadID string) (<-chan lifecycle.ChangeWindow, error) {
	order, elig, err := s.fetch(ctx, sess, leadID)
	if err != nil {
		return nil, err
	}
	stage := lifecycle.Normalize(order.Status)

	if !elig.CanMakeChanges {
		out := make(chan lifecycle.ChangeWindow, 1)
		out <- changeWindow(stage, order, elig, s.window, s.now())
		close(out)
		return out, nil
	}

	placedAt := elig.OrderPlacedAt
	if placedAt.IsZero() {
		placedAt = order.OrderDate
	}
	return lifecycle.Countdown(ctx, stage, placedAt, s.window, s.now), nil
}

// ChangeAddress replaces the delivery address while the change window is
// open.
func (s *OrderService) ChangeAddress(ctx context.Context, sess *session.Session, leadID string, req model.ChangeRequest) (*dto.OrderView, error) {
	req.NewValue = strings.Join(strings.Fields(req.NewValue), " ")
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateChange(req); err != nil {
		return nil, err
	}
	if len([]rune(req.NewValue)) < minAddressLength {
		return nil, &backend.ValidationError{Message: fmt.Sprintf("address must be at least %d characters", minAddressLength)}
	}

	return s.applyChange(ctx, sess, leadID, req, changeAddress, s.source.ChangeAddress)
}

// ChangeDeliveryDate moves the expected delivery date. The new date must be
// a calendar date (YYYY-MM-DD or RFC 3339) after today.
func (s *OrderService) ChangeDeliveryDate(ctx context.Context, sess *session.Session, leadID string, req model.ChangeRequest) (*dto.OrderView, error) {
	req.NewValue = strings.TrimSpace(req.NewValue)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateChange(req); err != nil {
		return nil, err
	}

	date, err := parseDate(req.NewValue)
	if err != nil {
		return nil, &backend.ValidationError{Message: "delivery date must be formatted as YYYY-MM-DD"}
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !date.After(today) {
		return nil, &backend.ValidationError{Message: "delivery date must be in the future"}
	}
	req.NewValue = date.Format(time.DateOnly)

	return s.applyChange(ctx, sess, leadID, req, changeDeliveryDate, s.source.ChangeDeliveryDate)
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (s *OrderService) validateChange(req model.ChangeRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &backend.ValidationError{Message: fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()[:1])+fe.Field()[1:], fe.Tag())}
		}
		return &backend.ValidationError{Message: err.Error()}
	}
	return nil
}

type changeFunc func(ctx context.Context, token, leadID string, req model.ChangeRequest) (*model.Order, error)

type changeField struct {
	name    string
	current func(o *model.Order) string
}

var (
	changeAddress = changeField{
		name:    "address",
		current: func(o *model.Order) string { return o.DeliveryAddress },
	}
	changeDeliveryDate = changeField{
		name: "delivery date",
		current: func(o *model.Order) string {
			if o.DeliveryExpectedDate == nil {
				return ""
			}
			return o.DeliveryExpectedDate.Format(time.DateOnly)
		},
	}
)

func (s *OrderService) applyChange(ctx context.Context, sess *session.Session, leadID string, req model.ChangeRequest, field changeField, change changeFunc) (*dto.OrderView, error) {
	order, elig, err := s.fetch(ctx, sess, leadID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cw := changeWindow(lifecycle.Normalize(order.Status), order, elig, s.window, now)
	if !cw.Allowed {
		return nil, &ChangeNotAllowedError{Reason: cw.Reason}
	}

	updated, err := change(ctx, sess.Token, leadID, req)
	if err != nil {
		return nil, err
	}

	s.mirrorChange(ctx, leadID, updated, model.ChangeRecord{
		OldValue:  field.current(order),
		NewValue:  req.NewValue,
		Reason:    req.Reason,
		ChangedAt: now,
		ChangedBy: sess.UserID,
	})

	s.log.Info("order change applied",
		zap.String("leadId", leadID),
		zap.String("field", field.name),
		zap.String("userId", sess.UserID),
	)
	return orderView(updated, elig, s.window, now), nil
}

// mirrorChange records the change in the mirror. The backend is the source
// of truth, so a failure here is only logged.
func (s *OrderService) mirrorChange(ctx context.Context, leadID string, updated *model.Order, rec model.ChangeRecord) {
	err := s.repo.AppendChange(ctx, leadID, rec)
	if err == nil {
		err = s.repo.UpdateDelivery(ctx, leadID, updated.DeliveryAddress, updated.DeliveryExpectedDate)
	}
	switch {
	case err == nil, errors.Is(err, repository.ErrNotFound):
	default:
		s.log.Warn("mirror change not recorded", zap.String("leadId", leadID), zap.Error(err))
	}
}

// Document downloads a document, refusing kinds the order's stage does not
// expose before asking the backend.
func (s *OrderService) Document(ctx context.Context, sess *session.Session, leadID string, kind lifecycle.DocumentKind) ([]byte, error) {
	order, err := s.source.GetOrder(ctx, sess.Token, leadID)
	if err != nil {
		return nil, err
	}
	if err := authorize(sess, order.CustomerID); err != nil {
		return nil, err
	}

	stage := lifecycle.Normalize(order.Status)
	available := false
	for _, k := range lifecycle.DocumentsWithArtifacts(stage, order.Artifacts) {
		if k == kind {
			available = true
			break
		}
	}
	if !available {
		return nil, fmt.Errorf("%w: %s is not issued while the order is %s", backend.ErrDocumentNotReady, kind.Title(), lifecycle.Label(stage))
	}

	pdf, err := s.source.Document(ctx, sess.Token, leadID, kind)
	if err != nil {
		s.log.Warn("document download failed",
			zap.String("leadId", leadID),
			zap.String("document", string(kind)),
			zap.Error(err),
		)
		return nil, err
	}
	return pdf, nil
}

// Tracking projects the mirrored state of an order without calling the
// backend.
func (s *OrderService) Tracking(ctx context.Context, sess *session.Session, leadID string) (*dto.TrackingView, error) {
	t, err := s.repo.FindByLeadID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMirror(sess, t.CustomerID); err != nil {
		return nil, err
	}
	v := trackingView(t, s.window, s.now())
	return &v, nil
}

// Watch subscribes to live status updates for an order. The first value is
// the current mirrored state. stop must be called when the caller is done.
func (s *OrderService) Watch(ctx context.Context, sess *session.Session, leadID string) (<-chan dto.TrackingView, func(), error) {
	current, err := s.Tracking(ctx, sess, leadID)
	if err != nil {
		return nil, nil, err
	}

	updates, stop := s.hub.Subscribe(leadID)
	out := make(chan dto.TrackingView, 1)
	out <- *current

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-updates:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, stop, nil
}

// AdminOrders lists mirrored orders, optionally by exact stage.
func (s *OrderService) AdminOrders(ctx context.Context, status string) ([]dto.TrackingView, error) {
	var (
		orders []*model.TrackedOrder
		err    error
	)
	if status == "" {
		orders, err = s.repo.FindAll(ctx)
	} else {
		st := lifecycle.Stage(strings.ToLower(status))
		if !st.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, status)
		}
		orders, err = s.repo.FindByStatus(ctx, string(st))
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]dto.TrackingView, 0, len(orders))
	for _, o := range orders {
		out = append(out, trackingView(o, s.window, now))
	}
	return out, nil
}

// AdminStats counts mirrored orders by stage.
func (s *OrderService) AdminStats(ctx context.Context) (dto.Stats, error) {
	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		return dto.Stats{}, err
	}
	stages := make([]lifecycle.Stage, 0, len(orders))
	for _, o := range orders {
		stages = append(stages, lifecycle.Normalize(o.Status))
	}
	return computeStats(stages), nil
}

// MyTracking lists every mirrored order of the session's customer.
func (s *OrderService) MyTracking(ctx context.Context, sess *session.Session) ([]dto.TrackingView, error) {
	orders, err := s.repo.FindByCustomerID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]dto.TrackingView, 0, len(orders))
	for _, o := range orders {
		out = append(out, trackingView(o, s.window, now))
	}
	return out, nil
}

// AdminSetStatus records a manual status correction on a mirrored order.
// Unlike backend events, a correction may move the order backwards.
func (s *OrderService) AdminSetStatus(ctx context.Context, sess *session.Session, leadID, status, reason string) (*dto.TrackingView, error) {
	st := lifecycle.Stage(strings.ToLower(strings.TrimSpace(status)))
	if !st.IsValid() {
		return nil, &backend.ValidationError{Message: fmt.Sprintf("unknown status %q", status)}
	}
	if _, err := s.repo.FindByLeadID(ctx, leadID); err != nil {
		return nil, err
	}

	err := s.applyStatusEvent(ctx, StatusEvent{
		LeadID:    leadID,
		Status:    string(st),
		Reason:    reason,
		ChangedBy: sess.UserID,
		ChangedAt: s.now().UTC(),
	}, true)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.FindByLeadID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	v := trackingView(t, s.window, s.now())
	return &v, nil
}

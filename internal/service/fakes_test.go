package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/repository"
)

type fakeSource struct {
	mu          sync.Mutex
	orders      map[string]*model.Order
	eligibility map[string]*model.Eligibility
	documents   map[lifecycle.DocumentKind][]byte
	docErr      error

	changes     []model.ChangeRequest
	docRequests int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		orders:      make(map[string]*model.Order),
		eligibility: make(map[string]*model.Eligibility),
		documents:   make(map[lifecycle.DocumentKind][]byte),
	}
}

func (f *fakeSource) put(o *model.Order, canChange bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.LeadID] = o
	f.eligibility[o.LeadID] = &model.Eligibility{OrderPlacedAt: o.OrderDate, CanMakeChanges: canChange}
}

func (f *fakeSource) setStatus(leadID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[leadID].Status = status
}

func (f *fakeSource) ListOrders(_ context.Context, _ string) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadID < out[j].LeadID })
	return out, nil
}

func (f *fakeSource) GetOrder(_ context.Context, _ string, leadID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[leadID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeSource) GetEligibility(_ context.Context, _ string, leadID string) (*model.Eligibility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.eligibility[leadID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeSource) ChangeAddress(_ context.Context, _ string, leadID string, req model.ChangeRequest) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, req)
	o := f.orders[leadID]
	o.AddressChangeHistory = append(o.AddressChangeHistory, model.ChangeRecord{OldValue: o.DeliveryAddress, NewValue: req.NewValue, Reason: req.Reason})
	o.DeliveryAddress = req.NewValue
	cp := *o
	return &cp, nil
}

func (f *fakeSource) ChangeDeliveryDate(_ context.Context, _ string, leadID string, req model.ChangeRequest) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, req)
	d, err := time.Parse(time.DateOnly, req.NewValue)
	if err != nil {
		return nil, &backend.ValidationError{Message: err.Error()}
	}
	o := f.orders[leadID]
	o.DeliveryExpectedDate = &d
	cp := *o
	return &cp, nil
}

func (f *fakeSource) Document(_ context.Context, _ string, _ string, kind lifecycle.DocumentKind) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docRequests++
	if f.docErr != nil {
		return nil, f.docErr
	}
	return f.documents[kind], nil
}

type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*model.TrackedOrder
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*model.TrackedOrder)}
}

func clone(o *model.TrackedOrder) *model.TrackedOrder {
	cp := *o
	cp.History = append([]model.StatusRecord(nil), o.History...)
	cp.Changes = append([]model.ChangeRecord(nil), o.Changes...)
	return &cp
}

func (r *fakeRepo) Create(_ context.Context, o *model.TrackedOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.LeadID]; ok {
		return nil
	}
	r.orders[o.LeadID] = clone(o)
	return nil
}

func (r *fakeRepo) FindByLeadID(_ context.Context, leadID string) (*model.TrackedOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[leadID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(o), nil
}

func (r *fakeRepo) ApplyStatus(_ context.Context, leadID, status string, record model.StatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range o.History {
		o.History[i].Current = false
	}
	record.Current = true
	o.History = append(o.History, record)
	o.Status = status
	return nil
}

func (r *fakeRepo) UpdateDelivery(_ context.Context, leadID, address string, expected *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	if address != "" {
		o.DeliveryAddress = address
	}
	if expected != nil {
		o.DeliveryExpectedDate = expected
	}
	return nil
}

func (r *fakeRepo) AppendChange(_ context.Context, leadID string, rec model.ChangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	o.Changes = append(o.Changes, rec)
	return nil
}

func (r *fakeRepo) FindAll(_ context.Context) ([]*model.TrackedOrder, error) {
	return r.filter(func(*model.TrackedOrder) bool { return true }), nil
}

func (r *fakeRepo) FindByStatus(_ context.Context, status string) ([]*model.TrackedOrder, error) {
	return r.filter(func(o *model.TrackedOrder) bool { return o.Status == status }), nil
}

func (r *fakeRepo) FindByCustomerID(_ context.Context, customerID string) ([]*model.TrackedOrder, error) {
	return r.filter(func(o *model.TrackedOrder) bool { return o.CustomerID == customerID }), nil
}

func (r *fakeRepo) filter(keep func(*model.TrackedOrder) bool) []*model.TrackedOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.TrackedOrder
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadID < out[j].LeadID })
	return out
}

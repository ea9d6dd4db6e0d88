package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
)

// MemoryManager keeps every entity in process. Transactions are serialised and
// run against a private copy of the state that replaces the shared one only on
// commit, so a failed transaction leaves nothing behind. It backs local
// development and the service tests.
type MemoryManager struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{state: newMemoryState()}
}

func (m *MemoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.NewInternalError("beginning transaction", err)
	}

	working := m.state.clone()
	if err := fn(ctx, &memoryTx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewInternalError("committing transaction", err)
	}

	m.state = working
	return nil
}

// SeedInventory registers inventory units as the inventory service would.
func (m *MemoryManager) SeedInventory(units ...domain.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, unit := range units {
		if unit.Version == 0 {
			unit.Version = 1
		}
		m.state.inventory[unit.ID] = unit.Clone()
	}
}

type memoryState struct {
	orders        map[string]domain.Order
	contracts     map[string]domain.Contract
	payments      map[string]domain.Payment
	distributions map[string]domain.Distribution
	inventory     map[string]domain.Inventory
	// inventory id -> distribution id
	reservations map[string]string
}

func newMemoryState() *memoryState {
	return &memoryState{
		orders:        make(map[string]domain.Order),
		contracts:     make(map[string]domain.Contract),
		payments:      make(map[string]domain.Payment),
		distributions: make(map[string]domain.Distribution),
		inventory:     make(map[string]domain.Inventory),
		reservations:  make(map[string]string),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for id, o := range s.orders {
		c.orders[id] = o.Clone()
	}
	for id, ct := range s.contracts {
		c.contracts[id] = cloneContract(ct)
	}
	for id, p := range s.payments {
		c.payments[id] = clonePayment(p)
	}
	for id, d := range s.distributions {
		c.distributions[id] = d.Clone()
	}
	for id, inv := range s.inventory {
		c.inventory[id] = inv.Clone()
	}
	for inv, dist := range s.reservations {
		c.reservations[inv] = dist
	}
	return c
}

func cloneContract(c domain.Contract) domain.Contract {
	if c.SignedAt != nil {
		t := *c.SignedAt
		c.SignedAt = &t
	}
	return c
}

func clonePayment(p domain.Payment) domain.Payment {
	if p.ProcessedAt != nil {
		t := *p.ProcessedAt
		p.ProcessedAt = &t
	}
	return p
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Orders() OrderRepository               { return memoryOrders{t.state} }
func (t *memoryTx) Contracts() ContractRepository         { return memoryContracts{t.state} }
func (t *memoryTx) Payments() PaymentRepository           { return memoryPayments{t.state} }
func (t *memoryTx) Distributions() DistributionRepository { return memoryDistributions{t.state} }
func (t *memoryTx) Inventory() InventoryRepository        { return memoryInventory{t.state} }

type memoryOrders struct{ s *memoryState }

func (r memoryOrders) Insert(_ context.Context, order *domain.Order) error {
	if _, ok := r.s.orders[order.ID]; ok {
		return apperrors.NewInternalError("inserting order", fmt.Errorf("id %s already exists", order.ID))
	}
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r memoryOrders) FindByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	c := order.Clone()
	return &c, nil
}

func (r memoryOrders) Update(_ context.Context, order *domain.Order) error {
	stored, ok := r.s.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return apperrors.NewConcurrentModificationError("order", order.ID)
	}
	order.Version++
	updated := order.Clone()
	// line items are immutable after submission
	updated.Details = stored.Details
	r.s.orders[order.ID] = updated
	return nil
}

type memoryContracts struct{ s *memoryState }

func (r memoryContracts) Insert(_ context.Context, contract *domain.Contract) error {
	if _, ok := r.s.contracts[contract.ID]; ok {
		return apperrors.NewInternalError("inserting contract", fmt.Errorf("id %s already exists", contract.ID))
	}
	r.s.contracts[contract.ID] = cloneContract(*contract)
	return nil
}

func (r memoryContracts) FindByID(_ context.Context, id string) (*domain.Contract, error) {
	contract, ok := r.s.contracts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("contract %s not found", id))
	}
	c := cloneContract(contract)
	return &c, nil
}

func (r memoryContracts) FindByOrderID(_ context.Context, orderID string) ([]domain.Contract, error) {
	var out []domain.Contract
	for _, c := range r.s.contracts {
		if c.OrderID == orderID {
			out = append(out, cloneContract(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r memoryContracts) Update(_ context.Context, contract *domain.Contract) error {
	stored, ok := r.s.contracts[contract.ID]
	if !ok || stored.Version != contract.Version {
		return apperrors.NewConcurrentModificationError("contract", contract.ID)
	}
	contract.Version++
	r.s.contracts[contract.ID] = cloneContract(*contract)
	return nil
}

type memoryPayments struct{ s *memoryState }

func (r memoryPayments) Insert(_ context.Context, payment *domain.Payment) error {
	if _, ok := r.s.payments[payment.ID]; ok {
		return apperrors.NewInternalError("inserting payment", fmt.Errorf("id %s already exists", payment.ID))
	}
	for _, p := range r.s.payments {
		if p.TransactionReference == payment.TransactionReference {
			return apperrors.NewInternalError("inserting payment", fmt.Errorf("reference %s already exists", payment.TransactionReference))
		}
	}
	r.s.payments[payment.ID] = clonePayment(*payment)
	return nil
}

func (r memoryPayments) FindByReference(_ context.Context, reference string) (*domain.Payment, error) {
	for _, p := range r.s.payments {
		if p.TransactionReference == reference {
			c := clonePayment(p)
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment with reference %s not found", reference))
}

func (r memoryPayments) FindByOrderID(_ context.Context, orderID string) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r memoryPayments) Update(_ context.Context, payment *domain.Payment) error {
	stored, ok := r.s.payments[payment.ID]
	if !ok || stored.Version != payment.Version {
		return apperrors.NewConcurrentModificationError("payment", payment.ID)
	}
	payment.Version++
	r.s.payments[payment.ID] = clonePayment(*payment)
	return nil
}

type memoryDistributions struct{ s *memoryState }

func (r memoryDistributions) Insert(_ context.Context, d *domain.Distribution) error {
	if _, ok := r.s.distributions[d.ID]; ok {
		return apperrors.NewInternalError("inserting distribution", fmt.Errorf("id %s already exists", d.ID))
	}
	r.s.distributions[d.ID] = d.Clone()
	return nil
}

func (r memoryDistributions) FindByID(_ context.Context, id string) (*domain.Distribution, error) {
	d, ok := r.s.distributions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("distribution %s not found", id))
	}
	c := d.Clone()
	return &c, nil
}

func (r memoryDistributions) Update(_ context.Context, d *domain.Distribution) error {
	stored, ok := r.s.distributions[d.ID]
	if !ok || stored.Version != d.Version {
		return apperrors.NewConcurrentModificationError("distribution", d.ID)
	}
	d.Version++
	updated := d.Clone()
	updated.InventoryIDs = stored.InventoryIDs
	r.s.distributions[d.ID] = updated
	return nil
}

func (r memoryDistributions) Reserve(_ context.Context, distributionID string, inventoryIDs []string) error {
	for _, id := range inventoryIDs {
		if holder, ok := r.s.reservations[id]; ok {
			return apperrors.NewWorkflowError(apperrors.CodeInventoryAlreadyReserved,
				"inventory %s is already held by open distribution %s", id, holder)
		}
	}
	for _, id := range inventoryIDs {
		r.s.reservations[id] = distributionID
	}
	return nil
}

func (r memoryDistributions) Release(_ context.Context, distributionID string) error {
	for inv, holder := range r.s.reservations {
		if holder == distributionID {
			delete(r.s.reservations, inv)
		}
	}
	return nil
}

type memoryInventory struct{ s *memoryState }

func (r memoryInventory) FindByID(_ context.Context, id string) (*domain.Inventory, error) {
	inv, ok := r.s.inventory[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("inventory %s not found", id))
	}
	c := inv.Clone()
	return &c, nil
}

func (r memoryInventory) Update(_ context.Context, inv *domain.Inventory) error {
	stored, ok := r.s.inventory[inv.ID]
	if !ok || stored.Version != inv.Version {
		return apperrors.NewConcurrentModificationError("inventory", inv.ID)
	}
	inv.Version++
	r.s.inventory[inv.ID] = inv.Clone()
	return nil
}

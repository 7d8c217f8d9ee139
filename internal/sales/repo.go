package sales

import (
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/google/uuid"
)

// Repository is the in-memory sales document store. Mutations run inside
// Mutate so validation and application of an order share one critical section
// per company.
type Repository struct {
	mu        sync.Mutex
	locks     map[uuid.UUID]*sync.Mutex
	orders    map[uuid.UUID]*Order
	customers map[uuid.UUID]*Customer
}

// NewRepository builds an empty sales store.
func NewRepository() *Repository {
	return &Repository{
		locks:     make(map[uuid.UUID]*sync.Mutex),
		orders:    make(map[uuid.UUID]*Order),
		customers: make(map[uuid.UUID]*Customer),
	}
}

func (r *Repository) companyLock(companyID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[companyID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[companyID] = lock
	}
	return lock
}

// Create stores a new order.
func (r *Repository) Create(order *Order) error {
	lock := r.companyLock(order.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.CompanyID == order.CompanyID && existing.DocumentNo == order.DocumentNo {
			return pkgerrors.New(pkgerrors.CodeConflict, "document number already in use")
		}
	}
	r.orders[order.ID] = order
	return nil
}

// Get returns a copy of the order when it belongs to the company.
func (r *Repository) Get(companyID, id uuid.UUID) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.CompanyID != companyID {
		return Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return *order, nil
}

// Mutate runs fn against the live order under the company's writer lock. An
// error from fn leaves the stored order in place, so fn must apply changes
// only after all validation has passed.
func (r *Repository) Mutate(companyID, id uuid.UUID, fn func(order *Order) error) error {
	lock := r.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	order, ok := r.orders[id]
	r.mu.Unlock()
	if !ok || order.CompanyID != companyID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err := fn(order); err != nil {
		return err
	}
	order.UpdatedAt = time.Now()
	return nil
}

// List returns copies of all orders for the company in creation order.
func (r *Repository) List(companyID uuid.UUID) []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, order := range r.orders {
		if order.CompanyID == companyID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpsertCustomer registers or updates a customer.
func (r *Repository) UpsertCustomer(customer *Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now()
	}
	r.customers[customer.ID] = customer
}

// Customers returns copies of the company's customers.
func (r *Repository) Customers(companyID uuid.UUID) []Customer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Customer, 0)
	for _, customer := range r.customers {
		if customer.CompanyID == companyID {
			out = append(out, *customer)
		}
	}
	return out
}

// Restore replaces one company's orders and customers. Used on snapshot load.
func (r *Repository) Restore(companyID uuid.UUID, customers []Customer, orders []Order) {
	lock := r.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, order := range r.orders {
		if order.CompanyID == companyID {
			delete(r.orders, id)
		}
	}
	for id, customer := range r.customers {
		if customer.CompanyID == companyID {
			delete(r.customers, id)
		}
	}
	for i := range orders {
		order := orders[i]
		order.CompanyID = companyID
		r.orders[order.ID] = &order
	}
	for i := range customers {
		customer := customers[i]
		customer.CompanyID = companyID
		r.customers[customer.ID] = &customer
	}
}

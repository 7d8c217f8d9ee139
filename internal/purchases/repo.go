package purchases

import (
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/google/uuid"
)

// Repository is the in-memory purchase document store. Mutations run inside
// Mutate so validation and application of a document share one critical
// section per company.
type Repository struct {
	mu        sync.Mutex
	locks     map[uuid.UUID]*sync.Mutex
	docs      map[uuid.UUID]*Transaction
	suppliers map[uuid.UUID]*Supplier
}

// NewRepository builds an empty purchase store.
func NewRepository() *Repository {
	return &Repository{
		locks:     make(map[uuid.UUID]*sync.Mutex),
		docs:      make(map[uuid.UUID]*Transaction),
		suppliers: make(map[uuid.UUID]*Supplier),
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

// Create stores a new document.
func (r *Repository) Create(doc *Transaction) error {
	lock := r.companyLock(doc.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.docs {
		if existing.CompanyID == doc.CompanyID && existing.DocumentNo == doc.DocumentNo {
			return pkgerrors.New(pkgerrors.CodeConflict, "document number already in use")
		}
	}
	r.docs[doc.ID] = doc
	return nil
}

// Get returns a copy of the document when it belongs to the company.
func (r *Repository) Get(companyID, id uuid.UUID) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.CompanyID != companyID {
		return Transaction{}, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return *doc, nil
}

// Mutate runs fn against the live document under the company's writer lock.
// An error from fn leaves the document's stored pointer in place, so fn must
// apply changes only after all validation has passed.
func (r *Repository) Mutate(companyID, id uuid.UUID, fn func(doc *Transaction) error) error {
	lock := r.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	doc, ok := r.docs[id]
	r.mu.Unlock()
	if !ok || doc.CompanyID != companyID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	if err := fn(doc); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now()
	return nil
}

// List returns copies of all documents for the company in creation order.
func (r *Repository) List(companyID uuid.UUID) []Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0)
	for _, doc := range r.docs {
		if doc.CompanyID == companyID {
			out = append(out, *doc)
		}
	}
	sortTransactions(out)
	return out
}

// UpsertSupplier registers or updates a supplier.
func (r *Repository) UpsertSupplier(supplier *Supplier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if supplier.ID == uuid.Nil {
		supplier.ID = uuid.New()
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now()
	}
	r.suppliers[supplier.ID] = supplier
}

// Suppliers returns copies of the company's suppliers.
func (r *Repository) Suppliers(companyID uuid.UUID) []Supplier {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Supplier, 0)
	for _, supplier := range r.suppliers {
		if supplier.CompanyID == companyID {
			out = append(out, *supplier)
		}
	}
	return out
}

// Restore replaces one company's documents and suppliers. Used on snapshot load.
func (r *Repository) Restore(companyID uuid.UUID, suppliers []Supplier, docs []Transaction) {
	lock := r.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, doc := range r.docs {
		if doc.CompanyID == companyID {
			delete(r.docs, id)
		}
	}
	for id, supplier := range r.suppliers {
		if supplier.CompanyID == companyID {
			delete(r.suppliers, id)
		}
	}
	for i := range docs {
		doc := docs[i]
		doc.CompanyID = companyID
		r.docs[doc.ID] = &doc
	}
	for i := range suppliers {
		supplier := suppliers[i]
		supplier.CompanyID = companyID
		r.suppliers[supplier.ID] = &supplier
	}
}

func sortTransactions(docs []Transaction) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/furniq/furniq-backend/internal/catalog"
	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/internal/ledger"
	"github.com/furniq/furniq-backend/internal/purchases"
	"github.com/furniq/furniq-backend/internal/sales"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/google/uuid"
)

const version = 1

// envelope wraps every snapshot file so future format changes stay loadable.
type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

type stockData struct {
	Rows          []ledger.Row         `json:"rows"`
	Transfers     []ledger.Transfer    `json:"transfers"`
	ManualEntries []ledger.ManualEntry `json:"manual_entries"`
}

type purchaseData struct {
	Suppliers []purchases.Supplier    `json:"suppliers"`
	Documents []purchases.Transaction `json:"documents"`
}

type salesData struct {
	Customers []sales.Customer `json:"customers"`
	Orders    []sales.Order    `json:"orders"`
}

type catalogData struct {
	Products []catalog.Product `json:"products"`
}

type stockStore interface {
	Rows(ctx context.Context) ([]ledger.Row, error)
	Transfers(ctx context.Context) ([]ledger.Transfer, error)
	ManualEntries(ctx context.Context) ([]ledger.ManualEntry, error)
	Restore(companyID uuid.UUID, rows []ledger.Row, transfers []ledger.Transfer, entries []ledger.ManualEntry)
}

type purchaseStore interface {
	List(companyID uuid.UUID) []purchases.Transaction
	Suppliers(companyID uuid.UUID) []purchases.Supplier
	Restore(companyID uuid.UUID, suppliers []purchases.Supplier, docs []purchases.Transaction)
}

type salesStore interface {
	List(companyID uuid.UUID) []sales.Order
	Customers(companyID uuid.UUID) []sales.Customer
	Restore(companyID uuid.UUID, customers []sales.Customer, orders []sales.Order)
}

type catalogStore interface {
	Products(companyID uuid.UUID) []catalog.Product
	Restore(companyID uuid.UUID, products []catalog.Product)
}

// Manager persists per-company engine state as JSON files and restores it on
// startup. Saves read consistent copies from the stores and never hold any
// engine critical section during file I/O.
type Manager struct {
	dir       string
	resolver  company.Resolver
	stock     stockStore
	purchases purchaseStore
	sales     salesStore
	catalog   catalogStore
	logg      *logger.Logger
}

// ManagerParams wire the snapshot manager's collaborators.
type ManagerParams struct {
	Dir       string
	Resolver  company.Resolver
	Stock     stockStore
	Purchases purchaseStore
	Sales     salesStore
	Catalog   catalogStore
	Logger    *logger.Logger
}

// NewManager builds a snapshot manager rooted at the given directory.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Dir == "" {
		return nil, fmt.Errorf("snapshot directory required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("company resolver required")
	}
	if params.Stock == nil || params.Purchases == nil || params.Sales == nil || params.Catalog == nil {
		return nil, fmt.Errorf("all engine stores required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := os.MkdirAll(params.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Manager{
		dir:       params.Dir,
		resolver:  params.Resolver,
		stock:     params.Stock,
		purchases: params.Purchases,
		sales:     params.Sales,
		catalog:   params.Catalog,
		logg:      params.Logger,
	}, nil
}

func (m *Manager) path(companyID uuid.UUID, kind string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.%s.json", companyID, kind))
}

// Flush writes the active company's full state to disk. Each file is written
// to a temp sibling and renamed into place, so a crash mid-write leaves the
// previous snapshot intact.
func (m *Manager) Flush(ctx context.Context) error {
	scope, err := company.Require(ctx, m.resolver)
	if err != nil {
		return err
	}

	rows, err := m.stock.Rows(ctx)
	if err != nil {
		return err
	}
	transfers, err := m.stock.Transfers(ctx)
	if err != nil {
		return err
	}
	entries, err := m.stock.ManualEntries(ctx)
	if err != nil {
		return err
	}

	files := []struct {
		kind string
		data any
	}{
		{"stock", stockData{Rows: rows, Transfers: transfers, ManualEntries: entries}},
		{"purchases", purchaseData{
			Suppliers: m.purchases.Suppliers(scope.ID),
			Documents: m.purchases.List(scope.ID),
		}},
		{"sales", salesData{
			Customers: m.sales.Customers(scope.ID),
			Orders:    m.sales.List(scope.ID),
		}},
		{"catalog", catalogData{Products: m.catalog.Products(scope.ID)}},
	}
	for _, file := range files {
		if err := m.write(m.path(scope.ID, file.kind), file.data); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("write %s snapshot", file.kind))
		}
	}
	m.logg.Debug(m.logg.WithCompanyID(ctx, scope.ID.String()), "snapshot flushed")
	return nil
}

// Load restores the active company's state from disk. Missing files are a
// fresh start, not an error.
func (m *Manager) Load(ctx context.Context) error {
	scope, err := company.Require(ctx, m.resolver)
	if err != nil {
		return err
	}

	var stock stockData
	if ok, err := m.read(m.path(scope.ID, "stock"), &stock); err != nil {
		return err
	} else if ok {
		m.stock.Restore(scope.ID, stock.Rows, stock.Transfers, stock.ManualEntries)
	}

	var purchase purchaseData
	if ok, err := m.read(m.path(scope.ID, "purchases"), &purchase); err != nil {
		return err
	} else if ok {
		m.purchases.Restore(scope.ID, purchase.Suppliers, purchase.Documents)
	}

	var sale salesData
	if ok, err := m.read(m.path(scope.ID, "sales"), &sale); err != nil {
		return err
	} else if ok {
		m.sales.Restore(scope.ID, sale.Customers, sale.Orders)
	}

	var cat catalogData
	if ok, err := m.read(m.path(scope.ID, "catalog"), &cat); err != nil {
		return err
	} else if ok {
		m.catalog.Restore(scope.ID, cat.Products)
	}

	m.logg.Info(m.logg.WithCompanyID(ctx, scope.ID.String()), "snapshot loaded")
	return nil
}

// RunPeriodicFlush flushes on the given interval until the context is
// cancelled, then takes one final flush so shutdown never loses state.
func (m *Manager) RunPeriodicFlush(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := m.Flush(context.WithoutCancel(ctx)); err != nil {
				m.logg.Error(ctx, "final snapshot flush failed", err)
			}
			return
		case <-ticker.C:
			if err := m.Flush(ctx); err != nil {
				m.logg.Error(ctx, "snapshot flush failed", err)
			}
		}
	}
}

func (m *Manager) write(path string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	wrapped, err := json.MarshalIndent(envelope{
		Version: version,
		SavedAt: time.Now().UTC(),
		Data:    raw,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(wrapped); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (m *Manager) read(path string, dest any) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read snapshot")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode snapshot envelope")
	}
	if env.Version != version {
		return false, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported snapshot version %d in %s", env.Version, filepath.Base(path)))
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode snapshot data")
	}
	return true, nil
}

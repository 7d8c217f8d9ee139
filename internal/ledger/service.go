package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/pkg/enums"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/furniq/furniq-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Service exposes the atomic stock operations of the ledger. Every call is
// scoped to the active company; each company ledger has a single writer at a
// time, so no caller ever observes a partially-applied batch.
type Service interface {
	Increase(ctx context.Context, productID uuid.UUID, warehouse enums.Warehouse, qty int) error
	Deduct(ctx context.Context, productID uuid.UUID, warehouse enums.Warehouse, qty int) error
	DeductBatch(ctx context.Context, movements []Movement) error
	Transfer(ctx context.Context, input TransferInput) (*Transfer, error)
	TransferBatch(ctx context.Context, inputs []TransferInput) ([]Transfer, error)
	TotalStock(ctx context.Context, productID uuid.UUID) (int, error)
	SellableStock(ctx context.Context, productID uuid.UUID) (int, error)
	RecordManualEntry(ctx context.Context, input ManualEntryInput) (*ManualEntry, error)

	Rows(ctx context.Context) ([]Row, error)
	Transfers(ctx context.Context) ([]Transfer, error)
	ManualEntries(ctx context.Context) ([]ManualEntry, error)
	Restore(companyID uuid.UUID, rows []Row, transfers []Transfer, entries []ManualEntry)
}

// ManualEntryInput describes an out-of-workflow receipt or delivery.
type ManualEntryInput struct {
	ProductID uuid.UUID
	Kind      enums.ManualEntryKind
	Warehouse enums.Warehouse
	Qty       int
	Reference string
	Notes     string
	ActorID   uuid.UUID
}

type rowKey struct {
	productID uuid.UUID
	warehouse enums.Warehouse
}

type companyLedger struct {
	mu        sync.Mutex
	rows      map[rowKey]*Row
	transfers []Transfer
	manual    []ManualEntry
}

type service struct {
	mu      sync.RWMutex
	ledgers map[uuid.UUID]*companyLedger

	resolver company.Resolver
	logg     *logger.Logger
	metrics  *metrics.EngineMetrics
	now      func() time.Time
}

// NewService builds the stock ledger with the required dependencies.
func NewService(resolver company.Resolver, logg *logger.Logger, m *metrics.EngineMetrics) (Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("company resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledgers:  make(map[uuid.UUID]*companyLedger),
		resolver: resolver,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

func (s *service) ledgerFor(companyID uuid.UUID) *companyLedger {
	s.mu.RLock()
	led, ok := s.ledgers[companyID]
	s.mu.RUnlock()
	if ok {
		return led
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if led, ok = s.ledgers[companyID]; ok {
		return led
	}
	led = &companyLedger{rows: make(map[rowKey]*Row)}
	s.ledgers[companyID] = led
	return led
}

func validateMutation(warehouse enums.Warehouse, qty int) error {
	if !warehouse.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown warehouse %q", warehouse))
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

// Increase adds qty to the (product, warehouse) row, creating it if absent.
// The archive bucket is never mutated; increases against it are skipped.
func (s *service) Increase(ctx context.Context, productID uuid.UUID, warehouse enums.Warehouse, qty int) error {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return err
	}
	if err := validateMutation(warehouse, qty); err != nil {
		return err
	}
	if warehouse == enums.WarehouseHistorical {
		s.logg.Debug(s.logg.WithCompanyID(ctx, scope.ID.String()), "increase against archive bucket skipped")
		return nil
	}

	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	s.addLocked(led, scope.ID, productID, warehouse, qty)
	s.metrics.IncStockOp("increase", "accepted")
	return nil
}

// Deduct atomically checks current >= qty, subtracting on success. Stock never
// goes negative; a short row rejects the call and leaves state untouched.
func (s *service) Deduct(ctx context.Context, productID uuid.UUID, warehouse enums.Warehouse, qty int) error {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return err
	}
	if err := validateMutation(warehouse, qty); err != nil {
		return err
	}
	if warehouse == enums.WarehouseHistorical {
		return pkgerrors.New(pkgerrors.CodeValidation, "archive bucket is immutable")
	}

	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	if err := s.deductLocked(led, productID, warehouse, qty); err != nil {
		s.metrics.IncStockOp("deduct", "rejected")
		return err
	}
	s.metrics.IncStockOp("deduct", "accepted")
	return nil
}

// DeductBatch subtracts every movement or none. Validation runs against a
// scratch copy of the affected balances, so the caller sees every short line
// at once and state is untouched on rejection.
func (s *service) DeductBatch(ctx context.Context, movements []Movement) error {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return err
	}
	if len(movements) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no deduction lines")
	}

	var verr error
	violations := make([]LineViolation, 0)
	for i, movement := range movements {
		if err := validateMutation(movement.Warehouse, movement.Qty); err != nil {
			verr = multierr.Append(verr, err)
			violations = append(violations, LineViolation{Line: i, ProductID: movement.ProductID, Reason: err.Error()})
			continue
		}
		if movement.Warehouse == enums.WarehouseHistorical {
			reason := "archive bucket is immutable"
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			violations = append(violations, LineViolation{Line: i, ProductID: movement.ProductID, Reason: reason})
		}
	}
	if verr != nil {
		s.metrics.IncBatchRejection("deduct")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "deduction batch rejected").WithDetails(violations)
	}

	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()

	scratch := make(map[rowKey]int)
	balance := func(key rowKey) int {
		if qty, ok := scratch[key]; ok {
			return qty
		}
		if row, ok := led.rows[key]; ok {
			return row.Quantity
		}
		return 0
	}
	for i, movement := range movements {
		key := rowKey{movement.ProductID, movement.Warehouse}
		available := balance(key)
		if available < movement.Qty {
			violations = append(violations, LineViolation{
				Line:      i,
				ProductID: movement.ProductID,
				Reason:    fmt.Sprintf("%s short by %d", movement.Warehouse, movement.Qty-available),
			})
			continue
		}
		scratch[key] = available - movement.Qty
	}
	if len(violations) > 0 {
		s.metrics.IncStockOp("deduct", "rejected")
		s.metrics.IncBatchRejection("deduct")
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "deduction batch rejected").WithDetails(violations)
	}

	now := s.now()
	for _, movement := range movements {
		s.deductLockedUnchecked(led, scope.ID, movement.ProductID, movement.Warehouse, movement.Qty, now)
		s.metrics.IncStockOp("deduct", "accepted")
	}
	return nil
}

// Transfer moves qty between two buckets as one atomic unit and appends
// exactly one Transfer record on success.
func (s *service) Transfer(ctx context.Context, input TransferInput) (*Transfer, error) {
	transfers, err := s.TransferBatch(ctx, []TransferInput{input})
	if err != nil {
		return nil, err
	}
	return &transfers[0], nil
}

// TransferBatch applies every line or none. Lines are validated against a
// scratch copy of the affected balances in order, so a batch may legally chain
// (a line may consume stock produced by an earlier line in the same batch).
func (s *service) TransferBatch(ctx context.Context, inputs []TransferInput) ([]Transfer, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no transfer lines")
	}

	var verr error
	violations := make([]LineViolation, 0)
	for i, input := range inputs {
		if err := validateMutation(input.From, input.Qty); err != nil {
			verr = multierr.Append(verr, err)
			violations = append(violations, LineViolation{Line: i, ProductID: input.ProductID, Reason: err.Error()})
			continue
		}
		if !input.To.IsValid() {
			reason := fmt.Sprintf("unknown warehouse %q", input.To)
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			violations = append(violations, LineViolation{Line: i, ProductID: input.ProductID, Reason: reason})
			continue
		}
		if input.From == enums.WarehouseHistorical || input.To == enums.WarehouseHistorical {
			reason := "archive bucket is immutable"
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			violations = append(violations, LineViolation{Line: i, ProductID: input.ProductID, Reason: reason})
			continue
		}
		if input.From == input.To {
			reason := "source and destination are identical"
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			violations = append(violations, LineViolation{Line: i, ProductID: input.ProductID, Reason: reason})
		}
	}
	if verr != nil {
		s.metrics.IncBatchRejection("transfer")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "transfer batch rejected").WithDetails(violations)
	}

	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()

	scratch := make(map[rowKey]int)
	balance := func(key rowKey) int {
		if qty, ok := scratch[key]; ok {
			return qty
		}
		if row, ok := led.rows[key]; ok {
			return row.Quantity
		}
		return 0
	}
	for i, input := range inputs {
		fromKey := rowKey{input.ProductID, input.From}
		toKey := rowKey{input.ProductID, input.To}
		available := balance(fromKey)
		if available < input.Qty {
			violations = append(violations, LineViolation{
				Line:      i,
				ProductID: input.ProductID,
				Reason:    fmt.Sprintf("%s short by %d", input.From, input.Qty-available),
			})
			continue
		}
		scratch[fromKey] = available - input.Qty
		scratch[toKey] = balance(toKey) + input.Qty
	}
	if len(violations) > 0 {
		s.metrics.IncStockOp("transfer", "rejected")
		s.metrics.IncBatchRejection("transfer")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "transfer batch rejected").WithDetails(violations)
	}

	now := s.now()
	transfers := make([]Transfer, 0, len(inputs))
	for _, input := range inputs {
		s.deductLockedUnchecked(led, scope.ID, input.ProductID, input.From, input.Qty, now)
		s.addLocked(led, scope.ID, input.ProductID, input.To, input.Qty)
		record := Transfer{
			ID:        uuid.New(),
			CompanyID: scope.ID,
			ProductID: input.ProductID,
			From:      input.From,
			To:        input.To,
			Quantity:  input.Qty,
			Reference: input.Reference,
			ActorID:   input.ActorID,
			CreatedAt: now,
		}
		led.transfers = append(led.transfers, record)
		transfers = append(transfers, record)
		s.metrics.IncStockOp("transfer", "accepted")
	}
	return transfers, nil
}

// TotalStock sums quantities across all buckets excluding the archive.
func (s *service) TotalStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.sumStock(ctx, productID, func(w enums.Warehouse) bool {
		return w != enums.WarehouseHistorical
	})
}

// SellableStock sums godown and display only. Reserved and in-repair stock is
// not sellable.
func (s *service) SellableStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.sumStock(ctx, productID, enums.Warehouse.IsSellable)
}

func (s *service) sumStock(ctx context.Context, productID uuid.UUID, include func(enums.Warehouse) bool) (int, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return 0, err
	}
	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	total := 0
	for key, row := range led.rows {
		if key.productID == productID && include(key.warehouse) {
			total += row.Quantity
		}
	}
	return total, nil
}

// RecordManualEntry applies an out-of-workflow receipt or delivery and appends
// its audit record in the same critical section.
func (s *service) RecordManualEntry(ctx context.Context, input ManualEntryInput) (*ManualEntry, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown manual entry kind %q", input.Kind))
	}
	if err := validateMutation(input.Warehouse, input.Qty); err != nil {
		return nil, err
	}
	if input.Warehouse == enums.WarehouseHistorical {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "archive bucket is immutable")
	}

	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	switch input.Kind {
	case enums.ManualEntryReceipt:
		s.addLocked(led, scope.ID, input.ProductID, input.Warehouse, input.Qty)
	case enums.ManualEntryDelivery:
		if err := s.deductLocked(led, input.ProductID, input.Warehouse, input.Qty); err != nil {
			s.metrics.IncStockOp("manual", "rejected")
			return nil, err
		}
	}
	entry := ManualEntry{
		ID:        uuid.New(),
		CompanyID: scope.ID,
		ProductID: input.ProductID,
		Kind:      input.Kind,
		Warehouse: input.Warehouse,
		Quantity:  input.Qty,
		Reference: input.Reference,
		Notes:     input.Notes,
		ActorID:   input.ActorID,
		CreatedAt: s.now(),
	}
	led.manual = append(led.manual, entry)
	s.metrics.IncStockOp("manual", "accepted")
	return &entry, nil
}

// Rows returns a snapshot of the active company's stock rows.
func (s *service) Rows(ctx context.Context) ([]Row, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	rows := make([]Row, 0, len(led.rows))
	for _, row := range led.rows {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProductID != rows[j].ProductID {
			return rows[i].ProductID.String() < rows[j].ProductID.String()
		}
		return rows[i].Warehouse < rows[j].Warehouse
	})
	return rows, nil
}

// Transfers returns the active company's transfer log in append order.
func (s *service) Transfers(ctx context.Context) ([]Transfer, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	out := make([]Transfer, len(led.transfers))
	copy(out, led.transfers)
	return out, nil
}

// ManualEntries returns the active company's manual entry log in append order.
func (s *service) ManualEntries(ctx context.Context) ([]ManualEntry, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	led := s.ledgerFor(scope.ID)
	led.mu.Lock()
	defer led.mu.Unlock()
	out := make([]ManualEntry, len(led.manual))
	copy(out, led.manual)
	return out, nil
}

// Restore replaces one company's ledger state. Used on snapshot load.
func (s *service) Restore(companyID uuid.UUID, rows []Row, transfers []Transfer, entries []ManualEntry) {
	led := s.ledgerFor(companyID)
	led.mu.Lock()
	defer led.mu.Unlock()
	led.rows = make(map[rowKey]*Row, len(rows))
	for i := range rows {
		row := rows[i]
		row.CompanyID = companyID
		if row.Quantity < 0 {
			continue
		}
		led.rows[rowKey{row.ProductID, row.Warehouse}] = &row
	}
	led.transfers = append([]Transfer(nil), transfers...)
	led.manual = append([]ManualEntry(nil), entries...)
}

func (s *service) addLocked(led *companyLedger, companyID, productID uuid.UUID, warehouse enums.Warehouse, qty int) {
	key := rowKey{productID, warehouse}
	row, ok := led.rows[key]
	if !ok {
		row = &Row{ProductID: productID, CompanyID: companyID, Warehouse: warehouse}
		led.rows[key] = row
	}
	row.Quantity += qty
	row.UpdatedAt = s.now()
}

func (s *service) deductLocked(led *companyLedger, productID uuid.UUID, warehouse enums.Warehouse, qty int) error {
	key := rowKey{productID, warehouse}
	row, ok := led.rows[key]
	if !ok || row.Quantity < qty {
		available := 0
		if ok {
			available = row.Quantity
		}
		return pkgerrors.New(
			pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("%s short by %d", warehouse, qty-available),
		).WithDetails([]LineViolation{{ProductID: productID, Reason: fmt.Sprintf("%s short by %d", warehouse, qty-available)}})
	}
	row.Quantity -= qty
	row.UpdatedAt = s.now()
	return nil
}

func (s *service) deductLockedUnchecked(led *companyLedger, companyID, productID uuid.UUID, warehouse enums.Warehouse, qty int, now time.Time) {
	key := rowKey{productID, warehouse}
	row, ok := led.rows[key]
	if !ok {
		row = &Row{ProductID: productID, CompanyID: companyID, Warehouse: warehouse}
		led.rows[key] = row
	}
	row.Quantity -= qty
	row.UpdatedAt = now
}

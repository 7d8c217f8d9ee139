package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/furniq/furniq-backend/internal/accounting"
	"github.com/furniq/furniq-backend/internal/catalog"
	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/internal/ledger"
	"github.com/furniq/furniq-backend/pkg/enums"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/furniq/furniq-backend/pkg/metrics"
	"github.com/furniq/furniq-backend/pkg/validators"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type stockReceiver interface {
	Increase(ctx context.Context, productID uuid.UUID, warehouse enums.Warehouse, qty int) error
}

type productCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

type ageingReader interface {
	PayablesAgeing(ctx context.Context) ([]accounting.AgeingEntry, error)
}

// Service drives the RFQ -> PO -> GRN -> Bill state machine.
type Service interface {
	CreateRFQ(ctx context.Context, input CreateRFQInput) (*Transaction, error)
	ConfirmPO(ctx context.Context, id uuid.UUID) (*Transaction, error)
	RecordGRN(ctx context.Context, id uuid.UUID, input RecordGRNInput) (*Transaction, error)
	CreateVendorBill(ctx context.Context, id uuid.UUID, input CreateBillInput) (*Transaction, error)
	RecordPayment(ctx context.Context, id uuid.UUID, input PaymentInput) (*Transaction, error)
	ReconcileAdvance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (*Transaction, error)
	PayablesAgeing(ctx context.Context) ([]accounting.AgeingEntry, error)

	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	List(ctx context.Context) ([]Transaction, error)
}

type service struct {
	repo     *Repository
	resolver company.Resolver
	stock    stockReceiver
	catalog  productCatalog
	acct     accounting.Queue
	ageing   ageingReader
	logg     *logger.Logger
	metrics  *metrics.EngineMetrics
	now      func() time.Time
}

// ServiceParams wire the purchase engine's collaborators.
type ServiceParams struct {
	Repo     *Repository
	Resolver company.Resolver
	Stock    stockReceiver
	Catalog  productCatalog
	Acct     accounting.Queue
	Ageing   ageingReader
	Logger   *logger.Logger
	Metrics  *metrics.EngineMetrics
}

// NewService builds the purchase engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("company resolver required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Acct == nil {
		return nil, fmt.Errorf("accounting queue required")
	}
	if params.Ageing == nil {
		return nil, fmt.Errorf("accounting ageing reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		resolver: params.Resolver,
		stock:    params.Stock,
		catalog:  params.Catalog,
		acct:     params.Acct,
		ageing:   params.Ageing,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

// CreateRFQ opens a purchase document with zero received and billed
// quantities. Creation without an active company fails loudly.
func (s *service) CreateRFQ(ctx context.Context, input CreateRFQInput) (*Transaction, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	if err := validators.Struct(input); err != nil {
		return nil, err
	}

	now := s.now()
	doc := &Transaction{
		ID:            uuid.New(),
		CompanyID:     scope.ID,
		DocumentNo:    input.DocumentNo,
		SupplierID:    input.SupplierID,
		ContactID:     input.ContactID,
		PartyName:     input.PartyName,
		Status:        enums.PurchaseStatusRFQ,
		Items:         make([]LineItem, 0, len(input.Items)),
		GRNHistory:    make([]GRNRecord, 0),
		BillHistory:   make([]BillRecord, 0),
		PaymentStatus: enums.PaymentStatusUnpaid,
		Historical:    input.Historical,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	total := decimal.Zero
	for _, line := range input.Items {
		item := LineItem{
			ProductID:   line.ProductID,
			Description: line.Description,
			OrderedQty:  line.OrderedQty,
			UnitPrice:   line.UnitPrice,
			GSTEnabled:  line.GSTEnabled,
			GSTRate:     line.GSTRate,
		}
		doc.Items = append(doc.Items, item)
		total = total.Add(lineValue(item, line.OrderedQty))
	}
	doc.GrandTotal = total

	if err := s.repo.Create(doc); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithCompanyID(ctx, scope.ID.String())
	logCtx = s.logg.WithDocumentNo(logCtx, doc.DocumentNo)
	s.logg.Info(logCtx, "rfq created")
	result := *doc
	return &result, nil
}

// ConfirmPO promotes an RFQ to a confirmed purchase order and assigns the PO
// reference derived from the document number.
func (s *service) ConfirmPO(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.mutate(ctx, id, func(doc *Transaction) error {
		if doc.Status != enums.PurchaseStatusRFQ {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only an rfq can be confirmed")
		}
		doc.Status = enums.PurchaseStatusPO
		doc.PORef = "PO-" + doc.DocumentNo
		return nil
	})
}

// RecordGRN receives goods against a confirmed PO. Validation is
// all-or-nothing: a single over-receipt rejects the whole receipt and no
// stock moves. The response carries every offending line.
func (s *service) RecordGRN(ctx context.Context, id uuid.UUID, input RecordGRNInput) (*Transaction, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	warehouse, err := enums.ParseWarehouse(input.Warehouse)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid warehouse")
	}
	if warehouse == enums.WarehouseHistorical {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot receive into the archive bucket")
	}

	return s.mutate(ctx, id, func(doc *Transaction) error {
		switch doc.Status {
		case enums.PurchaseStatusPO, enums.PurchaseStatusGRNPartial:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("grn not allowed in status %s", doc.Status))
		}

		var verr error
		violations := make([]ledger.LineViolation, 0)
		// Ceilings are checked against running totals so duplicate lines for
		// one product cannot slip past the per-line counter jointly.
		pending := make(map[uuid.UUID]int)
		for i, delivery := range input.Deliveries {
			line := doc.line(delivery.ProductID)
			if line == nil {
				reason := "product not on the order"
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: delivery.ProductID, Reason: reason})
				continue
			}
			projected := line.ReceivedQty + pending[delivery.ProductID] + delivery.Qty
			pending[delivery.ProductID] += delivery.Qty
			if projected > line.OrderedQty {
				reason := fmt.Sprintf("receipt of %d exceeds ordered %d (already received %d)",
					delivery.Qty, line.OrderedQty, projected-delivery.Qty)
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: delivery.ProductID, Reason: reason})
			}
		}
		if verr != nil {
			s.metrics.IncBatchRejection("record_grn")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "grn rejected").WithDetails(violations)
		}

		for _, delivery := range input.Deliveries {
			if s.participates(ctx, doc, delivery.ProductID) {
				if err := s.stock.Increase(ctx, delivery.ProductID, warehouse, delivery.Qty); err != nil {
					return err
				}
			}
			doc.line(delivery.ProductID).ReceivedQty += delivery.Qty
		}
		lines := make([]GRNLine, 0, len(input.Deliveries))
		for _, delivery := range input.Deliveries {
			lines = append(lines, GRNLine{ProductID: delivery.ProductID, Qty: delivery.Qty})
		}
		doc.GRNHistory = append(doc.GRNHistory, GRNRecord{
			ID:         uuid.New(),
			Reference:  input.Reference,
			Warehouse:  warehouse,
			Lines:      lines,
			ActorID:    input.ActorID,
			ReceivedAt: s.now(),
		})
		recomputeStatus(doc)
		return nil
	})
}

// CreateVendorBill bills received goods incrementally. A line can never bill
// beyond what was ordered, nor beyond what was physically received.
func (s *service) CreateVendorBill(ctx context.Context, id uuid.UUID, input CreateBillInput) (*Transaction, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(doc *Transaction) error {
		if doc.Status == enums.PurchaseStatusCancelled || doc.Status == enums.PurchaseStatusBilled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("billing not allowed in status %s", doc.Status))
		}
		for _, bill := range doc.BillHistory {
			if bill.BillNo == input.BillNo {
				return pkgerrors.New(pkgerrors.CodeConflict, "bill number already recorded")
			}
		}

		var verr error
		violations := make([]ledger.LineViolation, 0)
		pending := make(map[uuid.UUID]int)
		for i, item := range input.Items {
			line := doc.line(item.ProductID)
			if line == nil {
				reason := "product not on the order"
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: item.ProductID, Reason: reason})
				continue
			}
			projected := line.BilledQty + pending[item.ProductID] + item.Qty
			pending[item.ProductID] += item.Qty
			if projected > line.OrderedQty {
				reason := fmt.Sprintf("billing %d exceeds ordered %d (already billed %d)",
					item.Qty, line.OrderedQty, projected-item.Qty)
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: item.ProductID, Reason: reason})
				continue
			}
			if projected > line.ReceivedQty {
				reason := fmt.Sprintf("billing %d exceeds received %d (already billed %d)",
					item.Qty, line.ReceivedQty, projected-item.Qty)
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: item.ProductID, Reason: reason})
			}
		}
		if verr != nil {
			s.metrics.IncBatchRejection("create_vendor_bill")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "vendor bill rejected").WithDetails(violations)
		}

		amount := decimal.Zero
		tax := decimal.Zero
		lines := make([]BillLine, 0, len(input.Items))
		for _, item := range input.Items {
			line := doc.line(item.ProductID)
			line.BilledQty += item.Qty
			amount = amount.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))))
			tax = tax.Add(lineTax(*line, item.Qty))
			lines = append(lines, BillLine{ProductID: item.ProductID, Qty: item.Qty})
		}
		doc.BillHistory = append(doc.BillHistory, BillRecord{
			ID:       uuid.New(),
			BillNo:   input.BillNo,
			Lines:    lines,
			Amount:   amount,
			Tax:      tax,
			ActorID:  input.ActorID,
			BilledAt: s.now(),
		})
		recomputeStatus(doc)

		if !doc.Historical {
			if err := s.acct.EnqueueCost(accounting.CostPosting{
				PurchaseID: doc.ID,
				BillNo:     input.BillNo,
				ContactID:  doc.ContactID,
				PartyName:  doc.PartyName,
				Amount:     amount,
				Tax:        tax,
			}); err != nil {
				s.logg.Error(ctx, "cost posting not queued", err)
			}
		}
		return nil
	})
}

// RecordPayment forwards a payment to accounting and re-derives the payment
// status from the amount paid so far.
func (s *service) RecordPayment(ctx context.Context, id uuid.UUID, input PaymentInput) (*Transaction, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	return s.mutate(ctx, id, func(doc *Transaction) error {
		if doc.Status == enums.PurchaseStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot pay a cancelled purchase")
		}
		doc.AmountPaid = doc.AmountPaid.Add(input.Amount)
		s.derivePaymentStatus(ctx, doc)
		if !doc.Historical {
			if err := s.acct.EnqueueBillPayment(accounting.Payment{
				DocumentID: doc.ID,
				ContactID:  doc.ContactID,
				Amount:     input.Amount,
				AccountID:  input.AccountID,
				Reference:  input.Reference,
			}); err != nil {
				s.logg.Error(ctx, "bill payment not queued", err)
			}
		}
		return nil
	})
}

// ReconcileAdvance applies a previously-recorded vendor advance to the
// document.
func (s *service) ReconcileAdvance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advance amount must be positive")
	}
	return s.mutate(ctx, id, func(doc *Transaction) error {
		if doc.Status == enums.PurchaseStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot reconcile against a cancelled purchase")
		}
		doc.AmountPaid = doc.AmountPaid.Add(amount)
		s.derivePaymentStatus(ctx, doc)
		if !doc.Historical {
			if err := s.acct.EnqueueBillAdvance(accounting.Advance{
				DocumentID: doc.ID,
				ContactID:  doc.ContactID,
				Amount:     amount,
			}); err != nil {
				s.logg.Error(ctx, "vendor advance not queued", err)
			}
		}
		return nil
	})
}

// Cancel freezes the document. Stock already received stays received; the
// document is frozen, not unwound.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.mutate(ctx, id, func(doc *Transaction) error {
		if doc.Status == enums.PurchaseStatusBilled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a fully billed purchase cannot be cancelled")
		}
		if doc.Status == enums.PurchaseStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase already cancelled")
		}
		doc.Status = enums.PurchaseStatusCancelled
		return nil
	})
}

// PayablesAgeing passes the ageing report through from accounting.
func (s *service) PayablesAgeing(ctx context.Context) ([]accounting.AgeingEntry, error) {
	if _, err := company.Require(ctx, s.resolver); err != nil {
		return nil, err
	}
	return s.ageing.PayablesAgeing(ctx)
}

// Get returns one document scoped to the active company.
func (s *service) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return Transaction{}, err
	}
	return s.repo.Get(scope.ID, id)
}

// List returns the company's documents in creation order.
func (s *service) List(ctx context.Context) ([]Transaction, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	return s.repo.List(scope.ID), nil
}

func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(doc *Transaction) error) (*Transaction, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Mutate(scope.ID, id, fn); err != nil {
		return nil, err
	}
	doc, err := s.repo.Get(scope.ID, id)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// participates reports whether stock arithmetic applies to the line. Shadow
// documents and non-tracked or historical products are document-only.
func (s *service) participates(ctx context.Context, doc *Transaction, productID uuid.UUID) bool {
	if doc.Historical {
		return false
	}
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		return false
	}
	return product.ParticipatesInStock()
}

func (s *service) derivePaymentStatus(ctx context.Context, doc *Transaction) {
	switch {
	case doc.AmountPaid.IsZero():
		doc.PaymentStatus = enums.PaymentStatusUnpaid
	case doc.AmountPaid.GreaterThanOrEqual(doc.GrandTotal):
		doc.PaymentStatus = enums.PaymentStatusPaid
	default:
		doc.PaymentStatus = enums.PaymentStatusPartial
	}
	if doc.AmountPaid.GreaterThan(doc.GrandTotal) {
		s.logg.Warn(s.logg.WithDocumentNo(ctx, doc.DocumentNo), "amount paid exceeds grand total")
	}
}

// recomputeStatus derives the document status from aggregate ordered,
// received and billed totals.
func recomputeStatus(doc *Transaction) {
	ordered, received, billed := doc.aggregates()
	switch {
	case received >= ordered && billed >= ordered:
		doc.Status = enums.PurchaseStatusBilled
	case received >= ordered:
		doc.Status = enums.PurchaseStatusGRNCompleted
	case received > 0:
		doc.Status = enums.PurchaseStatusGRNPartial
	}
}

func lineValue(item LineItem, qty int) decimal.Decimal {
	base := item.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return base.Add(lineTaxFromBase(item, base))
}

func lineTax(item LineItem, qty int) decimal.Decimal {
	base := item.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return lineTaxFromBase(item, base)
}

func lineTaxFromBase(item LineItem, base decimal.Decimal) decimal.Decimal {
	if !item.GSTEnabled || item.GSTRate.IsZero() {
		return decimal.Zero
	}
	return base.Mul(item.GSTRate).Div(decimal.NewFromInt(100))
}

package sales

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

type stockReserver interface {
	TransferBatch(ctx context.Context, inputs []ledger.TransferInput) ([]ledger.Transfer, error)
	DeductBatch(ctx context.Context, movements []ledger.Movement) error
}

type productCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// Service drives the Quotation -> Order -> Delivery -> Invoice state machine.
type Service interface {
	CreateQuotation(ctx context.Context, input CreateQuotationInput) (*Order, error)
	UpdateQuotation(ctx context.Context, id uuid.UUID, input UpdateQuotationInput) (*Order, error)
	SendQuotation(ctx context.Context, id uuid.UUID) (*Order, error)
	ConfirmOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	RecordDelivery(ctx context.Context, id uuid.UUID, input RecordDeliveryInput) (*Order, error)
	CreateInvoice(ctx context.Context, id uuid.UUID, input CreateInvoiceInput) (*Order, error)
	RecordPayment(ctx context.Context, id uuid.UUID, input PaymentInput) (*Order, error)
	ReconcileAdvance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	Get(ctx context.Context, id uuid.UUID) (Order, error)
	List(ctx context.Context) ([]Order, error)
}

type service struct {
	repo     *Repository
	resolver company.Resolver
	stock    stockReserver
	catalog  productCatalog
	acct     accounting.Queue
	logg     *logger.Logger
	metrics  *metrics.EngineMetrics
	now      func() time.Time
	newID    func() string
}

// ServiceParams wire the sales engine's collaborators.
type ServiceParams struct {
	Repo     *Repository
	Resolver company.Resolver
	Stock    stockReserver
	Catalog  productCatalog
	Acct     accounting.Queue
	Logger   *logger.Logger
	Metrics  *metrics.EngineMetrics
}

// NewService builds the sales engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
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
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		resolver: params.Resolver,
		stock:    params.Stock,
		catalog:  params.Catalog,
		acct:     params.Acct,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      time.Now,
		newID:    func() string { return "INV-" + uuid.NewString() },
	}, nil
}

// CreateQuotation opens a sales document. Quotations reserve nothing; stock is
// touched only at confirmation.
func (s *service) CreateQuotation(ctx context.Context, input CreateQuotationInput) (*Order, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	source, err := parseSourceWarehouse(input.Warehouse)
	if err != nil {
		return nil, err
	}
	if err := validateLineInputs(input.Items); err != nil {
		return nil, err
	}

	now := s.now()
	order := &Order{
		ID:              uuid.New(),
		CompanyID:       scope.ID,
		DocumentNo:      input.DocumentNo,
		CustomerID:      input.CustomerID,
		ContactID:       input.ContactID,
		CustomerName:    input.CustomerName,
		Status:          enums.SalesStatusQuotation,
		SourceWarehouse: source,
		Items:           buildLines(input.Items),
		DeliveryHistory: make([]DeliveryRecord, 0),
		InvoiceHistory:  make([]InvoiceRecord, 0),
		Logs:            make([]LogEntry, 0),
		PaymentStatus:   enums.PaymentStatusUnpaid,
		Historical:      input.Historical,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.GrandTotal = orderTotal(order.Items)
	order.appendLog("quotation_created", "", input.ActorID, now)

	if err := s.repo.Create(order); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithCompanyID(ctx, scope.ID.String())
	logCtx = s.logg.WithDocumentNo(logCtx, order.DocumentNo)
	s.logg.Info(logCtx, "quotation created")
	result := *order
	return &result, nil
}

// UpdateQuotation replaces the line set while the document is still a
// quotation. Confirmed orders are immutable except through their own
// operations.
func (s *service) UpdateQuotation(ctx context.Context, id uuid.UUID, input UpdateQuotationInput) (*Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	if err := validateLineInputs(input.Items); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(order *Order) error {
		if !order.Status.IsQuotation() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only a quotation can be edited")
		}
		order.Items = buildLines(input.Items)
		order.GrandTotal = orderTotal(order.Items)
		order.appendLog("quotation_updated", "", input.ActorID, s.now())
		return nil
	})
}

// SendQuotation marks the quotation as sent to the customer.
func (s *service) SendQuotation(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.mutate(ctx, id, func(order *Order) error {
		if order.Status != enums.SalesStatusQuotation {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot send quotation in status %s", order.Status))
		}
		order.Status = enums.SalesStatusQuotationSent
		order.appendLog("quotation_sent", "", uuid.Nil, s.now())
		return nil
	})
}

// ConfirmOrder promotes the quotation to a confirmed order, reserving the full
// ordered quantity of every tracked line in one atomic batch. If any line
// cannot be covered from sellable stock the whole confirmation fails and
// nothing is reserved.
func (s *service) ConfirmOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.mutate(ctx, id, func(order *Order) error {
		if !order.Status.IsQuotation() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot confirm order in status %s", order.Status))
		}

		inputs := make([]ledger.TransferInput, 0, len(order.Items))
		for _, item := range order.Items {
			if !s.participates(ctx, order, item.ProductID) {
				continue
			}
			inputs = append(inputs, ledger.TransferInput{
				ProductID: item.ProductID,
				From:      order.source(),
				To:        enums.WarehouseBooked,
				Qty:       item.OrderedQty,
				Reference: order.DocumentNo,
			})
		}
		if len(inputs) > 0 {
			if _, err := s.stock.TransferBatch(ctx, inputs); err != nil {
				return err
			}
		}
		order.Status = enums.SalesStatusOrder
		order.appendLog("order_confirmed", "", uuid.Nil, s.now())
		return nil
	})
}

// RecordDelivery notes goods handed to the customer. Deliveries are
// document-only; the reservation stays in place until invoicing. A single
// over-delivery rejects the whole note.
func (s *service) RecordDelivery(ctx context.Context, id uuid.UUID, input RecordDeliveryInput) (*Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	var noteWarehouse enums.Warehouse
	if input.Warehouse != "" {
		parsed, err := enums.ParseWarehouse(input.Warehouse)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid warehouse")
		}
		noteWarehouse = parsed
	}
	return s.mutate(ctx, id, func(order *Order) error {
		if !order.Status.IsConfirmed() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("delivery not allowed in status %s", order.Status))
		}

		var verr error
		violations := make([]ledger.LineViolation, 0)
		// Running totals keep duplicate lines for one product honest against
		// the ordered ceiling.
		pending := make(map[uuid.UUID]int)
		for i, line := range input.Lines {
			item := order.line(line.ProductID)
			if item == nil {
				reason := "product not on the order"
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: line.ProductID, Reason: reason})
				continue
			}
			projected := item.DeliveredQty + pending[line.ProductID] + line.Qty
			pending[line.ProductID] += line.Qty
			if projected > item.OrderedQty {
				reason := fmt.Sprintf("delivery of %d exceeds ordered %d (already delivered %d)",
					line.Qty, item.OrderedQty, projected-line.Qty)
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: line.ProductID, Reason: reason})
			}
		}
		if verr != nil {
			s.metrics.IncBatchRejection("record_delivery")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "delivery rejected").WithDetails(violations)
		}

		lines := make([]DeliveryLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			order.line(line.ProductID).DeliveredQty += line.Qty
			lines = append(lines, DeliveryLine{ProductID: line.ProductID, Qty: line.Qty})
		}
		now := s.now()
		order.DeliveryHistory = append(order.DeliveryHistory, DeliveryRecord{
			ID:          uuid.New(),
			Reference:   input.Reference,
			Warehouse:   noteWarehouse,
			Lines:       lines,
			ActorID:     input.ActorID,
			DeliveredAt: now,
		})
		recomputeStatus(order)
		order.appendLog("delivery_recorded", input.Reference, input.ActorID, now)
		return nil
	})
}

// CreateInvoice bills the customer incrementally. Invoiced stock leaves the
// reservation bucket for good; the posting to accounting is queued after the
// stock commit.
func (s *service) CreateInvoice(ctx context.Context, id uuid.UUID, input CreateInvoiceInput) (*Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(order *Order) error {
		if !order.Status.IsConfirmed() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("invoicing not allowed in status %s", order.Status))
		}

		var verr error
		violations := make([]ledger.LineViolation, 0)
		pending := make(map[uuid.UUID]int)
		for i, line := range input.Lines {
			item := order.line(line.ProductID)
			if item == nil {
				reason := "product not on the order"
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: line.ProductID, Reason: reason})
				continue
			}
			projected := item.InvoicedQty + pending[line.ProductID] + line.Qty
			pending[line.ProductID] += line.Qty
			if projected > item.OrderedQty {
				reason := fmt.Sprintf("invoicing %d exceeds ordered %d (already invoiced %d)",
					line.Qty, item.OrderedQty, projected-line.Qty)
				verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
				violations = append(violations, ledger.LineViolation{Line: i, ProductID: line.ProductID, Reason: reason})
			}
		}
		if verr != nil {
			s.metrics.IncBatchRejection("create_invoice")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "invoice rejected").WithDetails(violations)
		}

		movements := make([]ledger.Movement, 0, len(input.Lines))
		for _, line := range input.Lines {
			if !s.participates(ctx, order, line.ProductID) {
				continue
			}
			movements = append(movements, ledger.Movement{
				ProductID: line.ProductID,
				Warehouse: enums.WarehouseBooked,
				Qty:       line.Qty,
			})
		}
		if len(movements) > 0 {
			if err := s.stock.DeductBatch(ctx, movements); err != nil {
				return err
			}
		}

		amount := decimal.Zero
		tax := decimal.Zero
		lines := make([]InvoiceLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			item := order.line(line.ProductID)
			item.InvoicedQty += line.Qty
			amount = amount.Add(netUnitPrice(*item).Mul(decimal.NewFromInt(int64(line.Qty))))
			tax = tax.Add(lineTax(*item, line.Qty))
			lines = append(lines, InvoiceLine{ProductID: line.ProductID, Qty: line.Qty})
		}
		now := s.now()
		invoiceID := s.newID()
		order.InvoiceHistory = append(order.InvoiceHistory, InvoiceRecord{
			ID:         invoiceID,
			Lines:      lines,
			Amount:     amount,
			Tax:        tax,
			ActorID:    input.ActorID,
			InvoicedAt: now,
		})
		recomputeStatus(order)
		order.appendLog("invoice_created", invoiceID, input.ActorID, now)

		if !order.Historical {
			if err := s.acct.EnqueueRevenue(accounting.RevenuePosting{
				InvoiceID:    invoiceID,
				OrderNo:      order.DocumentNo,
				ContactID:    order.ContactID,
				CustomerName: order.CustomerName,
				Amount:       amount,
				Tax:          tax,
			}); err != nil {
				s.logg.Error(ctx, "revenue posting not queued", err)
			}
		}
		return nil
	})
}

// RecordPayment forwards a receipt to accounting and re-derives the payment
// status from the amount received so far.
func (s *service) RecordPayment(ctx context.Context, id uuid.UUID, input PaymentInput) (*Order, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	return s.mutate(ctx, id, func(order *Order) error {
		if order.Status == enums.SalesStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot record payment on a cancelled order")
		}
		order.AmountReceived = order.AmountReceived.Add(input.Amount)
		s.derivePaymentStatus(ctx, order)
		order.appendLog("payment_received", input.Reference, uuid.Nil, s.now())
		if !order.Historical {
			if err := s.acct.EnqueueInvoicePayment(accounting.Payment{
				DocumentID: order.ID,
				ContactID:  order.ContactID,
				Amount:     input.Amount,
				AccountID:  input.AccountID,
				Reference:  input.Reference,
			}); err != nil {
				s.logg.Error(ctx, "invoice payment not queued", err)
			}
		}
		return nil
	})
}

// ReconcileAdvance applies a previously-recorded customer advance to the
// order.
func (s *service) ReconcileAdvance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Order, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advance amount must be positive")
	}
	return s.mutate(ctx, id, func(order *Order) error {
		if order.Status == enums.SalesStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot reconcile against a cancelled order")
		}
		order.AmountReceived = order.AmountReceived.Add(amount)
		s.derivePaymentStatus(ctx, order)
		order.appendLog("advance_reconciled", "", uuid.Nil, s.now())
		if !order.Historical {
			if err := s.acct.EnqueueInvoiceAdvance(accounting.Advance{
				DocumentID: order.ID,
				ContactID:  order.ContactID,
				Amount:     amount,
			}); err != nil {
				s.logg.Error(ctx, "customer advance not queued", err)
			}
		}
		return nil
	})
}

// CancelOrder releases the unsold reservation back to the source warehouse and
// freezes the document. Invoiced quantities are sold and stay sold, so a
// partially billed order returns only the ordered minus invoiced remainder; a
// fully billed order can no longer be cancelled.
func (s *service) CancelOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.mutate(ctx, id, func(order *Order) error {
		switch {
		case order.Status.IsQuotation():
			// Nothing reserved yet.
		case order.Status.IsCancellable():
			inputs := make([]ledger.TransferInput, 0, len(order.Items))
			for _, item := range order.Items {
				remaining := item.OrderedQty - item.InvoicedQty
				if remaining <= 0 || !s.participates(ctx, order, item.ProductID) {
					continue
				}
				inputs = append(inputs, ledger.TransferInput{
					ProductID: item.ProductID,
					From:      enums.WarehouseBooked,
					To:        order.source(),
					Qty:       remaining,
					Reference: order.DocumentNo,
				})
			}
			if len(inputs) > 0 {
				if _, err := s.stock.TransferBatch(ctx, inputs); err != nil {
					return err
				}
			}
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel order in status %s", order.Status))
		}
		order.Status = enums.SalesStatusCancelled
		order.appendLog("order_cancelled", "", uuid.Nil, s.now())
		return nil
	})
}

// Get returns one order scoped to the active company.
func (s *service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return Order{}, err
	}
	return s.repo.Get(scope.ID, id)
}

// List returns the company's orders in creation order.
func (s *service) List(ctx context.Context) ([]Order, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	return s.repo.List(scope.ID), nil
}

func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(order *Order) error) (*Order, error) {
	scope, err := company.Require(ctx, s.resolver)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Mutate(scope.ID, id, fn); err != nil {
		return nil, err
	}
	order, err := s.repo.Get(scope.ID, id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// participates reports whether stock arithmetic applies to the line. Shadow
// documents and non-tracked or historical products are document-only.
func (s *service) participates(ctx context.Context, order *Order, productID uuid.UUID) bool {
	if order.Historical {
		return false
	}
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		return false
	}
	return product.ParticipatesInStock()
}

func (s *service) derivePaymentStatus(ctx context.Context, order *Order) {
	switch {
	case order.AmountReceived.IsZero():
		order.PaymentStatus = enums.PaymentStatusUnpaid
	case order.AmountReceived.GreaterThanOrEqual(order.GrandTotal):
		order.PaymentStatus = enums.PaymentStatusPaid
	default:
		order.PaymentStatus = enums.PaymentStatusPartial
	}
	if order.AmountReceived.GreaterThan(order.GrandTotal) {
		s.logg.Warn(s.logg.WithDocumentNo(ctx, order.DocumentNo), "amount received exceeds grand total")
	}
}

// recomputeStatus derives the order status from aggregate ordered, delivered
// and invoiced totals. Billing states outrank delivery states.
func recomputeStatus(order *Order) {
	ordered, delivered, invoiced := order.aggregates()
	switch {
	case invoiced >= ordered:
		order.Status = enums.SalesStatusFullyBilled
	case invoiced > 0:
		order.Status = enums.SalesStatusPartiallyBilled
	case delivered >= ordered:
		order.Status = enums.SalesStatusFullyDelivered
	case delivered > 0:
		order.Status = enums.SalesStatusPartiallyDelivered
	default:
		order.Status = enums.SalesStatusOrder
	}
}

func buildLines(inputs []QuotationLineInput) []LineItem {
	items := make([]LineItem, 0, len(inputs))
	for _, line := range inputs {
		items = append(items, LineItem{
			ProductID:   line.ProductID,
			Description: line.Description,
			OrderedQty:  line.OrderedQty,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			GSTEnabled:  line.GSTEnabled,
			GSTRate:     line.GSTRate,
		})
	}
	return items
}

// parseSourceWarehouse resolves the bucket confirmed orders reserve from.
// Only physical sellable buckets qualify.
func parseSourceWarehouse(value string) (enums.Warehouse, error) {
	if value == "" {
		return enums.WarehouseGodown, nil
	}
	warehouse, err := enums.ParseWarehouse(value)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid warehouse")
	}
	if !warehouse.IsSellable() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot sell out of the %s bucket", warehouse))
	}
	return warehouse, nil
}

func validateLineInputs(lines []QuotationLineInput) error {
	var verr error
	for i, line := range lines {
		if line.Discount.IsNegative() {
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: discount cannot be negative", i)))
		} else if line.Discount.GreaterThan(line.UnitPrice) {
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: discount exceeds unit price", i)))
		}
	}
	if verr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "quotation lines rejected")
	}
	return nil
}

func netUnitPrice(item LineItem) decimal.Decimal {
	return item.UnitPrice.Sub(item.Discount)
}

func orderTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		base := netUnitPrice(item).Mul(decimal.NewFromInt(int64(item.OrderedQty)))
		total = total.Add(base).Add(lineTaxFromBase(item, base))
	}
	return total
}

func lineTax(item LineItem, qty int) decimal.Decimal {
	base := netUnitPrice(item).Mul(decimal.NewFromInt(int64(qty)))
	return lineTaxFromBase(item, base)
}

func lineTaxFromBase(item LineItem, base decimal.Decimal) decimal.Decimal {
	if !item.GSTEnabled || item.GSTRate.IsZero() {
		return decimal.Zero
	}
	return base.Mul(item.GSTRate).Div(decimal.NewFromInt(100))
}

package sales

import (
	"context"
	"io"
	"testing"

	"github.com/furniq/furniq-backend/internal/accounting"
	"github.com/furniq/furniq-backend/internal/catalog"
	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/internal/ledger"
	"github.com/furniq/furniq-backend/pkg/enums"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubCatalog struct {
	products map[uuid.UUID]catalog.Product
}

func (s *stubCatalog) FindByID(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return catalog.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

type stubQueue struct {
	revenues []accounting.RevenuePosting
	payments []accounting.Payment
	advances []accounting.Advance
}

func (s *stubQueue) EnqueueCost(p accounting.CostPosting) error { return nil }
func (s *stubQueue) EnqueueRevenue(p accounting.RevenuePosting) error {
	s.revenues = append(s.revenues, p)
	return nil
}
func (s *stubQueue) EnqueueBillPayment(p accounting.Payment) error { return nil }
func (s *stubQueue) EnqueueInvoicePayment(p accounting.Payment) error {
	s.payments = append(s.payments, p)
	return nil
}
func (s *stubQueue) EnqueueBillAdvance(p accounting.Advance) error { return nil }
func (s *stubQueue) EnqueueInvoiceAdvance(p accounting.Advance) error {
	s.advances = append(s.advances, p)
	return nil
}

type salesFixture struct {
	service Service
	stock   ledger.Service
	queue   *stubQueue
	catalog *stubCatalog
	company uuid.UUID
}

func newSalesFixture(t *testing.T) *salesFixture {
	t.Helper()
	companyID := uuid.New()
	resolver := company.FixedResolver{Scope: company.Scope{ID: companyID, Name: "Test Co"}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	stock, err := ledger.NewService(resolver, logg, nil)
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}
	queue := &stubQueue{}
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{}}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(),
		Resolver: resolver,
		Stock:    stock,
		Catalog:  cat,
		Acct:     queue,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &salesFixture{service: svc, stock: stock, queue: queue, catalog: cat, company: companyID}
}

func (f *salesFixture) stockedProduct(t *testing.T, godownQty int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.catalog.products[id] = catalog.Product{ID: id, CompanyID: f.company, SKU: id.String(), TrackInventory: true}
	if godownQty > 0 {
		if err := f.stock.Increase(context.Background(), id, enums.WarehouseGodown, godownQty); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
	return id
}

func (f *salesFixture) rowQty(t *testing.T, productID uuid.UUID, warehouse enums.Warehouse) int {
	t.Helper()
	rows, err := f.stock.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	for _, row := range rows {
		if row.ProductID == productID && row.Warehouse == warehouse {
			return row.Quantity
		}
	}
	return 0
}

func (f *salesFixture) confirmedOrder(t *testing.T, productID uuid.UUID, qty int, price int64) *Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-" + uuid.NewString()[:8],
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Items: []QuotationLineInput{{
			ProductID:  productID,
			OrderedQty: qty,
			UnitPrice:  decimal.NewFromInt(price),
		}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	order, err = f.service.ConfirmOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	return order
}

func TestConfirmOrderReservesStock(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)

	order := f.confirmedOrder(t, productID, 6, 500)
	if order.Status != enums.SalesStatusOrder {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusOrder)
	}
	if got := f.rowQty(t, productID, enums.WarehouseGodown); got != 4 {
		t.Fatalf("godown = %d, want 4", got)
	}
	if got := f.rowQty(t, productID, enums.WarehouseBooked); got != 6 {
		t.Fatalf("booked = %d, want 6", got)
	}

	sellable, err := f.stock.SellableStock(context.Background(), productID)
	if err != nil {
		t.Fatalf("SellableStock: %v", err)
	}
	if sellable != 4 {
		t.Fatalf("sellable = %d, want 4", sellable)
	}
}

func TestConfirmOrderFailsAtomicallyOnShortStock(t *testing.T) {
	f := newSalesFixture(t)
	covered := f.stockedProduct(t, 10)
	short := f.stockedProduct(t, 2)

	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-1",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Items: []QuotationLineInput{
			{ProductID: covered, OrderedQty: 5, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: short, OrderedQty: 5, UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	_, err = f.service.ConfirmOrder(ctx, order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("got %v, want insufficient stock", err)
	}

	// Neither line moved. The covered line must not be reserved alone.
	if got := f.rowQty(t, covered, enums.WarehouseGodown); got != 10 {
		t.Fatalf("covered godown = %d, want 10", got)
	}
	if got := f.rowQty(t, covered, enums.WarehouseBooked); got != 0 {
		t.Fatalf("covered booked = %d, want 0", got)
	}
	after, getErr := f.service.Get(ctx, order.ID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if !after.Status.IsQuotation() {
		t.Fatalf("status = %s after failed confirm, want quotation", after.Status)
	}
}

func TestDeliveryIsDocumentOnly(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 6, 500)

	ctx := context.Background()
	order, err := f.service.RecordDelivery(ctx, order.ID, RecordDeliveryInput{
		Reference: "DN-1",
		Lines:     []DeliveryLineInput{{ProductID: productID, Qty: 4}},
	})
	if err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if order.Status != enums.SalesStatusPartiallyDelivered {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusPartiallyDelivered)
	}
	if order.Items[0].DeliveredQty != 4 {
		t.Fatalf("delivered = %d, want 4", order.Items[0].DeliveredQty)
	}
	// Delivered but uninvoiced stock stays reserved.
	if got := f.rowQty(t, productID, enums.WarehouseBooked); got != 6 {
		t.Fatalf("booked = %d after delivery, want 6", got)
	}

	_, err = f.service.RecordDelivery(ctx, order.ID, RecordDeliveryInput{
		Reference: "DN-2",
		Lines:     []DeliveryLineInput{{ProductID: productID, Qty: 3}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("over-delivery: got %v, want validation error", err)
	}
}

func TestInvoiceConsumesReservationAndPostsRevenue(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 6, 500)

	ctx := context.Background()
	order, err := f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 6}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if order.Status != enums.SalesStatusFullyBilled {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusFullyBilled)
	}
	if got := f.rowQty(t, productID, enums.WarehouseBooked); got != 0 {
		t.Fatalf("booked = %d after invoicing, want 0", got)
	}
	total, err := f.stock.TotalStock(ctx, productID)
	if err != nil {
		t.Fatalf("TotalStock: %v", err)
	}
	if total != 4 {
		t.Fatalf("total stock = %d, want 4", total)
	}

	if len(f.queue.revenues) != 1 {
		t.Fatalf("revenue postings = %d, want 1", len(f.queue.revenues))
	}
	posting := f.queue.revenues[0]
	if want := decimal.NewFromInt(3000); !posting.Amount.Equal(want) {
		t.Fatalf("posted amount = %s, want %s", posting.Amount, want)
	}
	if posting.OrderNo != order.DocumentNo {
		t.Fatalf("posting order no = %q, want %q", posting.OrderNo, order.DocumentNo)
	}
	if len(order.InvoiceHistory) != 1 || order.InvoiceHistory[0].ID == "" {
		t.Fatalf("invoice history = %+v", order.InvoiceHistory)
	}
}

func TestInvoiceAppliesGST(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 4)

	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-GST",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Items: []QuotationLineInput{{
			ProductID:  productID,
			OrderedQty: 4,
			UnitPrice:  decimal.NewFromInt(1000),
			GSTEnabled: true,
			GSTRate:    decimal.NewFromInt(18),
		}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if want := decimal.NewFromInt(4720); !order.GrandTotal.Equal(want) {
		t.Fatalf("grand total = %s, want %s", order.GrandTotal, want)
	}
	if _, err := f.service.ConfirmOrder(ctx, order.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}

	order, err = f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	record := order.InvoiceHistory[0]
	if want := decimal.NewFromInt(2000); !record.Amount.Equal(want) {
		t.Fatalf("invoice amount = %s, want %s", record.Amount, want)
	}
	if want := decimal.NewFromInt(360); !record.Tax.Equal(want) {
		t.Fatalf("invoice tax = %s, want %s", record.Tax, want)
	}
	if order.Status != enums.SalesStatusPartiallyBilled {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusPartiallyBilled)
	}
}

func TestLineDiscountReducesTotalsAndTax(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 2)

	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-DISC",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Items: []QuotationLineInput{{
			ProductID:  productID,
			OrderedQty: 2,
			UnitPrice:  decimal.NewFromInt(1000),
			Discount:   decimal.NewFromInt(100),
			GSTEnabled: true,
			GSTRate:    decimal.NewFromInt(10),
		}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	// 2 x (1000 - 100) = 1800 taxable, plus 10% GST.
	if want := decimal.NewFromInt(1980); !order.GrandTotal.Equal(want) {
		t.Fatalf("grand total = %s, want %s", order.GrandTotal, want)
	}
	if _, err := f.service.ConfirmOrder(ctx, order.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}

	order, err = f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	record := order.InvoiceHistory[0]
	if want := decimal.NewFromInt(1800); !record.Amount.Equal(want) {
		t.Fatalf("invoice amount = %s, want %s", record.Amount, want)
	}
	if want := decimal.NewFromInt(180); !record.Tax.Equal(want) {
		t.Fatalf("invoice tax = %s, want %s", record.Tax, want)
	}

	_, err = f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-DISC2",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Items: []QuotationLineInput{{
			ProductID:  productID,
			OrderedQty: 1,
			UnitPrice:  decimal.NewFromInt(100),
			Discount:   decimal.NewFromInt(150),
		}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("discount above price: got %v, want validation error", err)
	}
}

func TestOrderReservesFromItsSourceWarehouse(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 3)
	ctx := context.Background()
	if err := f.stock.Increase(ctx, productID, enums.WarehouseDisplay, 5); err != nil {
		t.Fatalf("seed display stock: %v", err)
	}

	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-DSP",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Warehouse:    "display",
		Items:        []QuotationLineInput{{ProductID: productID, OrderedQty: 4, UnitPrice: decimal.NewFromInt(200)}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if _, err := f.service.ConfirmOrder(ctx, order.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	if got := f.rowQty(t, productID, enums.WarehouseDisplay); got != 1 {
		t.Fatalf("display = %d, want 1", got)
	}
	if got := f.rowQty(t, productID, enums.WarehouseGodown); got != 3 {
		t.Fatalf("godown = %d, want 3", got)
	}

	order, err = f.service.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if got := f.rowQty(t, productID, enums.WarehouseDisplay); got != 5 {
		t.Fatalf("display = %d after cancel, want 5", got)
	}

	_, err = f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-BAD",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Warehouse:    "booked",
		Items:        []QuotationLineInput{{ProductID: productID, OrderedQty: 1, UnitPrice: decimal.NewFromInt(200)}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("booked source: got %v, want validation error", err)
	}
}

func TestInvoiceCannotExceedOrdered(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 6, 500)

	ctx := context.Background()
	if _, err := f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 4}},
	}); err != nil {
		t.Fatalf("first invoice: %v", err)
	}

	_, err := f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 3}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
	// Rejection left the remaining reservation untouched.
	if got := f.rowQty(t, productID, enums.WarehouseBooked); got != 2 {
		t.Fatalf("booked = %d, want 2", got)
	}
}

func TestCancelReleasesUninvoicedReservation(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 6, 500)

	ctx := context.Background()
	order, err := f.service.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != enums.SalesStatusCancelled {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusCancelled)
	}
	if got := f.rowQty(t, productID, enums.WarehouseGodown); got != 10 {
		t.Fatalf("godown = %d after cancel, want 10", got)
	}
	if got := f.rowQty(t, productID, enums.WarehouseBooked); got != 0 {
		t.Fatalf("booked = %d after cancel, want 0", got)
	}

	if _, err := f.service.RecordDelivery(ctx, order.ID, RecordDeliveryInput{
		Reference: "DN-1",
		Lines:     []DeliveryLineInput{{ProductID: productID, Qty: 1}},
	}); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("delivery on cancelled: got %v, want state conflict", err)
	}
}

func TestCancelAfterPartialBillingReturnsRemainder(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 5, 500)

	ctx := context.Background()
	if _, err := f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 2}},
	}); err != nil {
		t.Fatalf("invoice: %v", err)
	}

	// Two units are sold for good; cancellation returns the other three.
	order, err := f.service.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != enums.SalesStatusCancelled {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusCancelled)
	}
	if got := f.rowQty(t, productID, enums.WarehouseBooked); got != 0 {
		t.Fatalf("booked = %d after cancel, want 0", got)
	}
	if got := f.rowQty(t, productID, enums.WarehouseGodown); got != 8 {
		t.Fatalf("godown = %d after cancel, want 8", got)
	}
}

func TestFullyBilledOrderCannotBeCancelled(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 2, 500)

	ctx := context.Background()
	if _, err := f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 2}},
	}); err != nil {
		t.Fatalf("invoice: %v", err)
	}

	if _, err := f.service.CancelOrder(ctx, order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("got %v, want state conflict", err)
	}
}

func TestDeliveryRejectsDuplicateLinesExceedingOrdered(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 6, 500)

	ctx := context.Background()
	_, err := f.service.RecordDelivery(ctx, order.ID, RecordDeliveryInput{
		Reference: "DN-DUP",
		Lines: []DeliveryLineInput{
			{ProductID: productID, Qty: 4},
			{ProductID: productID, Qty: 4},
		},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("got %v, want validation error", err)
	}

	after, err := f.service.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Items[0].DeliveredQty != 0 {
		t.Fatalf("delivered = %d after rejected note, want 0", after.Items[0].DeliveredQty)
	}
	if len(after.DeliveryHistory) != 0 {
		t.Fatalf("delivery history = %d records, want none", len(after.DeliveryHistory))
	}
}

func TestInvoiceRejectsDuplicateLinesExceedingOrdered(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 0)

	// A shadow order has no reservation backstop in the ledger, so the
	// document-level ceiling is the only guard.
	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-DUP",
		CustomerID:   uuid.New(),
		CustomerName: "Legacy Buyer",
		Historical:   true,
		Items:        []QuotationLineInput{{ProductID: productID, OrderedQty: 5, UnitPrice: decimal.NewFromInt(100)}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if _, err := f.service.ConfirmOrder(ctx, order.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}

	_, err = f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{
			{ProductID: productID, Qty: 3},
			{ProductID: productID, Qty: 3},
		},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("got %v, want validation error", err)
	}

	after, err := f.service.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Items[0].InvoicedQty != 0 {
		t.Fatalf("invoiced = %d after rejected invoice, want 0", after.Items[0].InvoicedQty)
	}
}

func TestQuotationLifecycle(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)

	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-Q1",
		CustomerID:   uuid.New(),
		CustomerName: "Greenfield Interiors",
		Items:        []QuotationLineInput{{ProductID: productID, OrderedQty: 2, UnitPrice: decimal.NewFromInt(100)}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	order, err = f.service.UpdateQuotation(ctx, order.ID, UpdateQuotationInput{
		Items: []QuotationLineInput{{ProductID: productID, OrderedQty: 3, UnitPrice: decimal.NewFromInt(150)}},
	})
	if err != nil {
		t.Fatalf("UpdateQuotation: %v", err)
	}
	if want := decimal.NewFromInt(450); !order.GrandTotal.Equal(want) {
		t.Fatalf("grand total = %s, want %s", order.GrandTotal, want)
	}

	order, err = f.service.SendQuotation(ctx, order.ID)
	if err != nil {
		t.Fatalf("SendQuotation: %v", err)
	}
	if order.Status != enums.SalesStatusQuotationSent {
		t.Fatalf("status = %s, want %s", order.Status, enums.SalesStatusQuotationSent)
	}

	order, err = f.service.ConfirmOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	if _, err := f.service.UpdateQuotation(ctx, order.ID, UpdateQuotationInput{
		Items: []QuotationLineInput{{ProductID: productID, OrderedQty: 1, UnitPrice: decimal.NewFromInt(100)}},
	}); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("edit after confirm: got %v, want state conflict", err)
	}
	if len(order.Logs) < 3 {
		t.Fatalf("logs = %d entries, want activity trail", len(order.Logs))
	}
}

func TestHistoricalOrderSkipsStockAndAccounting(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 0)

	ctx := context.Background()
	order, err := f.service.CreateQuotation(ctx, CreateQuotationInput{
		DocumentNo:   "SO-H1",
		CustomerID:   uuid.New(),
		CustomerName: "Legacy Buyer",
		Historical:   true,
		Items:        []QuotationLineInput{{ProductID: productID, OrderedQty: 5, UnitPrice: decimal.NewFromInt(100)}},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	// Confirmation succeeds with zero stock because shadow orders reserve nothing.
	if _, err := f.service.ConfirmOrder(ctx, order.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	order, err = f.service.CreateInvoice(ctx, order.ID, CreateInvoiceInput{
		Lines: []InvoiceLineInput{{ProductID: productID, Qty: 5}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if order.Items[0].InvoicedQty != 5 {
		t.Fatalf("document arithmetic skipped on shadow order")
	}
	if len(f.queue.revenues) != 0 {
		t.Fatalf("revenue posted for shadow order")
	}
}

func TestSalesPaymentStatusDerivation(t *testing.T) {
	f := newSalesFixture(t)
	productID := f.stockedProduct(t, 10)
	order := f.confirmedOrder(t, productID, 4, 250)

	ctx := context.Background()
	order, err := f.service.RecordPayment(ctx, order.ID, PaymentInput{Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPartial {
		t.Fatalf("payment status = %s, want %s", order.PaymentStatus, enums.PaymentStatusPartial)
	}

	order, err = f.service.ReconcileAdvance(ctx, order.ID, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("ReconcileAdvance: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want %s", order.PaymentStatus, enums.PaymentStatusPaid)
	}
	if len(f.queue.payments) != 1 || len(f.queue.advances) != 1 {
		t.Fatalf("queued payments = %d, advances = %d", len(f.queue.payments), len(f.queue.advances))
	}
}

func TestSalesOperationsRequireCompanyScope(t *testing.T) {
	f := newSalesFixture(t)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(),
		Resolver: company.FixedResolver{},
		Stock:    f.stock,
		Catalog:  f.catalog,
		Acct:     f.queue,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.CreateQuotation(context.Background(), CreateQuotationInput{
		DocumentNo:   "SO-1",
		CustomerID:   uuid.New(),
		CustomerName: "Acme",
		Items:        []QuotationLineInput{{ProductID: uuid.New(), OrderedQty: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeMissingScope) {
		t.Fatalf("got %v, want missing scope", err)
	}
}

package importer

import (
	"context"
	"io"
	"testing"

	"github.com/furniq/furniq-backend/internal/catalog"
	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/internal/ledger"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/google/uuid"
)

type importFixture struct {
	importer *Importer
	catalog  *catalog.Repository
	stock    ledger.Service
	ctx      context.Context
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	resolver := company.FixedResolver{Scope: company.Scope{ID: uuid.New(), Name: "Test Co"}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	catalogRepo, err := catalog.NewRepository(resolver)
	if err != nil {
		t.Fatalf("catalog.NewRepository: %v", err)
	}
	stock, err := ledger.NewService(resolver, logg, nil)
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}
	imp, err := New(ImporterParams{
		Catalog:  catalogRepo,
		Stock:    stock,
		Resolver: resolver,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &importFixture{importer: imp, catalog: catalogRepo, stock: stock, ctx: context.Background()}
}

func TestImportProducts(t *testing.T) {
	f := newImportFixture(t)

	products, err := f.importer.ImportProducts(f.ctx, []map[string]any{
		{"sku": "TEAK-TABLE-6", "name": "Teak Dining Table", "category": "tables", "unit_price": 24000, "track_inventory": true},
		{"sku": "OAK-CHAIR", "name": "Oak Chair", "track_inventory": true},
		{"sku": "OLD-SOFA", "name": "Migrated Sofa", "historical": true},
	})
	if err != nil {
		t.Fatalf("ImportProducts: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("imported = %d, want 3", len(products))
	}

	product, err := f.catalog.FindBySKU(f.ctx, "TEAK-TABLE-6")
	if err != nil {
		t.Fatalf("FindBySKU: %v", err)
	}
	if !product.TrackInventory || product.Category != "tables" {
		t.Fatalf("product = %+v", product)
	}
	active, err := f.catalog.ListActive(f.ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want historical row excluded", len(active))
	}
}

func TestImportProductsRejectsAllRowsOnAnyError(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.importer.ImportProducts(f.ctx, []map[string]any{
		{"sku": "GOOD-1", "name": "Good"},
		{"sku": "", "name": "No SKU"},
		{"sku": "GOOD-1", "name": "Duplicate"},
		{"sku": "BAD-KEY", "name": "Stray", "colour": "teal"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("got %v, want validation error", err)
	}
	rowErrors, ok := typed.Details().([]RowError)
	if !ok || len(rowErrors) != 3 {
		t.Fatalf("row errors = %+v, want all three bad rows", typed.Details())
	}

	// All-or-nothing: the good row must not have been registered.
	if _, err := f.catalog.FindBySKU(f.ctx, "GOOD-1"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("good row registered despite rejection: %v", err)
	}
}

func TestImportOpeningStock(t *testing.T) {
	f := newImportFixture(t)
	if _, err := f.importer.ImportProducts(f.ctx, []map[string]any{
		{"sku": "TEAK-TABLE-6", "name": "Teak Dining Table", "track_inventory": true},
	}); err != nil {
		t.Fatalf("ImportProducts: %v", err)
	}

	actorID := uuid.New()
	err := f.importer.ImportOpeningStock(f.ctx, []map[string]any{
		{"sku": "TEAK-TABLE-6", "warehouse": "godown", "qty": 8},
		{"sku": "TEAK-TABLE-6", "warehouse": "display", "qty": 2},
	}, actorID)
	if err != nil {
		t.Fatalf("ImportOpeningStock: %v", err)
	}

	product, _ := f.catalog.FindBySKU(f.ctx, "TEAK-TABLE-6")
	total, err := f.stock.TotalStock(f.ctx, product.ID)
	if err != nil {
		t.Fatalf("TotalStock: %v", err)
	}
	if total != 10 {
		t.Fatalf("total = %d, want 10", total)
	}

	// Imports land as manual receipts in the audit trail.
	entries, err := f.stock.ManualEntries(f.ctx)
	if err != nil {
		t.Fatalf("ManualEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].Reference != "opening stock import" || entries[0].ActorID != actorID {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestImportOpeningStockRejectsBadRows(t *testing.T) {
	f := newImportFixture(t)
	if _, err := f.importer.ImportProducts(f.ctx, []map[string]any{
		{"sku": "TRACKED", "name": "Tracked", "track_inventory": true},
		{"sku": "UNTRACKED", "name": "Untracked"},
	}); err != nil {
		t.Fatalf("ImportProducts: %v", err)
	}

	err := f.importer.ImportOpeningStock(f.ctx, []map[string]any{
		{"sku": "TRACKED", "warehouse": "godown", "qty": 5},
		{"sku": "MISSING", "warehouse": "godown", "qty": 1},
		{"sku": "TRACKED", "warehouse": "attic", "qty": 1},
		{"sku": "TRACKED", "warehouse": "historical", "qty": 1},
		{"sku": "UNTRACKED", "warehouse": "godown", "qty": 1},
		{"sku": "TRACKED", "warehouse": "godown", "qty": 0},
	}, uuid.Nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("got %v, want validation error", err)
	}
	rowErrors, ok := typed.Details().([]RowError)
	if !ok || len(rowErrors) != 5 {
		t.Fatalf("row errors = %+v, want five bad rows", typed.Details())
	}

	// All-or-nothing: the good row must not have been applied.
	product, _ := f.catalog.FindBySKU(f.ctx, "TRACKED")
	total, _ := f.stock.TotalStock(f.ctx, product.ID)
	if total != 0 {
		t.Fatalf("stock applied despite rejection: %d", total)
	}
}

func TestImportRequiresScope(t *testing.T) {
	f := newImportFixture(t)
	imp, err := New(ImporterParams{
		Catalog:  f.catalog,
		Stock:    f.stock,
		Resolver: company.FixedResolver{},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := imp.ImportProducts(context.Background(), []map[string]any{{"sku": "X", "name": "X"}}); !pkgerrors.HasCode(err, pkgerrors.CodeMissingScope) {
		t.Fatalf("got %v, want missing scope", err)
	}
	if err := imp.ImportOpeningStock(context.Background(), []map[string]any{{"sku": "X", "warehouse": "godown", "qty": 1}}, uuid.Nil); !pkgerrors.HasCode(err, pkgerrors.CodeMissingScope) {
		t.Fatalf("got %v, want missing scope", err)
	}
}

package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/furniq/furniq-backend/internal/catalog"
	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/internal/ledger"
	"github.com/furniq/furniq-backend/pkg/enums"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/furniq/furniq-backend/pkg/validators"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// ProductRow is one strictly-parsed product of a bulk import.
type ProductRow struct {
	SKU            string          `json:"sku" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Category       string          `json:"category"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TrackInventory bool            `json:"track_inventory"`
	Historical     bool            `json:"historical"`
}

// OpeningStockRow is one strictly-parsed opening balance of a bulk import.
type OpeningStockRow struct {
	SKU       string `json:"sku" validate:"required"`
	Warehouse string `json:"warehouse" validate:"required"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

// RowError points at one rejected row of a bulk import.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type productRegistry interface {
	Create(ctx context.Context, product catalog.Product) (catalog.Product, error)
	FindBySKU(ctx context.Context, sku string) (catalog.Product, error)
}

type stockRecorder interface {
	RecordManualEntry(ctx context.Context, input ledger.ManualEntryInput) (*ledger.ManualEntry, error)
}

// Importer turns loosely-typed bulk rows into engine state. Parsing is strict:
// unknown keys, malformed values, and failed validation all reject the import,
// and the caller receives every bad row at once, not just the first.
type Importer struct {
	catalog  productRegistry
	stock    stockRecorder
	resolver company.Resolver
	logg     *logger.Logger
}

// ImporterParams wire the importer's collaborators.
type ImporterParams struct {
	Catalog  productRegistry
	Stock    stockRecorder
	Resolver company.Resolver
	Logger   *logger.Logger
}

// New builds a bulk importer with the required dependencies.
func New(params ImporterParams) (*Importer, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("product registry required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("company resolver required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Importer{
		catalog:  params.Catalog,
		stock:    params.Stock,
		resolver: params.Resolver,
		logg:     params.Logger,
	}, nil
}

// decodeRow round-trips the loose map through strict JSON decoding so unknown
// keys and mistyped values fail the same way API input would.
func decodeRow(row map[string]any, dest any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return validators.DecodeJSON(bytes.NewReader(raw), dest)
}

// ImportProducts registers every row or none.
func (i *Importer) ImportProducts(ctx context.Context, rows []map[string]any) ([]catalog.Product, error) {
	scope, err := company.Require(ctx, i.resolver)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no rows to import")
	}

	parsed := make([]ProductRow, 0, len(rows))
	var verr error
	rowErrors := make([]RowError, 0)
	seen := make(map[string]int)
	for n, row := range rows {
		var dto ProductRow
		if err := decodeRow(row, &dto); err != nil {
			verr = multierr.Append(verr, err)
			rowErrors = append(rowErrors, RowError{Row: n, Reason: err.Error()})
			continue
		}
		if prev, dup := seen[dto.SKU]; dup {
			reason := fmt.Sprintf("sku %q duplicates row %d", dto.SKU, prev)
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			rowErrors = append(rowErrors, RowError{Row: n, Reason: reason})
			continue
		}
		seen[dto.SKU] = n
		parsed = append(parsed, dto)
	}
	if verr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "product import rejected").WithDetails(rowErrors)
	}

	products := make([]catalog.Product, 0, len(parsed))
	for n, dto := range parsed {
		product, err := i.catalog.Create(ctx, catalog.Product{
			SKU:            dto.SKU,
			Name:           dto.Name,
			Category:       dto.Category,
			UnitPrice:      dto.UnitPrice,
			TrackInventory: dto.TrackInventory,
			Historical:     dto.Historical,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("row %d: register product", n)).
				WithDetails([]RowError{{Row: n, Reason: err.Error()}})
		}
		products = append(products, product)
	}
	logCtx := i.logg.WithCompanyID(ctx, scope.ID.String())
	i.logg.Info(i.logg.WithField(logCtx, "count", len(products)), "products imported")
	return products, nil
}

// ImportOpeningStock applies every row or none. Balances land as manual
// receipt entries so the import shows up in the audit trail.
func (i *Importer) ImportOpeningStock(ctx context.Context, rows []map[string]any, actorID uuid.UUID) error {
	scope, err := company.Require(ctx, i.resolver)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no rows to import")
	}

	type resolved struct {
		productID uuid.UUID
		warehouse enums.Warehouse
		qty       int
	}
	parsed := make([]resolved, 0, len(rows))
	var verr error
	rowErrors := make([]RowError, 0)
	for n, row := range rows {
		var dto OpeningStockRow
		if err := decodeRow(row, &dto); err != nil {
			verr = multierr.Append(verr, err)
			rowErrors = append(rowErrors, RowError{Row: n, Reason: err.Error()})
			continue
		}
		warehouse, err := enums.ParseWarehouse(dto.Warehouse)
		if err != nil {
			verr = multierr.Append(verr, err)
			rowErrors = append(rowErrors, RowError{Row: n, Reason: err.Error()})
			continue
		}
		if warehouse == enums.WarehouseHistorical {
			reason := "opening stock cannot target the archive bucket"
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			rowErrors = append(rowErrors, RowError{Row: n, Reason: reason})
			continue
		}
		product, err := i.catalog.FindBySKU(ctx, dto.SKU)
		if err != nil {
			reason := fmt.Sprintf("unknown sku %q", dto.SKU)
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			rowErrors = append(rowErrors, RowError{Row: n, Reason: reason})
			continue
		}
		if !product.ParticipatesInStock() {
			reason := fmt.Sprintf("sku %q does not track inventory", dto.SKU)
			verr = multierr.Append(verr, pkgerrors.New(pkgerrors.CodeValidation, reason))
			rowErrors = append(rowErrors, RowError{Row: n, Reason: reason})
			continue
		}
		parsed = append(parsed, resolved{productID: product.ID, warehouse: warehouse, qty: dto.Qty})
	}
	if verr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "opening stock import rejected").WithDetails(rowErrors)
	}

	for _, entry := range parsed {
		if _, err := i.stock.RecordManualEntry(ctx, ledger.ManualEntryInput{
			ProductID: entry.productID,
			Kind:      enums.ManualEntryReceipt,
			Warehouse: entry.warehouse,
			Qty:       entry.qty,
			Reference: "opening stock import",
			ActorID:   actorID,
		}); err != nil {
			return err
		}
	}
	logCtx := i.logg.WithCompanyID(ctx, scope.ID.String())
	i.logg.Info(i.logg.WithField(logCtx, "count", len(parsed)), "opening stock imported")
	return nil
}

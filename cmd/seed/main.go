// Package main provides a CLI tool for seeding a tenant with demo pharmacy data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/app"
	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/infrastructure/config"
	"medcore/pkg/logger"
)

type conversionSeed struct {
	from, to string
	factor   string
}

type batchSeed struct {
	number    string
	quantity  string // base units
	unitCost  string
	salePrice string
	mrp       string
	expiresIn time.Duration
}

type productSeed struct {
	product.CreateInput
	conversions []conversionSeed
	batches     []batchSeed
}

var demoCatalog = []productSeed{
	{
		CreateInput: product.CreateInput{SKU: "PCM-500", Name: "Paracetamol 500mg", BaseUnit: "tablet",
			DefaultCost: types.MustMoney("0.80"), ListPrice: types.MustMoney("1.20")},
		conversions: []conversionSeed{{"strip", "tablet", "10"}, {"box", "strip", "10"}},
		batches: []batchSeed{
			{"PCM-A1", "500", "0.80", "1.20", "1.50", 90 * 24 * time.Hour},
			{"PCM-B7", "1000", "0.75", "1.20", "1.50", 400 * 24 * time.Hour},
		},
	},
	{
		CreateInput: product.CreateInput{SKU: "AMX-250", Name: "Amoxicillin 250mg", BaseUnit: "capsule",
			DefaultCost: types.MustMoney("2.10"), ListPrice: types.MustMoney("3.00")},
		conversions: []conversionSeed{{"strip", "capsule", "15"}},
		batches: []batchSeed{
			{"AMX-0423", "300", "2.10", "3.00", "3.40", 180 * 24 * time.Hour},
		},
	},
	{
		CreateInput: product.CreateInput{SKU: "NS-500", Name: "Normal Saline 500ml", BaseUnit: "bottle",
			DefaultCost: types.MustMoney("18"), ListPrice: types.MustMoney("25")},
		conversions: []conversionSeed{{"case", "bottle", "24"}},
		batches: []batchSeed{
			{"NS-2291", "96", "18", "25", "28", 365 * 24 * time.Hour},
		},
	},
	{
		CreateInput: product.CreateInput{SKU: "OPD-CONSULT", Name: "OPD Consultation", BaseUnit: "visit",
			ListPrice: types.MustMoney("500"), Service: true},
	},
}

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	tenantFlag := flag.String("tenant", "", "existing tenant id; a demo tenant is registered when empty")
	userID := flag.String("user", "seed", "user recorded on the seeded rows")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.App.Store != config.StorePostgres {
		log.Fatalw("seeding requires the postgres store", "store", cfg.App.Store)
	}

	ctx := context.Background()

	backend, err := app.NewPostgresBackend(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer backend.Close()

	services, err := app.NewServices(backend, cfg, nil)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer services.Close()

	log.Info("connected to database")

	tenantID, err := resolveTenant(ctx, backend.Tenants, *tenantFlag)
	if err != nil {
		log.Fatalw("failed to resolve tenant", "error", err)
	}

	tc := tenant.New(tenantID, *userID)
	if err := seedCatalog(ctx, services, tc, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Infow("seeding completed successfully", "tenant_id", tenantID)
}

func resolveTenant(ctx context.Context, registry *tenant.PostgresRegistry, raw string) (id.ID, error) {
	if raw != "" {
		tenantID, err := id.Parse(raw)
		if err != nil {
			return id.Nil(), fmt.Errorf("parse tenant id: %w", err)
		}
		if _, err := registry.GetByID(ctx, tenantID); err != nil {
			return id.Nil(), err
		}
		return tenantID, nil
	}

	t := &tenant.Tenant{
		ID:          id.New(),
		Slug:        fmt.Sprintf("demo-%d", time.Now().Unix()),
		DisplayName: "Demo Hospital",
		Status:      tenant.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := registry.Create(ctx, t); err != nil {
		return id.Nil(), err
	}
	logger.Info(ctx, "demo tenant registered", "tenant_id", t.ID, "slug", t.Slug)
	return t.ID, nil
}

func seedCatalog(ctx context.Context, svc *app.Services, tc tenant.Context, log *logger.Logger) error {
	log.Info("seeding demo catalog...")
	now := time.Now().UTC()

	for _, seed := range demoCatalog {
		p, err := svc.Products.GetBySKU(ctx, tc, seed.SKU)
		if err == nil {
			log.Infow("product already exists", "sku", seed.SKU, "product_id", p.ID)
			continue
		}
		if !apperror.IsNotFound(err) {
			return fmt.Errorf("lookup %s: %w", seed.SKU, err)
		}

		p, err = svc.Products.Create(ctx, tc, seed.CreateInput)
		if err != nil {
			return fmt.Errorf("create %s: %w", seed.SKU, err)
		}

		for _, c := range seed.conversions {
			if _, err := svc.Units.Declare(ctx, tc, p.ID, c.from, c.to, decimal.RequireFromString(c.factor)); err != nil {
				return fmt.Errorf("declare %s %s->%s: %w", seed.SKU, c.from, c.to, err)
			}
		}

		for _, b := range seed.batches {
			expiry := now.Add(b.expiresIn)
			res, err := svc.Stock.Restock(ctx, tc, restockInput(p.ID, b, &expiry))
			if err != nil {
				return fmt.Errorf("restock %s/%s: %w", seed.SKU, b.number, err)
			}
			for _, w := range res.Warnings {
				log.Warnw("pricing warning", "batch", b.number, "warning", w)
			}
		}

		log.Infow("product seeded", "sku", seed.SKU, "product_id", p.ID,
			"conversions", len(seed.conversions), "batches", len(seed.batches))
	}
	return nil
}

func restockInput(productID id.ID, b batchSeed, expiry *time.Time) batch.RestockInput {
	return batch.RestockInput{
		ProductID:   productID,
		BatchNumber: b.number,
		Quantity:    types.MustQuantity(b.quantity),
		UnitCost:    types.MustMoney(b.unitCost),
		SalePrice:   types.MustMoney(b.salePrice),
		MRP:         decimal.NewNullDecimal(types.MustMoney(b.mrp)),
		ExpiryDate:  expiry,
	}
}

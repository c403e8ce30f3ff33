// Package main provides CLI for tenant management.
// Usage: tenant create --slug apollo --name "Apollo Hospitals"
//
//	tenant list
//	tenant add-company --tenant <tenant-id> --name "Apollo Pharmacy"
//	tenant suspend <tenant-id>
//	tenant token --tenant <tenant-id> --user <user-id>
//	tenant set-counter --tenant <tenant-id> --prefix INV --year 2026 --value 1200
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"medcore/internal/core/id"
	corenumerator "medcore/internal/core/numerator"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/auth"
	"medcore/internal/infrastructure/config"
	"medcore/internal/infrastructure/numerator"
	"medcore/internal/infrastructure/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch os.Args[1] {
	case "create":
		createTenant(ctx, args)
	case "list":
		listTenants(ctx, args)
	case "add-company":
		addCompany(ctx, args)
	case "suspend":
		setStatus(ctx, args, tenant.StatusSuspended)
	case "activate":
		setStatus(ctx, args, tenant.StatusActive)
	case "token":
		issueToken(args)
	case "set-counter":
		setCounter(ctx, args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`medcore tenant management CLI

Usage:
  tenant <command> [options]

Commands:
  create       Register a new tenant
  list         List tenants and their companies
  add-company  Add a company (hospital, pharmacy, lab) to a tenant
  suspend      Suspend a tenant
  activate     Activate a suspended tenant
  token        Issue a bearer token for a caller
  set-counter  Set a document number counter (legacy import)
  help         Show this help

Every command accepts --config <path>; settings come from config.toml and
MEDCORE_* environment variables (MEDCORE_DATABASE_URL, MEDCORE_AUTH_SECRET).

Examples:
  tenant create --slug apollo --name "Apollo Hospitals"
  tenant list
  tenant add-company --tenant <tenant-uuid> --name "Apollo Pharmacy"
  tenant suspend <tenant-uuid>
  tenant activate <tenant-uuid>
  tenant token --tenant <tenant-uuid> --user cashier-01 [--company <company-uuid>] [--ttl 8h]
  tenant set-counter --tenant <tenant-uuid> [--company <company-uuid>] --prefix INV --year 2026 --value 1200`)
}

func fail(format string, a ...any) {
	fmt.Printf("Error: "+format+"\n", a...)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fail("%v", err)
	}
	return cfg
}

func openPool(ctx context.Context, cfg *config.Config) *postgres.Pool {
	if cfg.Database.URL == "" {
		fail("database.url (MEDCORE_DATABASE_URL) is required")
	}
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.ApplicationName = cfg.App.Name + "-tenant-cli"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		fail("connecting to database: %v", err)
	}
	return pool
}

func openRegistry(ctx context.Context, cfg *config.Config) (*tenant.PostgresRegistry, func()) {
	pool := openPool(ctx, cfg)
	return tenant.NewPostgresRegistry(pool.Pool), pool.Close
}

func parseID(label, s string) id.ID {
	v, err := id.Parse(s)
	if err != nil || id.IsNil(v) {
		fail("invalid %s id %q", label, s)
	}
	return v
}

func createTenant(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	slug := fs.String("slug", "", "unique tenant slug")
	name := fs.String("name", "", "display name")
	_ = fs.Parse(args)

	if *slug == "" || *name == "" {
		fmt.Println("Error: --slug and --name are required")
		fmt.Println("Usage: tenant create --slug <slug> --name <name>")
		os.Exit(1)
	}

	registry, closeFn := openRegistry(ctx, loadConfig(*configPath))
	defer closeFn()

	t := &tenant.Tenant{
		ID:          id.New(),
		Slug:        strings.ToLower(*slug),
		DisplayName: *name,
		Status:      tenant.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := registry.Create(ctx, t); err != nil {
		fail("registering tenant: %v", err)
	}

	fmt.Printf("✓ Tenant '%s' created\n", t.Slug)
	fmt.Printf("  Tenant ID: %s\n", t.ID)
	fmt.Printf("  Status: %s\n", t.Status)
}

func listTenants(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	_ = fs.Parse(args)

	registry, closeFn := openRegistry(ctx, loadConfig(*configPath))
	defer closeFn()

	tenants, err := registry.List(ctx)
	if err != nil {
		fail("listing tenants: %v", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants registered")
		return
	}

	fmt.Printf("%-36s %-20s %-30s %-10s\n", "TENANT_ID", "SLUG", "NAME", "STATUS")
	fmt.Println(strings.Repeat("-", 99))
	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-10s\n", t.ID, truncate(t.Slug, 20), truncate(t.DisplayName, 30), t.Status)

		companies, err := registry.ListCompanies(ctx, t.ID)
		if err != nil {
			fail("listing companies: %v", err)
		}
		for _, c := range companies {
			fmt.Printf("  └ %-36s %s\n", c.ID, c.Name)
		}
	}
}

func addCompany(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("add-company", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	tenantID := fs.String("tenant", "", "owning tenant id")
	name := fs.String("name", "", "company name")
	_ = fs.Parse(args)

	if *tenantID == "" || *name == "" {
		fail("--tenant and --name are required")
	}

	registry, closeFn := openRegistry(ctx, loadConfig(*configPath))
	defer closeFn()

	c := &tenant.Company{ID: id.New(), TenantID: parseID("tenant", *tenantID), Name: *name}
	if _, err := registry.GetByID(ctx, c.TenantID); err != nil {
		fail("%v", err)
	}
	if err := registry.AddCompany(ctx, c); err != nil {
		fail("%v", err)
	}
	fmt.Printf("✓ Company '%s' added\n", c.Name)
	fmt.Printf("  Company ID: %s\n", c.ID)
}

func setStatus(ctx context.Context, args []string, status tenant.Status) {
	fs := flag.NewFlagSet(string(status), flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fail("tenant id is required")
	}
	tenantID := parseID("tenant", fs.Arg(0))

	registry, closeFn := openRegistry(ctx, loadConfig(*configPath))
	defer closeFn()

	if err := registry.SetStatus(ctx, tenantID, status); err != nil {
		fail("%v", err)
	}
	fmt.Printf("✓ Tenant '%s' is now %s\n", tenantID, status)
}

func issueToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	tenantID := fs.String("tenant", "", "tenant id")
	companyID := fs.String("company", "", "company id (optional)")
	userID := fs.String("user", "", "acting user id")
	ttl := fs.Duration("ttl", 0, "token lifetime; defaults to auth.token_ttl")
	_ = fs.Parse(args)

	if *tenantID == "" || *userID == "" {
		fail("--tenant and --user are required")
	}

	cfg := loadConfig(*configPath)
	if cfg.Auth.Secret == "" {
		fail("auth.secret (MEDCORE_AUTH_SECRET) is required")
	}
	jwtCfg := cfg.JWTConfig()
	if *ttl > 0 {
		jwtCfg.TokenTTL = *ttl
	}

	tc := tenant.New(parseID("tenant", *tenantID), *userID)
	if *companyID != "" {
		tc = tc.WithCompany(parseID("company", *companyID))
	}

	token, expiresAt, err := auth.NewJWTService(jwtCfg).IssueToken(tc)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
}

// setCounter seeds a numbering sequence so documents imported from a legacy
// system keep their numbers and new ones continue after them.
func setCounter(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("set-counter", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	tenantID := fs.String("tenant", "", "tenant id")
	companyID := fs.String("company", "", "company id (optional)")
	prefix := fs.String("prefix", "", "number prefix: INV, GRN, CRN, RCT, PAY")
	year := fs.Int("year", time.Now().Year(), "numbering year")
	value := fs.Int64("value", -1, "last number already used")
	_ = fs.Parse(args)

	if *tenantID == "" || *prefix == "" || *value < 0 {
		fail("--tenant, --prefix and --value are required")
	}

	cfg := loadConfig(*configPath)
	pool := openPool(ctx, cfg)
	defer pool.Close()

	tc := tenant.New(parseID("tenant", *tenantID), "tenant-cli")
	if *companyID != "" {
		tc = tc.WithCompany(parseID("company", *companyID))
	}
	if err := tenant.Verify(ctx, tenant.NewPostgresRegistry(pool.Pool), tc); err != nil {
		fail("%v", err)
	}

	numCfg := corenumerator.DefaultConfig(strings.ToUpper(*prefix))
	period := time.Date(*year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := numerator.New(pool.Pool).SetNextNumber(ctx, tc, numCfg, period, *value); err != nil {
		fail("%v", err)
	}
	fmt.Printf("✓ Counter %s set to %d\n", numCfg.Key(period), *value)
	fmt.Printf("  Next number: %s\n", numCfg.Format(period, *value+1))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// storecli is a CLI tool for exercising storesdk sessions against a store.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	storecli login -login USER -password PASS
//	storecli status
//	storecli validate
//	storecli revoke [-scope refresh|all]
//	storecli one-time-token [-ttl SECONDS]
//	storecli autologin-url [-redirect URL]
//	storecli products [-per-page N] [-max-pages N]
//
// Examples:
//
//	export STORE_URL=https://shop.example.com STORE_TOKEN_DIR=~/.storesdk
//	storecli login -login owner -password secret
//	OTT=$(storecli one-time-token -q)
//	storecli autologin-url -redirect /wp-admin/
//	storecli products -per-page 50
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"storesdk"
	"storesdk/auth"
	"storesdk/events"
	"storesdk/internal/config"
	"storesdk/paginate"
	"storesdk/products"
	"storesdk/storage"
)

// Global flags (apply to all commands)
var (
	quiet   bool
	noColor bool
	verbose bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorCyan, colorGray = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "login":
		runLogin(args)
	case "status":
		runStatus(args)
	case "validate":
		runValidate(args)
	case "revoke":
		runRevoke(args)
	case "one-time-token":
		runOneTimeToken(args)
	case "autologin-url":
		runAutoLoginURL(args)
	case "products":
		runProducts(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storecli - storesdk session test tool

Usage:
  storecli <command> [options]

Commands:
  login           Exchange credentials for a session
  status          Show auth plugin status on the store
  validate        Validate the stored access token
  revoke          Revoke the session (scope refresh or all)
  one-time-token  Issue a one-time token for browser auto-login
  autologin-url   Build an auto-login URL from a fresh one-time token
  products        List products (follows pagination)

Configuration comes from CONFIG_FILE or STORE_* environment variables,
see internal/config. Set STORE_TOKEN_DIR to persist the session between
invocations.

Examples:
  storecli login -login owner -password secret
  OTT=$(storecli one-time-token -q)
  storecli autologin-url -redirect /wp-admin/
  storecli products -per-page 50 -max-pages 3

Run 'storecli <command> -h' for command-specific options.
`)
}

// newFlagSet creates a command flag set with the flags every command shares.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - log every request")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storecli %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// buildSDK loads configuration and wires an SDK client. Verbose mode
// subscribes a logger to every event on the bus.
func buildSDK(ctx context.Context) *storesdk.Client {
	cfg, err := config.Load(ctx)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	storageCfg := storesdk.StorageConfig{}
	if cfg.Store.TokenDir != "" {
		storageCfg.Kind = storage.KindFile
		storageCfg.Dir = cfg.Store.TokenDir
	}

	sdk, err := storesdk.New(storesdk.Config{
		StoreURL:          cfg.Store.StoreURL,
		AuthNamespace:     cfg.Store.AuthNamespace,
		CatalogNamespace:  cfg.Store.CatalogNamespace,
		Storage:           storageCfg,
		ChromeFingerprint: cfg.Store.ChromeFingerprint,
		RequestsPerSecond: cfg.Store.RequestsPerSecond,
		MinPluginVersion:  cfg.Store.MinPluginVersion,
		Logger:            logger,
	})
	if err != nil {
		fatal("Failed to build SDK: %v", err)
	}

	if verbose {
		sdk.Events.SubscribeAll(func(ev events.Event) {
			fmt.Fprintf(os.Stderr, "%s[%s] %s%s\n", colorGray, ev.Time.Format(time.TimeOnly), ev.Topic, colorReset)
		})
	}

	return sdk
}

func runLogin(args []string) {
	fs := newFlagSet("login", "login -login USER -password PASS [options]")
	var login, password string
	fs.StringVar(&login, "login", "", "Username or email (falls back to config)")
	fs.StringVar(&password, "password", "", "Password (falls back to config)")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	if login == "" {
		login = cfg.Store.Login
	}
	if password == "" {
		password = cfg.Store.Password
	}
	if login == "" || password == "" {
		fatal("login and password are required (flags or STORE_LOGIN/STORE_PASSWORD)")
	}

	sdk := buildSDK(ctx)
	tr, err := sdk.Auth.Token(ctx, auth.Credentials{Login: login, Password: password})
	if err != nil {
		fatal("Login failed: %v", err)
	}

	if quiet {
		fmt.Println(tr.Token)
		return
	}
	printSuccess("Logged in")
	fmt.Printf("  User: %s%s%s\n", colorCyan, tr.User.DisplayName, colorReset)
	fmt.Printf("  Token expires in: %ds\n", tr.ExpiresIn)
}

func runStatus(args []string) {
	fs := newFlagSet("status", "status [options]")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	ctx := context.Background()
	sdk := buildSDK(ctx)

	st, err := sdk.Auth.Status(ctx)
	if err != nil {
		fatal("Status check failed: %v", err)
	}

	if quiet {
		fmt.Println(st.Version)
		return
	}
	if st.Active {
		printSuccess("Auth plugin active (version %s)", st.Version)
	} else {
		printWarning("Auth plugin inactive")
	}
	fmt.Printf("  Secret defined: %v\n", st.SecretDefined)
	printJSON(st.Endpoints)
}

func runValidate(args []string) {
	fs := newFlagSet("validate", "validate [options]")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	ctx := context.Background()
	sdk := buildSDK(ctx)

	vr, err := sdk.Auth.Validate(ctx)
	if err != nil {
		fatal("Validation failed: %v", err)
	}

	if quiet {
		fmt.Println(vr.Valid)
		return
	}
	if vr.Valid {
		printSuccess("Stored token is valid")
	} else {
		printWarning("Stored token is not valid")
	}
	if verbose && vr.Payload != nil {
		printJSON(vr.Payload)
	}
}

func runRevoke(args []string) {
	fs := newFlagSet("revoke", "revoke [-scope refresh|all] [options]")
	var scope string
	fs.StringVar(&scope, "scope", "all", "Revocation scope: refresh (rotate out the refresh token) or all (kill every token)")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	var revokeScope auth.RevokeScope
	switch scope {
	case "refresh":
		revokeScope = auth.ScopeRefresh
	case "all":
		revokeScope = auth.ScopeAll
	default:
		fatal("Unknown scope: %s (use: refresh, all)", scope)
	}

	ctx := context.Background()
	sdk := buildSDK(ctx)

	rr, err := sdk.Auth.RevokeToken(ctx, revokeScope)
	if err != nil {
		fatal("Revoke failed: %v", err)
	}

	if quiet {
		fmt.Println(rr.Revoked)
		return
	}
	printSuccess("Revoked (scope %s)", rr.Scope)
	if rr.NewVersion > 0 {
		fmt.Printf("  Token version bumped to %d\n", rr.NewVersion)
	}
}

func runOneTimeToken(args []string) {
	fs := newFlagSet("one-time-token", "one-time-token [-ttl SECONDS] [options]")
	var ttl int
	fs.IntVar(&ttl, "ttl", 0, "Token lifetime in seconds (0 = server default)")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	ctx := context.Background()
	sdk := buildSDK(ctx)

	ott, err := sdk.Auth.OneTimeToken(ctx, ttl)
	if err != nil {
		fatal("One-time token failed: %v", err)
	}

	if quiet {
		fmt.Println(ott.OneTimeToken)
		return
	}
	printSuccess("One-time token issued (expires in %ds)", ott.ExpiresIn)
	fmt.Printf("  %s%s%s\n", colorCyan, ott.OneTimeToken, colorReset)
}

func runAutoLoginURL(args []string) {
	fs := newFlagSet("autologin-url", "autologin-url [-redirect URL] [options]")
	var redirect string
	var ttl int
	fs.StringVar(&redirect, "redirect", "", "Post-login redirect path or URL")
	fs.IntVar(&ttl, "ttl", 0, "One-time token lifetime in seconds (0 = server default)")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	ctx := context.Background()
	sdk := buildSDK(ctx)

	ott, err := sdk.Auth.OneTimeToken(ctx, ttl)
	if err != nil {
		fatal("One-time token failed: %v", err)
	}

	u := sdk.Auth.AutoLoginURL(ott.OneTimeToken, redirect, nil)
	if quiet {
		fmt.Println(u)
		return
	}
	printSuccess("Auto-login URL (single use, expires in %ds)", ott.ExpiresIn)
	fmt.Printf("  %s%s%s\n", colorCyan, u, colorReset)
}

func runProducts(args []string) {
	fs := newFlagSet("products", "products [-per-page N] [-max-pages N] [options]")
	var perPage, maxPages int
	var search, status string
	fs.IntVar(&perPage, "per-page", 10, "Products per page")
	fs.IntVar(&maxPages, "max-pages", 0, "Stop after N pages (0 = all)")
	fs.StringVar(&search, "search", "", "Search term")
	fs.StringVar(&status, "status", "", "Product status filter (publish, draft, ...)")
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	ctx := context.Background()
	sdk := buildSDK(ctx)

	params := map[string]any{"per_page": perPage}
	if search != "" {
		params["search"] = search
	}
	if status != "" {
		params["status"] = status
	}

	res := sdk.Products.ListAll(ctx, params, paginate.Options[products.Product]{
		MaxPages: maxPages,
		OnPage: func(ctx context.Context, page paginate.Result[products.Product]) error {
			if !quiet {
				printInfo("Fetched %d products (total %d)", len(page.Data), page.Pagination.Total)
			}
			return nil
		},
	})
	if res.Err != nil {
		fatal("Listing products failed: %v", res.Err)
	}

	if quiet {
		for _, p := range res.Data {
			fmt.Println(p.ID)
		}
		return
	}
	printSuccess("%d products", len(res.Data))
	for _, p := range res.Data {
		fmt.Printf("  %s%6d%s  %-40s %s\n", colorCyan, p.ID, colorReset, p.Name, p.Price)
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		fmt.Printf("  %v\n", v)
		return
	}
	fmt.Printf("  %s\n", data)
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...any) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}

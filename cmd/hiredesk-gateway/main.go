// ABOUTME: Entry point for the hiredesk-gateway conversational bot server
// ABOUTME: Wires the store, connector, adapters, flows, and webhook together

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/bot"
	"github.com/hiredesk/gateway/internal/config"
	"github.com/hiredesk/gateway/internal/connector"
	"github.com/hiredesk/gateway/internal/dedupe"
	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/fancyhands"
	"github.com/hiredesk/gateway/internal/flows"
	"github.com/hiredesk/gateway/internal/identity"
	"github.com/hiredesk/gateway/internal/mapping"
	"github.com/hiredesk/gateway/internal/msgraph"
	"github.com/hiredesk/gateway/internal/oauth1"
	"github.com/hiredesk/gateway/internal/relay"
	"github.com/hiredesk/gateway/internal/sendgrid"
	"github.com/hiredesk/gateway/internal/store"
	"github.com/hiredesk/gateway/internal/upwork"
	"github.com/hiredesk/gateway/internal/vso"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _     _              _           _
| |__ (_)_ __ ___  __| | ___  ___| | __
| '_ \| | '__/ _ \/ _' |/ _ \/ __| |/ /
| | | | | | |  __/ (_| |  __/\__ \   <
|_| |_|_|_|  \___|\__,_|\___||___/_|\_\
`

// getConfigPath returns the path to the gateway config file.
// Priority: HIREDESK_CONFIG env var > XDG_CONFIG_HOME/hiredesk/gateway.yaml > ~/.config/hiredesk/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HIREDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hiredesk", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hiredesk-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	for _, adapter := range []struct {
		name    string
		enabled bool
	}{
		{"Upwork", cfg.Upwork.Enabled},
		{"FancyHands", cfg.FancyHands.Enabled},
		{"SendGrid", cfg.SendGrid.Enabled},
		{"Graph", cfg.Graph.Enabled},
	} {
		if adapter.enabled {
			green.Print("    ▶ ")
			fmt.Printf("Adapter:  %s\n", adapter.name)
		}
	}
	fmt.Println()

	logger.Info("starting hiredesk-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Identity and session store
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	// Bot Framework connector, with a background token refresh worker
	tokens := connector.NewTokenSource(cfg.Bot.AppID, cfg.Bot.AppPassword)
	tokens.StartRefresh(ctx)
	sender := connector.NewHTTPClient(tokens)

	tickets := vso.NewClient(cfg.Vso.OrgURL, cfg.Vso.Project, cfg.Vso.Username, cfg.Vso.PAT)
	maps := mapping.New(st, tickets, logger)
	users := identity.New(st, logger)

	botAccount := activity.ChannelAccount{ID: cfg.Bot.AppID, Name: "HireDesk"}
	agentAccount := activity.ChannelAccount{ID: cfg.Bot.AgentTeamID, Name: cfg.Vso.AssignTo}

	deps := &flows.Deps{
		Tickets:       tickets,
		Mappings:      maps,
		Conversations: sender,
		Users:         users,

		AssignTo:        cfg.Vso.AssignTo,
		AgentServiceURL: cfg.Bot.ServiceURL,
		BotAccount:      botAccount,
		AgentAccount:    agentAccount,

		MinDescriptionLength: cfg.Dialogs.MinDescriptionLength,
		PromptAttempts:       cfg.Dialogs.PromptAttempts,
		Logger:               logger,
	}

	// Optional adapters; flows skip the nil ones
	if cfg.Upwork.Enabled {
		deps.Upwork = upwork.NewClient(oauth1.Credentials{
			ConsumerKey:    cfg.Upwork.ConsumerKey,
			ConsumerSecret: cfg.Upwork.ConsumerSecret,
			AccessToken:    cfg.Upwork.AccessToken,
			AccessSecret:   cfg.Upwork.AccessSecret,
		})
	}
	if cfg.FancyHands.Enabled {
		deps.FancyHands = fancyhands.NewClient(oauth1.Credentials{
			ConsumerKey:    cfg.FancyHands.ConsumerKey,
			ConsumerSecret: cfg.FancyHands.ConsumerSecret,
			AccessToken:    cfg.FancyHands.AccessToken,
			AccessSecret:   cfg.FancyHands.AccessSecret,
		}, false)
	}
	if cfg.SendGrid.Enabled {
		deps.Mailer = sendgrid.NewClient(cfg.SendGrid.APIKey, cfg.SendGrid.FromAddress)
	}

	// Agent availability: Graph presence when configured, last-seen
	// activity otherwise
	if cfg.Graph.Enabled && cfg.Graph.AgentUserID != "" {
		graph := msgraph.NewClient(cfg.Graph.TenantID, cfg.Graph.ClientID, cfg.Graph.ClientSecret)
		deps.AgentOnline = func(ctx context.Context) (bool, error) {
			p, err := graph.GetPresence(ctx, cfg.Graph.AgentUserID)
			if err != nil {
				return false, err
			}
			return p.Available(), nil
		}
	} else {
		deps.AgentOnline = bot.AgentOnlineCheck(st, cfg.Dialogs.OnlineThreshold)
	}

	engine := dialog.NewEngine(st,
		func(err error) bool { return errors.Is(err, store.ErrNotFound) },
		dialog.WithDefaultAttempts(cfg.Dialogs.PromptAttempts))
	if err := engine.Register(
		flows.NewResearch(deps),
		flows.NewPPT(deps),
		flows.NewAppointment(deps),
		flows.NewAgentHandover(deps),
		flows.NewSMSRequest(deps),
		flows.NewRegistration(deps),
		flows.NewCloseProject(deps),
		flows.NewGetProject(deps),
	); err != nil {
		return fmt.Errorf("registering flows: %w", err)
	}

	cache := dedupe.New(5*time.Minute, 10000)
	defer cache.Close()

	relaySvc := relay.New(maps, sender, cfg.Bot.ServiceURL, botAccount, logger)

	b := bot.New(st, users, engine, relaySvc, sender, cache, bot.Options{
		Production:      cfg.Bot.Production,
		OnlineThreshold: cfg.Dialogs.OnlineThreshold,
	}, logger)

	mux := http.NewServeMux()
	bot.NewHandler(b, connector.NewTokenValidator(cfg.Bot.AppID), logger).Routes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	// Let in-flight relayed sends drain before the process exits
	relaySvc.Wait()
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("hiredesk-gateway configuration setup")
	fmt.Println("====================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "0.0.0.0:3978")

	fmt.Println("\n--- Bot Framework ---")
	appID := prompt(reader, "App id", "")
	phoneNumber := prompt(reader, "SMS phone number", "")

	fmt.Println("\n--- Work Item Tracking ---")
	orgURL := prompt(reader, "Organization URL", "https://dev.azure.com/yourorg")
	project := prompt(reader, "Project", "HireDesk")
	vsoUser := prompt(reader, "Username", "")
	assignTo := prompt(reader, "Assign tickets to", "")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", "gateway.db")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# hiredesk-gateway configuration\n")
	cfg.WriteString("# Generated by hiredesk-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("bot:\n")
	cfg.WriteString(fmt.Sprintf("  app_id: %q\n", appID))
	cfg.WriteString("  app_password: \"${BOT_APP_PASSWORD}\"\n")
	cfg.WriteString("  service_url: \"https://smba.trafficmanager.net/teams/\"\n")
	cfg.WriteString(fmt.Sprintf("  phone_number: %q\n", phoneNumber))
	cfg.WriteString("  production: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("vso:\n")
	cfg.WriteString(fmt.Sprintf("  org_url: %q\n", orgURL))
	cfg.WriteString(fmt.Sprintf("  project: %q\n", project))
	cfg.WriteString(fmt.Sprintf("  username: %q\n", vsoUser))
	cfg.WriteString("  pat: \"${VSO_PAT}\"\n")
	cfg.WriteString(fmt.Sprintf("  assign_to: %q\n", assignTo))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("upwork:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("fancyhands:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("sendgrid:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("graph:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("dialogs:\n")
	cfg.WriteString("  min_description_length: 15\n")
	cfg.WriteString("  prompt_attempts: 3\n")
	cfg.WriteString("  online_threshold: \"10m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  hiredesk-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

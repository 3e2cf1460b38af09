// ABOUTME: Entry point for the beykus-gateway chat server
// ABOUTME: Subcommands serve the API, write a config, mint tokens and probe health

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Beykus-Y/beykusaysite/internal/auth"
	"github.com/Beykus-Y/beykusaysite/internal/config"
	"github.com/Beykus-Y/beykusaysite/internal/gateway"
	"github.com/Beykus-Y/beykusaysite/internal/provider"
	"github.com/Beykus-Y/beykusaysite/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
 _              _                                _
| |__   ___ _  _| | ___   _ ___        __ _  __ _| |_ _____      ____ _ _   _
| '_ \ / _ \ || | |/ / | | / __|_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| |_) |  __/\_, |   <| |_| \__ \_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_.__/ \___||__/|_|\_\\__,_|___/      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                      |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: BEYKUS_CONFIG env var > XDG_CONFIG_HOME/beykus/gateway.yaml > ~/.config/beykus/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BEYKUS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "beykus", "gateway.yaml")
}

// getDataPath returns the beykus data directory.
// Priority: XDG_DATA_HOME/beykus > ~/.local/share/beykus
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "beykus")
}

func usage() {
	fmt.Println("Usage: beykus-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Start the gateway server")
	fmt.Println("  init                     Create a new config file interactively")
	fmt.Println("  token --email EMAIL      Issue a bearer token for an existing user")
	fmt.Println("  models                   List the selectable models")
	fmt.Println("  health                   Check gateway readiness")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// .env values fill in whatever the environment leaves unset
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "token":
		err = runToken(ctx, os.Args[2:])
	case "models":
		runModels()
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
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

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Provider:  %s", cfg.Provider.Kind)
	if cfg.Provider.Kind == config.ProviderLoopback {
		yellow.Print(" [echo only]")
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s\n", cfg.Sessions.DefaultModel.DisplayName())
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting beykus-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}
	fmt.Println(string(body))
	return nil
}

func runModels() {
	def := provider.DefaultModel
	if cfg, err := config.Load(getConfigPath()); err == nil {
		def = cfg.Sessions.DefaultModel
	}

	for _, m := range provider.Models() {
		line := fmt.Sprintf("%-16s %s", m.DisplayName, m.ID)
		if provider.Model(m.ID) == def {
			color.Green("%s (default)", line)
			continue
		}
		fmt.Println(line)
	}
}

// runToken issues a token for a registered user, for scripting and the
// beykus-chat client.
func runToken(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	email := fs.String("email", "", "email of the user")
	ttl := fs.Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	save := fs.Bool("save", false, "also write the token next to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *ttl <= 0 {
		*ttl = cfg.Auth.TokenTTL
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	user, err := s.GetUserByEmail(ctx, *email)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no user registered with email %s", *email)
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(user.ID, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	if *save {
		tokenPath := filepath.Join(filepath.Dir(configPath), "token")
		if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
			return fmt.Errorf("writing token file: %w", err)
		}
		color.New(color.FgGreen).Fprintf(os.Stderr, "  ✓ Saved token: %s (expires %s)\n",
			tokenPath, time.Now().Add(*ttl).UTC().Format("Jan 02, 2006 15:04"))
	}
	fmt.Println(token)
	return nil
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("beykus-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server ---")
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)
	dbPath := prompt(reader, "SQLite database path", filepath.Join(getDataPath(), "beykus.db"))

	fmt.Println("\n--- Model provider ---")
	kind := prompt(reader, "Provider (openai/loopback)", config.ProviderOpenAI)
	var baseURL, apiKey string
	if kind == config.ProviderOpenAI {
		baseURL = prompt(reader, "Base URL (empty for api.openai.com)", "")
		apiKey = prompt(reader, "API key (or ${ENV_VAR})", "${BEYKUS_API_KEY}")
	}
	defaultModel := prompt(reader, "Default model", provider.DefaultModel.DisplayName())
	if _, err := provider.ParseModel(defaultModel); err != nil {
		return err
	}

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	var cfg strings.Builder
	cfg.WriteString("# beykus-gateway configuration\n")
	cfg.WriteString("# Generated by beykus-gateway init\n\n")
	fmt.Fprintf(&cfg, "server:\n  http_addr: %q\n\n", httpAddr)
	fmt.Fprintf(&cfg, "database:\n  path: %q\n\n", dbPath)
	fmt.Fprintf(&cfg, "auth:\n  jwt_secret: %q\n  token_ttl: %q\n\n",
		base64.StdEncoding.EncodeToString(secretBytes), config.DefaultTokenTTL.String())
	fmt.Fprintf(&cfg, "provider:\n  kind: %q\n", kind)
	if baseURL != "" {
		fmt.Fprintf(&cfg, "  base_url: %q\n", baseURL)
	}
	if apiKey != "" {
		fmt.Fprintf(&cfg, "  api_key: %q\n", apiKey)
	}
	cfg.WriteString("\n")
	fmt.Fprintf(&cfg, "sessions:\n  default_model: %q\n  idle_timeout: %q\n\n",
		defaultModel, config.DefaultIdleTimeout.String())
	fmt.Fprintf(&cfg, "logging:\n  level: %q\n  format: %q\n\n", logLevel, logFormat)
	fmt.Fprintf(&cfg, "metrics:\n  enabled: false\n  path: %q\n", config.DefaultMetricsPath)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the JWT secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Println("  beykus-gateway serve")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}

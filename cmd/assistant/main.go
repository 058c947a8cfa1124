package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/api"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/auth"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/chat"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/config"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/logger"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/report"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/storage"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/ui"
)

const version = "assistant v1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	args, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.LogPath, cfg.Debug); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logger.Close()

	if len(args) > 0 {
		switch args[0] {
		case "login":
			return loginCommand(cfg)
		case "logout":
			return logoutCommand(cfg)
		case "help", "--help", "-h":
			printUsage()
			return nil
		case "version", "--version", "-v":
			fmt.Println(version)
			return nil
		default:
			return fmt.Errorf("unknown command %q (try `assistant help`)", args[0])
		}
	}

	return chatCommand(cfg)
}

// chatCommand wires the engine to the terminal UI and runs the conversation.
func chatCommand(cfg *config.Config) error {
	logger.Infof("starting assistant: agent=%s backend=%s home=%s",
		cfg.AgentURL, cfg.BackendURL, cfg.AssistantHome)

	prefs, err := storage.OpenPrefs(cfg.PrefsPath)
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}

	session, email, err := openSession(cfg)
	if err != nil {
		return err
	}

	var tokens api.TokenSource
	if manager, ok := session.(*auth.Manager); ok {
		tokens = manager
		// Best effort: walk in with a fresh token when possible.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := manager.EnsureFresh(ctx); err != nil {
			logger.Warnf("proactive token refresh failed: %v", err)
		}
		cancel()
	}

	client := api.NewClient(cfg.AgentURL, cfg.BackendURL, tokens)
	opener := report.NewOpener(client)
	listener := ui.NewListener()

	engine := chat.New(chat.Options{
		Client:        client,
		Session:       session,
		Opener:        opener,
		Prefs:         prefs,
		Clock:         chat.SystemClock(),
		Listener:      listener,
		InstantReveal: cfg.InstantReveal,
	})

	program := tea.NewProgram(ui.New(engine, email), tea.WithAltScreen())
	listener.Attach(program)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// openSession builds the auth session. Without a configured auth service the
// assistant runs anonymously against a local backend.
func openSession(cfg *config.Config) (chat.Session, string, error) {
	if cfg.AuthURL == "" {
		return anonymousSession{}, "", nil
	}
	manager, err := auth.NewManager(cfg.AuthURL, cfg.AuthAnonKey, cfg.SessionPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open auth session: %w", err)
	}
	if _, ok := manager.AccessToken(); !ok {
		fmt.Println("Aucune session trouvée. Lancez `assistant login` pour vous connecter.")
	}
	return manager, manager.Email(), nil
}

// loginCommand prompts for credentials and stores the session.
func loginCommand(cfg *config.Config) error {
	if cfg.AuthURL == "" {
		return fmt.Errorf("no auth service configured (set ASSISTANT_AUTH_URL)")
	}
	manager, err := auth.NewManager(cfg.AuthURL, cfg.AuthAnonKey, cfg.SessionPath)
	if err != nil {
		return fmt.Errorf("failed to open auth session: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Email : ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read email: %w", err)
	}
	email = strings.TrimSpace(email)

	fmt.Print("Mot de passe : ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := manager.SignIn(ctx, email, string(password)); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	fmt.Printf("Connecté en tant que %s\n", manager.Email())
	return nil
}

func logoutCommand(cfg *config.Config) error {
	if cfg.AuthURL == "" {
		return storage.ClearSession(cfg.SessionPath)
	}
	manager, err := auth.NewManager(cfg.AuthURL, cfg.AuthAnonKey, cfg.SessionPath)
	if err != nil {
		return fmt.Errorf("failed to open auth session: %w", err)
	}
	manager.SignOut()
	fmt.Println("Déconnecté.")
	return nil
}

// anonymousSession satisfies the engine's session surface when no auth
// service is configured.
type anonymousSession struct{}

func (anonymousSession) AccessToken() (string, bool) { return "", false }
func (anonymousSession) OnChange(func(bool))         {}
func (anonymousSession) Refresh(context.Context) error {
	return fmt.Errorf("no auth service configured")
}
func (anonymousSession) SignOut() {}

func parseFlags(cfg *config.Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("assistant", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	agentURL := fs.String("agent-url", "", "Agent API base URL")
	backendURL := fs.String("backend-url", "", "Finance backend base URL")
	debug := fs.Bool("debug", false, "Enable debug logging and the directive debug view")
	noTypewriter := fs.Bool("no-typewriter", false, "Disable the typing animation")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *agentURL != "" {
		cfg.AgentURL = *agentURL
		if *backendURL == "" {
			cfg.BackendURL = *agentURL
		}
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}
	if *debug {
		cfg.Debug = true
	}
	if *noTypewriter {
		cfg.InstantReveal = true
	}

	return fs.Args(), nil
}

func printUsage() {
	fmt.Println(`assistant - terminal front-end for the IA financial assistant

Usage:
  assistant            Start the conversation UI
  assistant login      Sign in (email + password)
  assistant logout     Sign out and clear the stored session
  assistant help       Show this help message
  assistant version    Show version information

Environment Variables:
  ASSISTANT_AGENT_URL      Agent API URL (default: http://localhost:8000)
  ASSISTANT_BACKEND_URL    Finance backend URL (default: agent URL)
  ASSISTANT_AUTH_URL       Auth service URL (anonymous mode when unset)
  ASSISTANT_AUTH_ANON_KEY  Auth project API key
  ASSISTANT_HOME_DIR       State directory (default: ~/.financial-assistant)
  ASSISTANT_NO_TYPEWRITER  Disable the typing animation (true/1)
  DEBUG                    Enable debug logging (true/1)

Flags:
  --agent-url       Agent API base URL
  --backend-url     Finance backend base URL
  --debug           Enable debug logging
  --no-typewriter   Disable the typing animation

Keys (in the conversation):
  entrée   envoyer le message        ctrl+o   importer un relevé
  1..9     réponse rapide            ctrl+r   résoudre les alias marchands
  ctrl+g   mode debug                ctrl+l   rafraîchir la session
  ctrl+x   déconnexion               ctrl+c   quitter`)
}

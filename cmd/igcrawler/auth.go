package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igcrawler/pkg/auth"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/ui"
)

var fromCookies bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Instagram sessions",
	Long: `Manage stored Instagram sessions.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your session cookies or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and store the session",
	Long: `Log in with username and password and store the session cookies.

Accounts with two-factor authentication are asked for the code. When the
password login is blocked, use --from-cookies to import the session of a
browser login instead.`,
	Example: `  # Password login
  igcrawler auth login myaccount

  # Import the cookies of a browser session
  igcrawler auth login myaccount --from-cookies`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored sessions",
	Long: `Remove the stored session of username, or of every account when
--all is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked session cookies.`,
	RunE:  runList,
}

var logoutAll bool

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&fromCookies, "from-cookies", false, "import the cookies of a browser session")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := bufio.NewReader(os.Stdin)
	username := ""
	if len(args) > 0 {
		username = instagram.SanitizeUsername(args[0])
	}
	if username == "" {
		if username, err = prompt(reader, "Instagram username: "); err != nil {
			return err
		}
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		answer, _ := prompt(reader, fmt.Sprintf("Account '%s' already stored. Replace the session? (y/N): ", username))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	ic := instagram.NewContext(instagram.Options{Config: cfg, Logger: log})
	defer ic.Close()

	if fromCookies {
		err = importCookies(ctx, ic, reader, username)
	} else {
		err = passwordLogin(ctx, ic, reader, username)
	}
	if err != nil {
		return err
	}

	account := &auth.Account{
		Username:     ic.Username(),
		Cookies:      ic.SessionCookies(),
		UserAgent:    cfg.Instagram.UserAgent,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Session saved: %s", account.Username))
	fmt.Printf("\nUse it with:\n  igcrawler crawl --login %s <profile>\n", account.Username)
	return nil
}

func passwordLogin(ctx context.Context, ic *instagram.Context, reader *bufio.Reader, username string) error {
	fmt.Printf("Password for %s: ", username)
	password, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	err = ic.Login(ctx, username, password)
	for errs.IsType(err, errs.ErrorTypeTwoFactorRequired) {
		code, perr := prompt(reader, "Enter 2FA verification code: ")
		if perr != nil {
			return perr
		}
		err = ic.TwoFactorLogin(ctx, code)
		if errs.IsType(err, errs.ErrorTypeBadCredentials) {
			ui.PrintWarning("Wrong code", err)
			err = errs.New(errs.ErrorTypeTwoFactorRequired, "retry")
		}
	}
	return err
}

func importCookies(ctx context.Context, ic *instagram.Context, reader *bufio.Reader, username string) error {
	auth.WriteCookieGuide(os.Stdout)
	fmt.Println()

	cookies := make(map[string]string)
	for _, name := range []string{"sessionid", "csrftoken", "ds_user_id"} {
		fmt.Printf("%s cookie value: ", name)
		value, err := readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if value != "" {
			cookies[name] = value
		}
	}
	if err := ic.LoadSession(username, cookies); err != nil {
		return err
	}

	name, err := ic.TestLogin(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify session: %w", err)
	}
	if name == "" {
		return errs.New(errs.ErrorTypeBadCredentials, "the provider did not accept these cookies")
	}
	if name != username {
		return errs.New(errs.ErrorTypeBadCredentials, "cookies belong to %s, not %s", name, username)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("name the account to remove or pass --all")
	}
	if err := manager.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'igcrawler auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, sanitized.Username)
		fmt.Printf("   sessionid: %s\n", sanitized.SessionID())
		fmt.Printf("   csrftoken: %s\n", sanitized.CSRFToken())
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

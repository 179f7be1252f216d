// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/OlesyaDud/smart-notes/internal/chat/telegram"
	"github.com/OlesyaDud/smart-notes/internal/config"
	"github.com/OlesyaDud/smart-notes/internal/embedding"
	"github.com/OlesyaDud/smart-notes/internal/secrets"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Secret names the wizard stores and the generated config references.
const (
	secretEmbeddingKey  = "embedding.api_key"
	secretTelegramToken = "telegram.token"
)

// initHTTPClient is used for Telegram token validation. Tests replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// validateProviderKey embeds a probe string with the given credentials.
// Tests replace it.
var validateProviderKey = func(ctx context.Context, provider, key string) error {
	e, err := embedding.New(embedding.Config{Provider: provider, APIKey: key})
	if err != nil {
		return err
	}
	_, err = e.Embed(ctx, "smartnotes setup check")
	return err
}

var validateTelegramToken = func(ctx context.Context, token string) error {
	client, err := telegram.NewClient(telegram.DefaultBaseURL, token, initHTTPClient)
	if err != nil {
		return err
	}
	_, err = client.ValidateToken(ctx)
	return err
}

type initWizardStep int

const (
	stepProvider initWizardStep = iota
	stepAPIKey
	stepValidateKey
	stepTelegram
	stepValidateToken
	stepDone
	stepError
)

// initResult holds what the wizard collected.
type initResult struct {
	Provider      string
	APIKey        string
	TelegramToken string
}

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
	configWrittenMsg struct{ path string }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedProviders = []string{"openai", "google", "local"}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step          initWizardStep
	providerIdx   int
	apiKeyInput   textinput.Model
	tokenInput    textinput.Model
	spinner       spinner.Model
	result        initResult
	validationErr string
	configPath    string
	targetPath    string
	secretStore   secrets.Store
	errFinal      error
	skipTelegram  bool
	force         bool
}

func newInitModel(store secrets.Store, targetPath string) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	token := textinput.New()
	token.Placeholder = "paste bot token here"
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: apiKey,
		tokenInput:  token,
		spinner:     sp,
		targetPath:  targetPath,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.handleValidationSuccess(msg)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		switch msg.step {
		case stepValidateKey:
			m.step = stepAPIKey
			m.apiKeyInput.Focus()
		case stepValidateToken:
			m.step = stepTelegram
			m.tokenInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepTelegram:
		return m.handleTokenInput(msg)
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(supportedProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = supportedProviders[m.providerIdx]
		m.validationErr = ""
		if m.result.Provider == "local" {
			return m.afterProvider()
		}
		m.step = stepAPIKey
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(m.spinner.Tick, validateKeyCmd(m.result.Provider, key))
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleTokenInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		token := strings.TrimSpace(m.tokenInput.Value())
		if token == "" {
			// An empty token skips the bot.
			m.result.TelegramToken = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.targetPath, m.force)
		}
		m.result.TelegramToken = token
		m.validationErr = ""
		m.step = stepValidateToken
		return m, tea.Batch(m.spinner.Tick, validateTokenCmd(token))
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return m, cmd
}

// afterProvider moves on once the embedding provider is settled.
func (m initModel) afterProvider() (tea.Model, tea.Cmd) {
	if m.skipTelegram {
		return m, writeConfigCmd(m.result, m.secretStore, m.targetPath, m.force)
	}
	m.step = stepTelegram
	m.tokenInput.SetValue("")
	m.tokenInput.Focus()
	return m, textinput.Blink
}

func (m initModel) handleValidationSuccess(msg validationSuccessMsg) (tea.Model, tea.Cmd) {
	switch msg.step {
	case stepValidateKey:
		return m.afterProvider()
	case stepValidateToken:
		return m, writeConfigCmd(m.result, m.secretStore, m.targetPath, m.force)
	}
	return m, nil
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepAPIKey:
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	case stepTelegram:
		m.tokenInput, cmd = m.tokenInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Smart Notes Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Choose an embedding provider") + "\n\n")
		for i, p := range supportedProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+p) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+p) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+m.result.Provider+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		m.writeValidationErr(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Checking " + m.result.Provider + " API key…\n")

	case stepTelegram:
		b.WriteString(promptStyle.Render("Step 2/2: Telegram bot token (optional)") + "\n\n")
		b.WriteString(m.tokenInput.View() + "\n")
		m.writeValidationErr(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue, empty to skip  ctrl+c to quit"))

	case stepValidateToken:
		b.WriteString(m.spinner.View() + " Checking Telegram bot token…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("smartnotes add <text>") + " and " + promptStyle.Render("smartnotes search <query>") + " to get started.\n")
		if m.result.TelegramToken != "" {
			b.WriteString("Run " + promptStyle.Render("smartnotes bot") + " to start the Telegram bot.\n")
		}

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func (m initModel) writeValidationErr(b *strings.Builder) {
	if m.validationErr != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
	}
}

func validateKeyCmd(provider, key string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := validateProviderKey(ctx, provider, key); err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

func validateTokenCmd(token string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := validateTelegramToken(ctx, token); err != nil {
			return validationErrorMsg{step: stepValidateToken, err: err}
		}
		return validationSuccessMsg{step: stepValidateToken}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, path string, force bool) tea.Cmd {
	return func() tea.Msg {
		written, err := storeSecretsAndWriteConfig(result, store, path, force)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: written}
	}
}

// GenerateConfigYAML renders a config for the wizard result. Credentials
// are referenced through keyring:// URIs only.
func GenerateConfigYAML(result initResult) string {
	var sb strings.Builder
	sb.WriteString("# Smart Notes configuration, generated by smartnotes init\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n\n")

	sb.WriteString("index:\n")
	sb.WriteString("  name: smart-notes\n")
	fmt.Fprintf(&sb, "  dimension: %d\n", embedding.DefaultDimension)
	sb.WriteString("  metric: cosine\n\n")

	sb.WriteString("embedding:\n")
	fmt.Fprintf(&sb, "  provider: %s\n", result.Provider)
	if result.APIKey != "" {
		fmt.Fprintf(&sb, "  api_key: %q\n", secrets.KeyringURI(secrets.DefaultService, secretEmbeddingKey))
	}
	sb.WriteString("\n")

	if result.TelegramToken != "" {
		sb.WriteString("telegram:\n")
		fmt.Fprintf(&sb, "  token: %q\n\n", secrets.KeyringURI(secrets.DefaultService, secretTelegramToken))
	}

	sb.WriteString("logging:\n")
	sb.WriteString("  level: info\n")
	return sb.String()
}

// storeSecretsAndWriteConfig saves credentials to the keyring and writes
// the generated config to path. Secrets stored before a failed write are
// left in place; a rerun overwrites them.
func storeSecretsAndWriteConfig(result initResult, store secrets.Store, path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", snerr.Errorf(snerr.CodeCLIInputInvalid, "config %s already exists (use --force to overwrite)", path)
		}
	}

	if result.APIKey != "" {
		if err := store.Store(secrets.DefaultService, secretEmbeddingKey, result.APIKey); err != nil {
			return "", snerr.Errorf(snerr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
		}
	}
	if result.TelegramToken != "" {
		if err := store.Store(secrets.DefaultService, secretTelegramToken, result.TelegramToken); err != nil {
			return "", snerr.Errorf(snerr.CodeSecretStoreFailure, "storing telegram token: %w", err)
		}
	}

	if err := writeConfigFile(path, []byte(GenerateConfigYAML(result)), force); err != nil {
		return "", err
	}
	return path, nil
}

func writeConfigFile(path string, data []byte, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return snerr.Errorf(snerr.CodeCLIInputInvalid, "config %s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return snerr.Errorf(snerr.CodeCLISetupFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return snerr.Errorf(snerr.CodeCLISetupFailure, "writing config: %w", err)
	}
	return nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up smartnotes interactively",
		Long: `Run an interactive wizard that picks an embedding provider, checks its
API key and optionally a Telegram bot token. Credentials go to the OS
keyring and the config references them through keyring:// URIs.

With --defaults the commented default config is written instead, which
also works without a terminal.`,
		Args: cobra.NoArgs,
		// Skips config discovery so a fresh install is not bootstrapped
		// before init runs.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE:              runInit,
	}

	cmd.Flags().String("path", "", "config file to write (default ~/.config/smartnotes/smartnotes.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.Flags().Bool("defaults", false, "write the commented default config without prompting")
	cmd.Flags().Bool("skip-telegram", false, "skip the Telegram bot step")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")
	defaults, _ := cmd.Flags().GetBool("defaults")
	skipTelegram, _ := cmd.Flags().GetBool("skip-telegram")

	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	if defaults {
		return writeDefaultConfig(cmd, path, force)
	}

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"smartnotes init needs an interactive terminal; use --defaults to write the default config.")
		return snerr.New(snerr.CodeCLISetupFailure, "smartnotes init: not an interactive terminal")
	}

	m := newInitModel(secretStoreFactory(), path)
	m.skipTelegram = skipTelegram
	m.force = force

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return snerr.Errorf(snerr.CodeCLISetupFailure, "init wizard: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return snerr.New(snerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return snerr.Errorf(snerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.configPath != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", fm.configPath)
	}
	return nil
}

func writeDefaultConfig(cmd *cobra.Command, path string, force bool) error {
	if err := writeConfigFile(path, config.DefaultConfigYAML, force); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Wrote %s\n\n", path)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintf(out, "  smartnotes secret set %s    # referenced as %s\n",
		secretEmbeddingKey, secrets.KeyringURI(secrets.DefaultService, secretEmbeddingKey))
	_, _ = fmt.Fprintf(out, "  smartnotes secret set %s       # needed by \"smartnotes bot\"\n", secretTelegramToken)
	_, err := fmt.Fprintln(out, "  smartnotes bootstrap")
	return err
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/artlens/artlens/internal/config"
	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/embed/google"
	"github.com/artlens/artlens/internal/embed/hash"
	"github.com/artlens/artlens/internal/embed/openai"
	"github.com/artlens/artlens/internal/secrets"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// providerChoice is one entry of the wizard's provider list.
type providerChoice struct {
	Text        string
	Image       string
	Description string
}

func (p providerChoice) needsKey() bool { return p.Text != hash.Name }

var supportedProviders = []providerChoice{
	{Text: google.Name, Image: google.Name, Description: "Gemini embeddings for text and images"},
	{Text: openai.Name, Image: hash.Name, Description: "OpenAI text embeddings; image search stays offline"},
	{Text: hash.Name, Image: hash.Name, Description: "offline hashing model for trying artlens out"},
}

type initWizardStep int

const (
	stepProvider initWizardStep = iota
	stepAPIKey
	stepValidateKey
	stepDone
	stepError
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider providerChoice
	APIKey   string
}

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

// validateProvider embeds a probe string with the chosen provider. Tests
// replace it to stay offline.
var validateProvider = func(ctx context.Context, p providerChoice, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	m, err := embed.NewText(embed.Config{Provider: p.Text, APIKey: key})
	if err != nil {
		return err
	}
	_, err = m.EmbedText(ctx, "artlens setup", embed.PurposeQuery)
	return err
}

// configPathForWrite returns where init writes the config. Tests override it.
var configPathForWrite = config.DefaultConfigPath

type initModel struct {
	step           initWizardStep
	providerIdx    int
	apiKeyInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: apiKey,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.step {
		case stepProvider:
			return m.handleProviderKey(msg)
		case stepAPIKey:
			return m.handleAPIKeyInput(msg)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
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

	if m.step == stepAPIKey {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
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
		if !m.result.Provider.needsKey() {
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
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
		return m, tea.Batch(m.spinner.Tick, validateProviderCmd(m.result.Provider, key))
	case "esc":
		m.step = stepProvider
		m.validationErr = ""
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Artlens Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Choose an embedding provider") + "\n\n")
		for i, p := range supportedProviders {
			line := fmt.Sprintf("%-8s %s", p.Text, p.Description)
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+line) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+line) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render(m.result.Provider.Text+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  esc to go back  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Checking " + m.result.Provider.Text + " API key…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("artlens ingest") + " then " + promptStyle.Render("artlens search \"water lilies\"") + ".\n")
		b.WriteString("Run " + promptStyle.Render("artlens doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func validateProviderCmd(p providerChoice, key string) tea.Cmd {
	return func() tea.Msg {
		if err := validateProvider(context.Background(), p, key); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

func apiKeyName(provider string) string { return provider + "-api-key" }

// GenerateConfigYAML renders the wizard result as an artlens.yaml. API
// keys appear only as keyring:// references.
func GenerateConfigYAML(result initResult) string {
	p := result.Provider

	var sb strings.Builder
	sb.WriteString("# Artlens configuration, generated by artlens init.\n")
	sb.WriteString("# Every other setting keeps its default; see `artlens doctor`.\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n")
	sb.WriteString("  path: data/artlens.db\n\n")

	sb.WriteString("embedding:\n")
	writeModel(&sb, "text", p.Text)
	writeModel(&sb, "image", p.Image)

	return sb.String()
}

func writeModel(sb *strings.Builder, role, provider string) {
	fmt.Fprintf(sb, "  %s:\n", role)
	fmt.Fprintf(sb, "    provider: %s\n", provider)
	switch provider {
	case openai.Name:
		fmt.Fprintf(sb, "    model: %s\n", openai.DefaultModel)
	case google.Name:
		fmt.Fprintf(sb, "    model: %s\n", google.DefaultModel)
	}
	if provider != hash.Name {
		fmt.Fprintf(sb, "    api_key: %q\n", secrets.URI(secrets.DefaultService, apiKeyName(provider)))
	}
	if role == "text" {
		sb.WriteString("    document_prefix: \"Represent this document for retrieval: \"\n")
	}
}

// storeSecretAndWriteConfig saves the API key to the keyring and writes the
// config. An existing config is only replaced with force, or when it is the
// untouched default written on first run.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	if result.Provider.needsKey() {
		if err := store.Set(secrets.DefaultService, apiKeyName(result.Provider.Text), result.APIKey); err != nil {
			return "", artlenserr.Wrapf(err, artlenserr.CodeSecretStoreFailure, "storing %s API key", result.Provider.Text)
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	if existing, err := os.ReadFile(cfgPath); err == nil && bytes.Equal(existing, config.DefaultConfigYAML) {
		forceOverwrite = true
	}

	if err := config.Write(cfgPath, []byte(GenerateConfigYAML(result)), forceOverwrite); err != nil {
		if artlenserr.IsConflict(err) {
			return "", artlenserr.Errorf(artlenserr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
		return "", err
	}
	return cfgPath, nil
}

func newInitCmd(_ *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Run an interactive wizard that picks an embedding provider and stores its
API key in the OS keyring. The config file references the key as a
keyring:// URI; no secret is written in plain text.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"artlens init requires an interactive terminal.\n"+
				"To configure artlens non-interactively, edit ~/.config/artlens/artlens.yaml directly.")
		return artlenserr.New(artlenserr.CodeCLISetupFailure, "artlens init: not an interactive terminal")
	}

	m := newInitModel(secretStoreFactory())
	m.forceOverwrite, _ = cmd.Flags().GetBool("force")

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return artlenserr.Errorf(artlenserr.CodeCLISetupFailure, "init wizard error: %w", err)
	}
	fm, ok := finalModel.(initModel)
	if !ok {
		return artlenserr.New(artlenserr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return artlenserr.Errorf(artlenserr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

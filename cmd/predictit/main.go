// Package main provides the CLI entrypoint for predictit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nlebedev/predictit/internal/api"
	"github.com/nlebedev/predictit/internal/config"
	"github.com/nlebedev/predictit/internal/model"
	"github.com/nlebedev/predictit/internal/pipeline"
	"github.com/nlebedev/predictit/internal/projectsui"
	"github.com/nlebedev/predictit/internal/results"
	"github.com/nlebedev/predictit/internal/snapshot"
	"github.com/nlebedev/predictit/internal/tui"
)

const (
	defaultServerURL      = "http://localhost:8000"
	defaultTimeoutSeconds = 60
	defaultMaxAgeHours    = 24
)

const (
	viewWizard   = "wizard"
	viewProjects = "projects"
)

var (
	serverURL      string
	timeoutSeconds int
	maxAgeHours    int

	loginEmail    string
	loginName     string
	loginRegister bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "predictit",
		Short:         "Terminal model-building wizard for the PredictIT backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWizardCmd(cmd, false)
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "backend base URL")
	rootCmd.PersistentFlags().IntVar(&timeoutSeconds, "timeout", defaultTimeoutSeconds, "request timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&maxAgeHours, "max-age-hours", defaultMaxAgeHours, "hours before a local snapshot is stale")

	rootCmd.AddCommand(newNewCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newProjectsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

type app struct {
	controller *pipeline.Controller
	store      *snapshot.Store
}

// mergeConfig folds the config file under any explicitly set flags.
func mergeConfig(cmd *cobra.Command) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Server.URL)
	applyIntConfig(cmd, "timeout", &timeoutSeconds, fileCfg.Server.TimeoutSeconds)
	applyIntConfig(cmd, "max-age-hours", &maxAgeHours, fileCfg.Snapshot.MaxAgeHours)

	if timeoutSeconds <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if maxAgeHours <= 0 {
		return fmt.Errorf("--max-age-hours must be > 0")
	}
	return nil
}

// newApp builds the composition root shared by most commands: config file
// merged under flags, cached token, API client, snapshot store, controller.
func newApp(cmd *cobra.Command) (*app, func(), error) {
	if err := mergeConfig(cmd); err != nil {
		return nil, nil, err
	}

	token := readToken(config.DefaultTokenPath())
	client, err := api.NewClient(serverURL, token, time.Duration(timeoutSeconds)*time.Second)
	if err != nil {
		return nil, nil, err
	}

	store, err := snapshot.Open(config.DefaultDBPath(), time.Duration(maxAgeHours)*time.Hour, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	cleanup := func() {
		if cerr := store.Close(); cerr != nil {
			logErrf("failed to close local store: %v\n", cerr)
		}
	}
	return &app{
		controller: pipeline.NewController(client, store),
		store:      store,
	}, cleanup, nil
}

func runWizardCmd(cmd *cobra.Command, fresh bool) error {
	a, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if fresh {
		a.controller.StartNewPipeline(context.Background())
	} else {
		a.controller.Restore()
	}

	view := viewWizard
	if !fresh {
		if mode, ok := a.store.ViewMode(); ok && mode == viewProjects {
			view = viewProjects
		}
	}
	for {
		a.store.SaveViewMode(view)
		switch view {
		case viewWizard:
			m := tui.NewModel(a.controller)
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("failed to run wizard: %w", err)
			}
			if !m.OpenProjects {
				return nil
			}
			view = viewProjects
		case viewProjects:
			m := projectsui.NewModel(a.controller)
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("failed to run projects browser: %w", err)
			}
			if !m.LoadedProject && !m.OpenWizard {
				return nil
			}
			view = viewWizard
		}
	}
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a fresh pipeline, ignoring any saved snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWizardCmd(cmd, true)
		},
	}
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the access token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	cmd.Flags().StringVar(&loginName, "name", "", "display name (with --register)")
	cmd.Flags().BoolVar(&loginRegister, "register", false, "create an account instead of signing in")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	if err := mergeConfig(cmd); err != nil {
		return err
	}

	email := strings.TrimSpace(loginEmail)
	var err error
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	name := strings.TrimSpace(loginName)
	if loginRegister && name == "" {
		name, err = promptLine("Name: ")
		if err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	client, err := api.NewClient(serverURL, "", time.Duration(timeoutSeconds)*time.Second)
	if err != nil {
		return err
	}
	var session api.Session
	if loginRegister {
		session, err = client.Register(context.Background(), name, email, password)
	} else {
		session, err = client.Login(context.Background(), email, password)
	}
	if err != nil {
		return err
	}
	if err := writeToken(config.DefaultTokenPath(), session.AccessToken); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s <%s>\n", session.User.Name, session.User.Email)
	return nil
}

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Browse saved projects",
		Args:  cobra.NoArgs,
		RunE:  runProjectsBrowserCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved projects",
		Args:  cobra.NoArgs,
		RunE:  runProjectsListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved project",
		Args:  cobra.ExactArgs(1),
		RunE:  runProjectsShowCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved project",
		Args:  cobra.ExactArgs(1),
		RunE:  runProjectsDeleteCmd,
	})
	return cmd
}

func runProjectsBrowserCmd(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	a.controller.Restore()
	a.store.SaveViewMode(viewProjects)

	m := projectsui.NewModel(a.controller)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run projects browser: %w", err)
	}
	if !m.LoadedProject && !m.OpenWizard {
		return nil
	}
	a.store.SaveViewMode(viewWizard)
	w := tui.NewModel(a.controller)
	if _, err := tea.NewProgram(w, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run wizard: %w", err)
	}
	return nil
}

func runProjectsListCmd(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	projects, err := a.controller.ListProjects(context.Background())
	if err != nil {
		return err
	}
	for _, line := range results.ProjectsTable(projects) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runProjectsShowCmd(cmd *cobra.Command, args []string) error {
	a, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	project, err := a.controller.GetProject(context.Background(), args[0])
	if err != nil {
		return err
	}
	for _, line := range projectShowLines(project) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func projectShowLines(project model.Project) []string {
	lines := []string{project.Name}
	if project.Description != "" {
		lines = append(lines, project.Description)
	}
	if project.Dataset != nil {
		lines = append(lines, fmt.Sprintf("Dataset: %s (%d rows, %d columns)",
			project.Dataset.Filename, project.Dataset.RowCount, len(project.Dataset.Columns)))
	}
	if project.Preprocessing != nil {
		lines = append(lines, fmt.Sprintf("Scaling: %s", project.Preprocessing.Scaler))
	}
	if project.Model != nil {
		lines = append(lines, fmt.Sprintf("Model: %s, target %s, features %s",
			project.Model.Kind, project.Model.TargetColumn, strings.Join(project.Model.FeatureColumns, ", ")))
	}
	if project.Result != nil {
		lines = append(lines, results.TrainingSummary(*project.Result, project.Split)...)
		lines = append(lines, results.ConfusionMatrix(project.Result.ConfusionMatrix)...)
	}
	return lines
}

func runProjectsDeleteCmd(cmd *cobra.Command, args []string) error {
	a, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := a.controller.DeleteProject(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
	if !result.CloudCleanupPerformed {
		logErrln("remote file cleanup was not confirmed")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# predictit configuration
# Uncomment a value to enable it. CLI flags override config values.

[server]
# url = %q
# timeout-seconds = %d

[snapshot]
# max-age-hours = %d
`,
		defaultServerURL,
		defaultTimeoutSeconds,
		defaultMaxAgeHours,
	)
}

func readToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("input must not be empty")
	}
	return line, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(password), nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

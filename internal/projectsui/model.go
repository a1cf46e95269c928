// Package projectsui provides the Bubble Tea saved-projects browser.
package projectsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nlebedev/predictit/internal/model"
	"github.com/nlebedev/predictit/internal/pipeline"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

type listLoadedMsg struct {
	projects []model.ProjectSummary
	err      error
}

type projectLoadedMsg struct {
	err error
}

type projectDeletedMsg struct {
	id           string
	cloudCleanup bool
	err          error
}

// Model implements the Bubble Tea projects browser.
type Model struct {
	controller *pipeline.Controller

	// Set when a project was loaded into the wizard before quitting.
	LoadedProject bool
	// Set when the user asked for the wizard without loading anything.
	OpenWizard bool

	projects []model.ProjectSummary
	list     table.Model

	width  int
	height int

	loading bool
	spin    spinner.Model
	errMsg  string
	status  string

	confirmDelete bool
	deleteID      string
	deleteName    string
}

// NewModel constructs a projects browser over the controller.
func NewModel(controller *pipeline.Controller) *Model {
	m := &Model{
		controller: controller,
		spin:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		loading:    true,
	}
	m.list = buildTable(nil, 0, 1)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.refreshCmd())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuildTable()
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case listLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.projects = msg.projects
		m.rebuildTable()
		return m, nil
	case projectLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.LoadedProject = true
		return m, tea.Quit
	case projectDeletedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.status = fmt.Sprintf("Deleted project %s.", msg.id)
		if !msg.cloudCleanup {
			m.status += " Remote file cleanup was not confirmed."
		}
		return m, tea.Batch(m.spin.Tick, m.refreshCmd())
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
		return m, tea.Quit
	}
	if m.confirmDelete {
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = false
			m.loading = true
			return m, tea.Batch(m.spin.Tick, m.deleteCmd(m.deleteID))
		case "n", "N", "esc":
			m.confirmDelete = false
			return m, nil
		}
		return m, nil
	}
	if m.loading {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+o", "w":
		m.OpenWizard = true
		return m, tea.Quit
	case "r":
		m.loading = true
		m.status = ""
		return m, tea.Batch(m.spin.Tick, m.refreshCmd())
	case "enter":
		project, ok := m.selectedProject()
		if !ok {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spin.Tick, m.loadCmd(project.ID))
	case "d":
		project, ok := m.selectedProject()
		if !ok {
			return m, nil
		}
		m.confirmDelete = true
		m.deleteID = project.ID
		m.deleteName = project.Name
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) selectedProject() (model.ProjectSummary, bool) {
	idx := m.list.Cursor()
	if idx < 0 || idx >= len(m.projects) {
		return model.ProjectSummary{}, false
	}
	return m.projects[idx], true
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.controller.ListProjects(context.Background())
		return listLoadedMsg{projects: projects, err: err}
	}
}

func (m *Model) loadCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return projectLoadedMsg{err: m.controller.LoadProject(context.Background(), id)}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.controller.DeleteProject(context.Background(), id)
		return projectDeletedMsg{id: id, cloudCleanup: result.CloudCleanupPerformed, err: err}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.confirmDelete {
		return m.renderConfirmModal()
	}
	var body string
	switch {
	case m.loading:
		body = m.spin.View() + " Loading projects..."
	case len(m.projects) == 0:
		body = mutedStyle.Render("No saved projects. Train a model in the wizard and press s to save one.")
	default:
		body = m.list.View()
	}
	sections := []string{
		titleStyle.Render("Saved projects"),
		"",
		body,
		"",
		m.renderFooter(),
	}
	return strings.Join(sections, "\n")
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("enter: open  d: delete  r: refresh  w: wizard  quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	if m.status != "" {
		return help + "\n" + mutedStyle.Render(m.status)
	}
	return help
}

func (m *Model) renderConfirmModal() string {
	body := strings.Join([]string{
		titleStyle.Render("Delete project"),
		fmt.Sprintf("Delete %q? This cannot be undone.", m.deleteName),
		headerStyle.Render("y: delete  n: keep"),
	}, "\n")
	box := modalStyle.Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) rebuildTable() {
	height := m.height - 6
	if height < 3 {
		height = 3
	}
	m.list = buildTable(m.projects, m.width, height)
	m.list.Focus()
}

func buildTable(projects []model.ProjectSummary, width, height int) table.Model {
	nameWidth := 24
	descWidth := 30
	if width > 100 {
		nameWidth = width / 4
		descWidth = width / 3
	}
	columns := []table.Column{
		{Title: "Name", Width: nameWidth},
		{Title: "Description", Width: descWidth},
		{Title: "Rows", Width: 7},
		{Title: "Accuracy", Width: 9},
		{Title: "Updated", Width: 19},
	}
	rows := make([]table.Row, 0, len(projects))
	for _, p := range projects {
		rowCount := ""
		if p.Dataset != nil {
			rowCount = strconv.Itoa(p.Dataset.RowCount)
		}
		accuracy := ""
		if p.Result != nil {
			accuracy = fmt.Sprintf("%.1f%%", p.Result.Accuracy*100)
		}
		rows = append(rows, table.Row{p.Name, p.Description, rowCount, accuracy, p.UpdatedAt})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(height),
	)
	t.SetWidth(width)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	t.SetStyles(styles)
	return t
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/environment"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	paramStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	env      *environment.Environment
	cfg      toolConfig
	doc      string
	label    string
	result   string
	ops      []opInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type opInfo struct {
	name   string
	params []paramInfo
	call   func(ctx context.Context, env *environment.Environment, args []string) (string, error)
}

type paramInfo struct {
	name        string
	placeholder string
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(cfg toolConfig, doc string) *interactiveModel {
	label := cfg.Database
	if label == "" {
		label = "(ephemeral)"
	}
	return &interactiveModel{
		cfg:   cfg,
		doc:   doc,
		label: label,
		ops:   explorerOps(),
		state: stateSelectOp,
	}
}

type readyMsg struct {
	err error
	env *environment.Environment
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.bringUp
}

func (m *interactiveModel) bringUp() tea.Msg {
	ctx := context.Background()

	env, err := environment.Initialize(m.cfg.Name, m.doc, m.cfg.Verbose, driverOptions()...)
	if err != nil {
		return readyMsg{err: err}
	}
	if err := seedDefaultConfig(ctx, env, m.cfg.Sources); err != nil {
		env.Destroy()
		return readyMsg{err: err}
	}
	if _, err := env.Engine(ctx); err != nil {
		env.Destroy()
		return readyMsg{err: err}
	}
	return readyMsg{env: env}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.env != nil {
				m.env.Destroy()
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(m.ops)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				if m.env == nil {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callOperation
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callOperation

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.env = msg.env

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	op := m.ops[m.selected]
	m.inputs = make([]textinput.Model, len(op.params))
	for i, p := range op.params {
		ti := textinput.New()
		ti.Placeholder = p.placeholder
		ti.Prompt = p.name + ": "
		ti.Width = 48
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callOperation() tea.Msg {
	op := m.ops[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = strings.TrimSpace(input.Value())
	}
	result, err := op.call(context.Background(), m.env, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: prettyJSON(result)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.env == nil {
		return "Bringing the engine up..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("SZ Explorer"))
	b.WriteString(" ")
	b.WriteString(m.label)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range m.ops {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatOp(op)))
			} else {
				b.WriteString(cursor + m.formatOp(op))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", opStyle.Render(op.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(op.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatOp(op opInfo) string {
	var params []string
	for _, p := range op.params {
		params = append(params, paramStyle.Render(p.name))
	}
	return opStyle.Render(op.name) + "(" + strings.Join(params, ", ") + ")"
}

func explorerOps() []opInfo {
	return []opInfo{
		{
			name: "add-record",
			params: []paramInfo{
				{name: "data source", placeholder: "CUSTOMERS"},
				{name: "record id", placeholder: "1001"},
				{name: "definition", placeholder: `{"NAME_FULL":"Ann Example"}`},
			},
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				key := szruntime.RecordKey{DataSource: args[0], RecordID: args[1]}
				return engine.AddRecord(ctx, key, args[2], szruntime.WithInfo)
			},
		},
		{
			name: "get-entity",
			params: []paramInfo{
				{name: "data source", placeholder: "CUSTOMERS"},
				{name: "record id", placeholder: "1001"},
			},
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				return engine.GetEntity(ctx, szruntime.ByRecord(args[0], args[1]), szruntime.EntityDefaultFlags)
			},
		},
		{
			name: "delete-record",
			params: []paramInfo{
				{name: "data source", placeholder: "CUSTOMERS"},
				{name: "record id", placeholder: "1001"},
			},
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				key := szruntime.RecordKey{DataSource: args[0], RecordID: args[1]}
				return engine.DeleteRecord(ctx, key, szruntime.WithInfo)
			},
		},
		{
			name: "search",
			params: []paramInfo{
				{name: "attributes", placeholder: `{"NAME_FULL":"Ann Example"}`},
			},
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				return engine.SearchByAttributes(ctx, args[0], "", szruntime.SearchByAttributesDefaultFlags)
			},
		},
		{
			name: "why-search",
			params: []paramInfo{
				{name: "attributes", placeholder: `{"NAME_FULL":"Ann Example"}`},
				{name: "entity id", placeholder: "1"},
			},
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				id, err := parseEntityID(args[1])
				if err != nil {
					return "", err
				}
				return engine.WhySearch(ctx, args[0], id, "", szruntime.WhySearchDefaultFlags)
			},
		},
		{
			name: "find-path",
			params: []paramInfo{
				{name: "start entity id", placeholder: "1"},
				{name: "end entity id", placeholder: "2"},
				{name: "max degrees", placeholder: "3"},
			},
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				start, err := parseEntityID(args[0])
				if err != nil {
					return "", err
				}
				end, err := parseEntityID(args[1])
				if err != nil {
					return "", err
				}
				degrees, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return "", fmt.Errorf("max degrees must be a number, got %q", args[2])
				}
				return engine.FindPath(ctx, start, end, degrees, nil, nil, szruntime.FindPathDefaultFlags)
			},
		},
		{
			name:   "export",
			params: nil,
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				handle, err := engine.ExportJSONEntityReport(ctx, szruntime.ExportDefaultFlags)
				if err != nil {
					return "", err
				}
				defer engine.CloseExport(ctx, handle)
				var b strings.Builder
				for {
					line, err := engine.FetchNext(ctx, handle)
					if err != nil {
						return "", err
					}
					if line == "" {
						return b.String(), nil
					}
					b.WriteString(line)
				}
			},
		},
		{
			name:   "stats",
			params: nil,
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				engine, err := env.Engine(ctx)
				if err != nil {
					return "", err
				}
				return engine.GetStats(ctx)
			},
		},
		{
			name:   "version",
			params: nil,
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				product, err := env.Product(ctx)
				if err != nil {
					return "", err
				}
				return product.GetVersion(ctx)
			},
		},
		{
			name:   "license",
			params: nil,
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				product, err := env.Product(ctx)
				if err != nil {
					return "", err
				}
				return product.GetLicense(ctx)
			},
		},
		{
			name:   "repository-info",
			params: nil,
			call: func(ctx context.Context, env *environment.Environment, args []string) (string, error) {
				diagnostic, err := env.Diagnostic(ctx)
				if err != nil {
					return "", err
				}
				return diagnostic.GetRepositoryInfo(ctx)
			},
		},
	}
}

func parseEntityID(s string) (szruntime.EntityID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("entity id must be a number, got %q", s)
	}
	return szruntime.EntityID(v), nil
}

func runInteractive(cfg toolConfig, doc string) error {
	p := tea.NewProgram(newInteractiveModel(cfg, doc), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

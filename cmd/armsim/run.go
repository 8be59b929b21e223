package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/logging"
	"github.com/gwillem/armsim/pkg/motion"
	"github.com/gwillem/armsim/pkg/robot"
	"github.com/gwillem/armsim/pkg/sim"
	"github.com/gwillem/armsim/pkg/status"
)

type RunCommand struct {
	LogFile string `long:"log-file" default:"armsim.log" description:"Log file used while the terminal UI owns the screen"`
}

const (
	headerHeight = 2  // title + blank line
	legendHeight = 2  // legend row + blank
	panelHeight  = 10 // status tables
	footerHeight = 7  // log box height
	helpHeight   = 2  // key help
	maxLogs      = 5  // number of log messages to show
	borderSize   = 2  // chart border
)

// Chart series colors, one per mirrored motor.
var motorColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.Gripper:      "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
)

type runModel struct {
	sim      *sim.Simulator
	lines    *status.Channel
	motion   motion.Config
	actions  map[string]binding
	record   bool
	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	state    sim.State
	quitting bool
	last     map[robot.MotorName]float64
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement reports whether any position changed since the last push.
func (m *runModel) hasMovement(positions map[robot.MotorName]float64) bool {
	if m.last == nil {
		return true
	}
	for name, pos := range positions {
		if last, ok := m.last[name]; !ok || pos != last {
			return true
		}
	}
	return false
}

type stateMsg sim.State
type logMsg string

func waitForState(s *sim.Simulator) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-s.States())
	}
}

func waitForLog(ch *status.Channel) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ch.Lines())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - panelHeight - footerHeight - helpHeight - borderSize
	if height < 6 {
		height = 6
	}
	return width, height
}

func newRunModel(s *sim.Simulator, lines *status.Channel, mc motion.Config) runModel {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(-100, 100),
	)
	for _, name := range robot.MirroredMotors() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return runModel{
		sim:     s,
		lines:   lines,
		motion:  mc,
		actions: keyActions(),
		chart:   &chart,
		state:   s.State(),
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.sim),
		waitForLog(m.lines),
	)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if key == "g" {
			m.record = !m.record
			if m.record {
				m.lines.Report("Record Mode: ON")
			} else {
				m.lines.Report("Record Mode: OFF")
			}
			return m, nil
		}
		b, ok := m.actions[key]
		if !ok {
			return m, nil
		}
		if b.record && !m.record {
			m.lines.Report("Record Mode is OFF (press G)")
			return m, nil
		}
		b.action(m.sim)
		return m, nil

	case stateMsg:
		m.state = sim.State(msg)
		positions := robot.MirrorPositions(m.state.Angles, m.state.Aperture, m.motion.JointLimits, m.motion.GripperLimits)
		// Freeze the chart while the arm is idle
		if m.hasMovement(positions) {
			for name, pos := range positions {
				m.chart.PushDataSet(string(name), pos)
			}
			m.chart.DrawAll()
			m.last = positions
		}
		return m, waitForState(m.sim)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.lines)
	}

	return m, nil
}

func (m runModel) View() string {
	if m.quitting {
		return "Simulation stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("armsim"))
	sb.WriteString(fmt.Sprintf(" - %d Hz - speed %.2fx", m.sim.Hz(), m.state.Speed))
	if m.record {
		sb.WriteString(activeStyle.Render("REC"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n\n")

	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderJoints(m.state), "  ", renderStatus(m.state)))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	logLines := statusStyle.Render("Press '1' to start the routine, 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Width(max(m.width-2, 20)).Render(helpLine()))
	sb.WriteString("\n")

	return sb.String()
}

func seriesLabel(name robot.MotorName) string {
	for _, j := range kinematics.AllJoints() {
		if robot.JointMotor(j) == name {
			return j.String()
		}
	}
	return string(name)
}

func renderLegend() string {
	var items []string
	for _, name := range robot.MirroredMotors() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+seriesLabel(name))
	}
	return strings.Join(items, "  ")
}

func renderJoints(st sim.State) string {
	rows := make([][]string, 0, kinematics.NumJoints+1)
	for _, j := range kinematics.AllJoints() {
		rows = append(rows, []string{
			j.String(),
			fmt.Sprintf("%.1f°", st.Angles[j]),
			fmt.Sprintf("%.1f°", st.Targets[j]),
		})
	}
	rows = append(rows, []string{
		"gripper",
		fmt.Sprintf("%.2f", st.Aperture),
		fmt.Sprintf("%.2f", st.ApertureTarget),
	})

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Joint", "Angle", "Target").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		}).
		Render()
}

func renderStatus(st sim.State) string {
	s := st.Status
	step := "-"
	if s.Active {
		step = fmt.Sprintf("%d/%d", s.StepIndex+1, s.TotalSteps)
	}
	object := "free"
	if s.HoldingObject {
		object = "held"
	}
	rows := [][]string{
		{"automation", fmt.Sprintf("%s (step %s)", s.AutomationState, step)},
		{"driver", s.Driver.String()},
		{"gripper", string(s.GripperState)},
		{"object", fmt.Sprintf("%s at (%.1f, %.1f, %.1f)", object, st.Object.X, st.Object.Y, st.Object.Z)},
		{"end effector", fmt.Sprintf("(%.1f, %.1f, %.1f)", st.EndEffector.X, st.EndEffector.Y, st.EndEffector.Z)},
		{"poses", fmt.Sprintf("%d saved, playing #%d", s.SavedPoses, s.PlaybackIndex+1)},
	}
	if s.Driver != sim.DriverPlayback {
		rows[5][1] = fmt.Sprintf("%d saved", s.SavedPoses)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Status", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headStyle
			case row == 0 && col == 1 && s.Active:
				return activeStyle
			default:
				return cellStyle
			}
		}).
		Render()
}

func (c *RunCommand) Execute(args []string) error {
	lines := status.NewChannel(100, nil)
	a, err := newApp(func(l *logging.Config) {
		if l.Terminal() {
			l.Output = c.LogFile
		}
	}, lines)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("simulation error", zap.Error(err))
		}
	}()

	p := tea.NewProgram(newRunModel(a.sim, lines, a.cfg.Motion), tea.WithAltScreen())
	_, err = p.Run()

	cancel()
	<-done

	if err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}

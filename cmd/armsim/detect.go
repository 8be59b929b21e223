package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/armsim/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type DetectCommand struct {
	Port            string `long:"port" description:"Serial port of the arm (skips the scan)"`
	CalibrationFile string `long:"calibration-file" description:"Write calibration JSON here instead of inline in the config"`
}

func (c *DetectCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armsim mirror setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := robot.LoadConfigOrDefault(configPath())
	if err != nil {
		return err
	}

	port := c.Port
	if port == "" {
		port, err = selectArm()
		if err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Mirror Arm ━━━"))
	fmt.Println()
	cal, err := calibrateArm(port)
	if err != nil {
		return err
	}

	cfg.Mirror.Port = port
	if c.CalibrationFile != "" {
		if err := cal.Save(c.CalibrationFile); err != nil {
			return err
		}
		cfg.Mirror.CalibrationFile = c.CalibrationFile
		cfg.Mirror.Calibration = nil
	} else {
		cfg.Mirror.Calibration = cal
	}

	if err := cfg.SaveTo(configPath()); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", configPath())
	fmt.Println("Start the simulation with: " + headerStyle.Render("armsim run"))
	return nil
}

// selectArm scans for SO-101 arms and lets the user pick the one to mirror.
func selectArm() (string, error) {
	fmt.Println("Scanning for robot arms...")
	fmt.Println()

	arms := findArms()
	if len(arms) == 0 {
		return "", fmt.Errorf("no SO-101 arms found, make sure the arm is connected and powered on")
	}
	fmt.Printf("Found %d arm(s).\n", len(arms))

	for i, arm := range arms {
		if useArm(arm) {
			for _, rest := range arms[i+1:] {
				rest.bus.Close()
			}
			return arm.port, nil
		}
	}
	return "", fmt.Errorf("no arm selected")
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func openBus(port string) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: robot.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, err := openBus(port)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		servos, err := bus.Scan(ctx, 1, len(robot.AllMotors()))
		cancel()

		if err != nil || !isSOArm(servos) {
			bus.Close()
			continue
		}

		fmt.Printf("  Found SO-101 arm on %s\n", port)
		arms = append(arms, armInfo{port: port, servos: servos, bus: bus})
	}
	return arms
}

// isSOArm checks for exactly the servo IDs 1-6.
func isSOArm(servos []feetech.FoundServo) bool {
	n := len(robot.AllMotors())
	if len(servos) != n {
		return false
	}

	ids := make(map[int]bool, n)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= n; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

// useArm wiggles the shoulder pan servo and asks whether this arm should mirror
// the simulation.
func useArm(arm armInfo) bool {
	defer arm.bus.Close()

	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return false
	}

	if original, err := servo.Position(ctx); err == nil && servo.Enable(ctx) == nil {
		fmt.Printf("\n  Wiggling arm on %s...\n", arm.port)
		const wiggle, moveMs = 30, 500
		for _, pos := range []int{original + wiggle, original - wiggle, original} {
			servo.SetPositionWithTime(ctx, pos, moveMs)
			time.Sleep((moveMs + 100) * time.Millisecond)
		}
		servo.Disable(ctx)
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Mirror the simulation on %s?", arm.port)).
				Description("The arm that just wiggled").
				Options(
					huh.NewOption("Use this arm", "use"),
					huh.NewOption("Skip this arm", "skip"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return choice == "use"
}

// calibrateArm records the range of motion of every motor while the user
// moves the arm by hand.
func calibrateArm(port string) (robot.Calibration, error) {
	bus, err := openBus(port)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", port, err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	servos, err := bus.Scan(ctx, 1, len(robot.AllMotors()))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", port, err)
	}
	if !isSOArm(servos) {
		return nil, fmt.Errorf("not an SO-101 arm (expected 6 servos with IDs 1-6)")
	}

	servoMap := make(map[int]*feetech.Servo, len(servos))
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Free the joints so the arm can be moved by hand
	for _, servo := range servoMap {
		servo.Disable(context.Background())
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println()

	model := newCalibrationModel(robot.AllMotors(), servoMap)
	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	return finalModel.(calibrationModel).calibration(), nil
}

// Calibration TUI model
type calibrationModel struct {
	motors       []robot.MotorName
	servoMap     map[int]*feetech.Servo
	curPositions map[robot.MotorName]int
	minPositions map[robot.MotorName]int
	maxPositions map[robot.MotorName]int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(motors []robot.MotorName, servoMap map[int]*feetech.Servo) calibrationModel {
	m := calibrationModel{
		motors:       motors,
		servoMap:     servoMap,
		curPositions: make(map[robot.MotorName]int, len(motors)),
		minPositions: make(map[robot.MotorName]int, len(motors)),
		maxPositions: make(map[robot.MotorName]int, len(motors)),
	}
	for i, name := range motors {
		pos, _ := servoMap[i+1].Position(context.Background())
		m.curPositions[name] = pos
		m.minPositions[name] = pos
		m.maxPositions[name] = pos
	}
	return m
}

func (m calibrationModel) track(name robot.MotorName, pos int) {
	m.curPositions[name] = pos
	m.minPositions[name] = min(m.minPositions[name], pos)
	m.maxPositions[name] = max(m.maxPositions[name], pos)
}

func (m calibrationModel) calibration() robot.Calibration {
	cal := make(robot.Calibration, len(m.motors))
	for i, name := range m.motors {
		cal[name] = robot.MotorCalibration{
			ID:       i + 1,
			RangeMin: m.minPositions[name],
			RangeMax: m.maxPositions[name],
		}
	}
	return cal
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, name := range m.motors {
			pos, err := m.servoMap[i+1].Position(ctx)
			if err != nil {
				continue
			}
			m.track(name, pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	motorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	currentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	rangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	rangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.motors))
	ranges := make([]int, 0, len(m.motors))
	for _, name := range m.motors {
		span := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, span)
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", m.curPositions[name]),
			fmt.Sprintf("%d", m.minPositions[name]),
			fmt.Sprintf("%d", m.maxPositions[name]),
			fmt.Sprintf("%d", span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			switch col {
			case 0:
				return motorStyle
			case 1:
				return currentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return rangeGoodStyle
				}
				return rangeLowStyle
			default:
				return cellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done")
}

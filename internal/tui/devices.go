// Package tui implements the interactive output-device picker. The chosen
// device is persisted to the settings store so headless runs pick it up.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"reactive/internal/audio"
	"reactive/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// DevicePickerModel is the Bubble Tea model for picking a loopback source
// among the output devices.
type DevicePickerModel struct {
	provider audio.DeviceProvider
	store    *config.SettingsStore

	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	saved         bool
	savedName     string
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

type savedMsg struct {
	name string
	err  error
}

// NewDevicePickerModel creates the picker over a provider and settings store.
func NewDevicePickerModel(provider audio.DeviceProvider, store *config.SettingsStore) DevicePickerModel {
	return DevicePickerModel{
		provider: provider,
		store:    store,
	}
}

// Init starts the device fetch.
func (m DevicePickerModel) Init() tea.Cmd {
	return m.fetchDevices
}

func (m DevicePickerModel) fetchDevices() tea.Msg {
	if m.provider == nil || !m.provider.Ready() {
		return errMsg{audio.ErrNotConfigured}
	}
	devices, err := m.provider.OutputDevices()
	if err != nil {
		return errMsg{err}
	}
	if len(devices) == 0 {
		return errMsg{audio.ErrDeviceUnavailable}
	}
	return devicesMsg{devices}
}

// saveSelection persists the highlighted device as the preferred loopback
// source.
func (m DevicePickerModel) saveSelection() tea.Msg {
	device := m.devices[m.selectedIndex]
	settings := m.store.Load()
	settings.AudioDeviceID = device.UID
	settings.AudioDeviceName = device.Name
	if err := m.store.Save(settings); err != nil {
		return savedMsg{err: err}
	}
	return savedMsg{name: device.Name}
}

// Update handles input and updates the model.
func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			if len(m.devices) > 0 {
				m.viewport.SetContent(m.renderDevices())
			}
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}

	case errMsg:
		m.err = msg.err

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.saved = true
		m.savedName = msg.name
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))) {
			return m, tea.Quit
		}

		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderDevices())
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderDevices())
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if len(m.devices) > 0 {
				return m, m.saveSelection
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	title := titleStyle.Render("Loopback Source")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the output-device list.
func (m DevicePickerModel) renderDevices() string {
	var sb strings.Builder

	if len(m.devices) == 0 {
		return "No audio output devices found."
	}

	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s\n", device.ID, device.Name)
		deviceInfo += fmt.Sprintf("    Output channels: %d\n", device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// SavedDeviceName returns the name persisted by the last Enter press, empty
// if the picker was quit without selecting.
func (m DevicePickerModel) SavedDeviceName() string {
	if !m.saved {
		return ""
	}
	return m.savedName
}

// StartDevicePickerUI launches the picker and returns the persisted device
// name, empty if none was chosen.
func StartDevicePickerUI(provider audio.DeviceProvider, store *config.SettingsStore) (string, error) {
	p := tea.NewProgram(
		NewDevicePickerModel(provider, store),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	if model, ok := final.(DevicePickerModel); ok {
		return model.SavedDeviceName(), nil
	}
	return "", nil
}

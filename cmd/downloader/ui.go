package main

import (
	"context"
	"fmt"
	"strings"

	"fulfillment-service/internal/download"

	tea "github.com/charmbracelet/bubbletea"
)

type eventMsg download.Event

type batchDoneMsg struct {
	err error
}

type manualDoneMsg struct {
	itemID string
	err    error
}

type model struct {
	ctx       context.Context
	orch      *download.Orchestrator
	orderID   string
	assets    []download.Asset
	status    map[string]string
	remaining int
	state     download.State
	err       error
}

func newModel(ctx context.Context, orch *download.Orchestrator, orderID string, assets []download.Asset, ticks int) model {
	status := make(map[string]string, len(assets))
	for _, a := range assets {
		status[a.ItemID] = "waiting"
	}
	return model{
		ctx:       ctx,
		orch:      orch,
		orderID:   orderID,
		assets:    assets,
		status:    status,
		remaining: ticks,
		state:     download.StateCountingDown,
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		_, err := m.orch.RunBatch(m.ctx, m.assets)
		return batchDoneMsg{err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "q":
			return m, tea.Quit
		default:
			idx := digitIndex(key)
			if idx < 0 || idx >= len(m.assets) {
				return m, nil
			}
			asset := m.assets[idx]
			m.status[asset.ItemID] = "queued"
			return m, m.downloadNow(asset)
		}

	case eventMsg:
		switch msg.Kind {
		case download.EventCountdown:
			m.remaining = msg.Remaining
		case download.EventTriggered:
			// fallbacks to the browser read the same as saved files
			m.status[msg.Result.Asset.ItemID] = "started"
			m.state = download.StateDownloading
		case download.EventComplete:
			m.state = download.StateComplete
		}

	case batchDoneMsg:
		// the final view stays on screen after the program exits
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.state = download.StateComplete
		}
		return m, tea.Quit

	case manualDoneMsg:
		if msg.err != nil {
			m.status[msg.itemID] = "unavailable"
		}
	}
	return m, nil
}

func (m model) downloadNow(asset download.Asset) tea.Cmd {
	return func() tea.Msg {
		_, err := m.orch.DownloadNow(m.ctx, asset)
		return manualDoneMsg{itemID: asset.ItemID, err: err}
	}
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Order %s\n\n", m.orderID)

	switch {
	case m.err != nil:
		fmt.Fprintf(b, "Download failed: %v\n\n", m.err)
	case m.state == download.StateComplete:
		fmt.Fprintln(b, "Downloads Started")
		fmt.Fprintln(b, "")
	case m.state == download.StateCountingDown:
		fmt.Fprintf(b, "Your downloads start in %d...\n\n", m.remaining)
	default:
		fmt.Fprintln(b, "Downloading...")
		fmt.Fprintln(b, "")
	}

	for i, a := range m.assets {
		fmt.Fprintf(b, " [%d] %s  (%s)\n", i+1, displayTitle(a.Title), m.status[a.ItemID])
	}

	fmt.Fprintln(b, "\nControls: 1-9 download an item now, q to quit")
	return b.String()
}

func digitIndex(key string) int {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return -1
	}
	return int(key[0] - '1')
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled"
	}
	return title
}

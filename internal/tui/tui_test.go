package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/handiism/media-downloader/internal/assemble"
	"github.com/handiism/media-downloader/internal/config"
	"github.com/handiism/media-downloader/internal/download"
	"github.com/handiism/media-downloader/internal/model"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_UpdateOptionToggles(t *testing.T) {
	m := NewModel(config.DefaultSettings())
	if m.playlist || m.strict || m.verbose {
		t.Fatal("options should start off with default settings")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if !m.playlist || !m.strict || !m.verbose {
		t.Errorf("toggles = %v %v %v", m.playlist, m.strict, m.verbose)
	}
	if !strings.Contains(m.View(), "[×] Verbose") {
		t.Error("view does not show the verbose toggle")
	}
}

func TestModel_UpdateProgressMessages(t *testing.T) {
	m := NewModel(config.DefaultSettings())
	m.state = StateResolving

	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "noise", Level: download.LevelVerbose}})
	if len(m.logs) != 0 {
		t.Errorf("verbose message logged: %v", m.logs)
	}

	for i := range maxLogs + 3 {
		m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: strings.Repeat("x", i+1), Level: download.LevelInfo}})
	}
	if len(m.logs) != maxLogs {
		t.Errorf("logs = %d, want %d", len(m.logs), maxLogs)
	}

	p := model.Progress{ItemID: "v1", Title: "Clip", Percent: 42, State: model.StateTransferring}
	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Level: download.LevelVerbose, Update: &p}})
	if m.state != StateDownloading {
		t.Errorf("state = %v, want downloading", m.state)
	}
	if !strings.Contains(m.renderItems(), " 42%") {
		t.Errorf("items = %q", m.renderItems())
	}
}

func TestModel_UpdateDownloadDone(t *testing.T) {
	tests := []struct {
		name  string
		msg   DownloadDoneMsg
		state State
	}{
		{
			name:  "success",
			msg:   DownloadDoneMsg{Report: &download.Report{Output: &assemble.Output{Path: "/out/a.mp4"}}},
			state: StateComplete,
		},
		{
			name:  "strict partial failure keeps the output",
			msg:   DownloadDoneMsg{Report: &download.Report{Output: &assemble.Output{Path: "/out/playlist.zip"}}, Err: download.ErrPartialFailure},
			state: StateComplete,
		},
		{
			name:  "failure",
			msg:   DownloadDoneMsg{Err: download.ErrInvalidURL},
			state: StateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(config.DefaultSettings())
			m.state = StateDownloading
			m = update(t, m, tt.msg)
			if m.state != tt.state {
				t.Errorf("state = %v, want %v", m.state, tt.state)
			}
		})
	}
}

func TestModel_UpdateStartError(t *testing.T) {
	m := NewModel(config.DefaultSettings())
	m.newManager = func(*config.Settings, func(download.ProgressEvent)) (*download.Manager, error) {
		return nil, errors.New("unknown profile")
	}
	m.textInput.SetValue("https://example.com/watch/1")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != StateError || m.err == nil {
		t.Errorf("state = %v, err = %v", m.state, m.err)
	}
}

package tui

import (
	"testing"

	"github.com/reelvault/reelvault/internal/model"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "q":
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func buildTrackSet() *model.TrackSet {
	ts := model.NewTrackSet()
	low := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v-low", Codec: "h264"}, Bitrate: 1000, Height: 480}
	high := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v-high", Codec: "h264"}, Bitrate: 8000, Height: 1080}
	audio := &model.AudioTrack{TrackHeader: model.TrackHeader{ID: "a1", Codec: "aac"}, Bitrate: 128000}
	sub := &model.TextTrack{TrackHeader: model.TrackHeader{ID: "s1", Codec: "vtt", Language: "en"}}

	ts.AddVideo(low, false)
	ts.AddVideo(high, false)
	ts.AddAudio(audio, false)
	ts.AddSubtitle(sub, false)
	return ts
}

func TestNewTrackPickerPreselectsHighestBitrate(t *testing.T) {
	tp := NewTrackPicker(buildTrackSet())
	if !tp.selected["v-high"] {
		t.Error("expected highest-bitrate video preselected")
	}
	if tp.selected["v-low"] {
		t.Error("expected lower-bitrate video not preselected")
	}
	if !tp.selected["a1"] {
		t.Error("expected sole audio track preselected")
	}
}

func TestTrackPickerToggleAndResult(t *testing.T) {
	tp := NewTrackPicker(buildTrackSet())
	tp.cursor = 0 // v-low, first row
	tp.Update(keyMsg(" "))

	res := tp.Result()
	if len(res.Videos) != 2 {
		t.Fatalf("expected both videos selected after toggling v-low on, got %d", len(res.Videos))
	}
	if len(res.Audios) != 1 {
		t.Fatalf("expected 1 audio selected, got %d", len(res.Audios))
	}
	if len(res.Subtitles) != 0 {
		t.Fatalf("expected 0 subtitles selected by default, got %d", len(res.Subtitles))
	}
}

func TestTrackPickerCancel(t *testing.T) {
	tp := NewTrackPicker(buildTrackSet())
	tp.Update(keyMsg("q"))
	res := tp.Result()
	if !res.Canceled {
		t.Fatal("expected cancel on q")
	}
}

package tui

import (
	"fmt"
	"strings"

	"github.com/reelvault/reelvault/internal/model"

	tea "github.com/charmbracelet/bubbletea"
)

// TrackPickerResult is returned when track selection is complete.
type TrackPickerResult struct {
	Videos   []*model.VideoTrack
	Audios   []*model.AudioTrack
	Subtitles []*model.TextTrack
	Canceled bool
}

// TrackPicker is a TUI for interactive track selection over one title's
// TrackSet.
type TrackPicker struct {
	videos       []*model.VideoTrack
	audios       []*model.AudioTrack
	subtitles    []*model.TextTrack
	selected     map[string]bool
	cursor       int
	scrollOffset int
	visibleRows  int
	width        int
	height       int
	done         bool
	canceled     bool
}

// NewTrackPicker creates a new track picker TUI over ts, pre-selecting the
// highest-bitrate video and audio rendition.
func NewTrackPicker(ts *model.TrackSet) *TrackPicker {
	tp := &TrackPicker{
		videos:      ts.Videos,
		audios:      ts.Audios,
		subtitles:   ts.Subtitles,
		selected:    make(map[string]bool),
		width:       80,
		height:      24,
		visibleRows: 15,
	}

	if len(tp.videos) > 0 {
		best := tp.videos[0]
		for _, v := range tp.videos {
			if v.Bitrate > best.Bitrate {
				best = v
			}
		}
		tp.selected[best.ID] = true
	}
	if len(tp.audios) > 0 {
		best := tp.audios[0]
		for _, a := range tp.audios {
			if a.Bitrate > best.Bitrate {
				best = a
			}
		}
		tp.selected[best.ID] = true
	}

	return tp
}

func (tp *TrackPicker) Init() tea.Cmd {
	return nil
}

func (tp *TrackPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			tp.canceled = true
			tp.done = true
			return tp, tea.Quit

		case "enter":
			tp.done = true
			return tp, tea.Quit

		case "up", "k":
			if tp.cursor > 0 {
				tp.cursor--
				tp.adjustScroll()
			}

		case "down", "j":
			total := len(tp.videos) + len(tp.audios) + len(tp.subtitles)
			if tp.cursor < total-1 {
				tp.cursor++
				tp.adjustScroll()
			}

		case " ", "x":
			id := tp.idAtCursor()
			if id != "" {
				tp.selected[id] = !tp.selected[id]
			}

		case "a":
			for _, t := range tp.audios {
				tp.selected[t.ID] = true
			}

		case "v":
			for _, t := range tp.videos {
				tp.selected[t.ID] = true
			}

		case "s":
			for _, t := range tp.subtitles {
				tp.selected[t.ID] = true
			}

		case "n":
			for k := range tp.selected {
				delete(tp.selected, k)
			}
		}

	case tea.WindowSizeMsg:
		tp.width = msg.Width
		tp.height = msg.Height
	}

	return tp, nil
}

func (tp *TrackPicker) idAtCursor() string {
	if tp.cursor < len(tp.videos) {
		return tp.videos[tp.cursor].ID
	}
	audioIdx := tp.cursor - len(tp.videos)
	if audioIdx < len(tp.audios) {
		return tp.audios[audioIdx].ID
	}
	subIdx := tp.cursor - len(tp.videos) - len(tp.audios)
	if subIdx < len(tp.subtitles) {
		return tp.subtitles[subIdx].ID
	}
	return ""
}

func (tp *TrackPicker) adjustScroll() {
	if tp.cursor < tp.scrollOffset {
		tp.scrollOffset = tp.cursor
	}
	if tp.cursor >= tp.scrollOffset+tp.visibleRows {
		tp.scrollOffset = tp.cursor - tp.visibleRows + 1
	}
}

type pickerRow struct {
	id       string
	badge    string
	rangeTag string
	section  string
	quality  string
	codec    string
	language string
	bitrate  int64
	idx      int
}

func (tp *TrackPicker) rows() []pickerRow {
	var rows []pickerRow
	idx := 0
	for _, v := range tp.videos {
		q := ""
		if v.Height > 0 {
			q = qualityLabel(v.Height)
		}
		rangeTag := ""
		if v.Range != model.RangeSDR {
			rangeTag = v.Range.String()
		}
		rows = append(rows, pickerRow{v.ID, "VIDEO", rangeTag, "Video Tracks", q, v.Codec, v.Language, v.Bitrate, idx})
		idx++
	}
	for _, a := range tp.audios {
		rows = append(rows, pickerRow{a.ID, "AUDIO", "", "Audio Tracks", "", a.Codec, a.Language, a.Bitrate, idx})
		idx++
	}
	for _, s := range tp.subtitles {
		tag := ""
		switch {
		case s.CC:
			tag = "CC"
		case s.SDH:
			tag = "SDH"
		case s.Forced:
			tag = "FORCED"
		}
		rows = append(rows, pickerRow{s.ID, "SUB", tag, "Subtitle Tracks", "", s.Codec, s.Language, 0, idx})
		idx++
	}
	return rows
}

func (tp *TrackPicker) View() string {
	w := clamp(tp.width-4, 60, 100)

	var b strings.Builder

	title := titleStyle.Render("⚡ reelvault")
	subtitle := dimStyle.Render(" - Select Tracks")
	b.WriteString(headerStyle.Width(w).Render(title + subtitle))
	b.WriteString("\n\n")

	allRows := tp.rows()
	total := len(allRows)

	if tp.scrollOffset > 0 {
		b.WriteString(dimStyle.Render("  ↑ more tracks above"))
		b.WriteString("\n")
	}

	lastSection := ""
	visibleCount := 0
	for i := tp.scrollOffset; i < total && visibleCount < tp.visibleRows; i++ {
		row := allRows[i]

		if row.section != lastSection {
			if lastSection != "" {
				b.WriteString("\n")
			}
			b.WriteString(subtitleStyle.Render(row.section))
			b.WriteString("\n\n")
			lastSection = row.section
		}

		isCursor := row.idx == tp.cursor
		isSelected := tp.selected[row.id]
		b.WriteString(tp.renderTrackRow(row, isCursor, isSelected))
		b.WriteString("\n")
		visibleCount++
	}
	b.WriteString("\n")

	if tp.scrollOffset+tp.visibleRows < total {
		b.WriteString(dimStyle.Render("  ↓ more tracks below"))
		b.WriteString("\n")
	}

	count := 0
	for _, v := range tp.selected {
		if v {
			count++
		}
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("Selected: %d tracks", count)))
	b.WriteString("\n\n")

	b.WriteString(helpStyle.Render(
		keyHelpStyle.Render("↑/↓") + " navigate  " +
			keyHelpStyle.Render("space") + " toggle  " +
			keyHelpStyle.Render("enter") + " confirm  " +
			keyHelpStyle.Render("q") + " cancel",
	))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(
		keyHelpStyle.Render("v") + " all video  " +
			keyHelpStyle.Render("a") + " all audio  " +
			keyHelpStyle.Render("s") + " all subs  " +
			keyHelpStyle.Render("n") + " none",
	))

	return contentStyle.Width(w).Render(b.String())
}

func (tp *TrackPicker) renderTrackRow(row pickerRow, cursor, selected bool) string {
	var b strings.Builder

	if cursor {
		b.WriteString(selectedStyle.Render("▸ "))
	} else {
		b.WriteString("  ")
	}

	if selected {
		b.WriteString(successStyle.Render("[✓] "))
	} else {
		b.WriteString(dimStyle.Render("[ ] "))
	}

	switch row.badge {
	case "VIDEO":
		b.WriteString(videoBadge.Render("VIDEO"))
	case "AUDIO":
		b.WriteString(audioBadge.Render("AUDIO"))
	case "SUB":
		b.WriteString(subtitleBadge.Render("SUB"))
	}
	if row.rangeTag != "" {
		b.WriteString(" ")
		b.WriteString(rangeBadge.Render(row.rangeTag))
	}
	b.WriteString(" ")

	b.WriteString(valueStyle.Render(fmt.Sprintf("%-6s", row.quality)))
	b.WriteString(" ")

	b.WriteString(normalStyle.Render(fmt.Sprintf("%-15s", row.codec)))

	if row.language != "" {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(normalStyle.Render(row.language))
	}

	if row.bitrate > 0 {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(dimStyle.Render(formatBitrate(row.bitrate)))
	}

	return b.String()
}

// Result returns the selected tracks, partitioned by kind.
func (tp *TrackPicker) Result() TrackPickerResult {
	if tp.canceled {
		return TrackPickerResult{Canceled: true}
	}

	var res TrackPickerResult
	for _, v := range tp.videos {
		if tp.selected[v.ID] {
			res.Videos = append(res.Videos, v)
		}
	}
	for _, a := range tp.audios {
		if tp.selected[a.ID] {
			res.Audios = append(res.Audios, a)
		}
	}
	for _, s := range tp.subtitles {
		if tp.selected[s.ID] {
			res.Subtitles = append(res.Subtitles, s)
		}
	}
	return res
}

func formatBitrate(bps int64) string {
	if bps >= 1000000 {
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1000000)
	}
	if bps >= 1000 {
		return fmt.Sprintf("%.0f kbps", float64(bps)/1000)
	}
	return fmt.Sprintf("%d bps", bps)
}

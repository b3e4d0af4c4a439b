package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asticode/go-astisub"
	"github.com/reelvault/reelvault/internal/model"
)

// The upstream fixer/stripper pair (subby's CommonIssuesFixer and
// SDHStripper) is a third-party Python library outside this corpus.
// Reimplemented here against the well-known SDH conventions it encodes:
// bracketed/parenthetical sound-effect descriptions ("[door slams]",
// "(laughs)"), and all-caps speaker labels ending in a colon ("JOHN:").
var (
	soundEffectRe  = regexp.MustCompile(`(?s)[\[(][^\])]*[\])]`)
	speakerLabelRe = regexp.MustCompile(`(?m)^\s*[A-Z][A-Z0-9 '.\-]{1,30}:\s*`)
)

// StripSDH fixes common cue-text issues (stray whitespace, empty lines left
// by upstream encoders) and then strips SDH-only annotations from a text
// track's subtitle file in place. On success it clears SDH and sets CC,
// matching the source's sdh=false/cc=true transition.
func (s *Stage) StripSDH(t *model.TextTrack) error {
	if !t.SDH {
		return nil
	}
	path := t.Location()
	if path == "" {
		return fmt.Errorf("strip sdh %s: track has no downloaded artifact", t.ID)
	}

	subs, err := astisub.OpenFile(path)
	if err != nil {
		return fmt.Errorf("strip sdh %s: open: %w", t.ID, err)
	}

	fixCommonIssues(subs)
	stripped := stripSDHCues(subs)

	if err := subs.Write(path); err != nil {
		return fmt.Errorf("strip sdh %s: write: %w", t.ID, err)
	}

	if stripped {
		t.SDH = false
		t.CC = true
	}
	return nil
}

// fixCommonIssues trims stray whitespace and drops cues left empty by the
// trim, the same class of cleanup the source's fixer pass performs before
// stripping.
func fixCommonIssues(subs *astisub.Subtitles) {
	kept := subs.Items[:0]
	for _, item := range subs.Items {
		for li := range item.Lines {
			for ii := range item.Lines[li] {
				item.Lines[li][ii].Text = strings.TrimSpace(item.Lines[li][ii].Text)
			}
		}
		if cueText(item) != "" {
			kept = append(kept, item)
		}
	}
	subs.Items = kept
}

// stripSDHCues removes sound-effect descriptions and speaker labels from
// every cue, reporting whether any cue was actually modified so the caller
// doesn't claim sdh=false on a track that had nothing to strip.
func stripSDHCues(subs *astisub.Subtitles) bool {
	changed := false
	for _, item := range subs.Items {
		for li := range item.Lines {
			for ii := range item.Lines[li] {
				before := item.Lines[li][ii].Text
				after := soundEffectRe.ReplaceAllString(before, "")
				after = speakerLabelRe.ReplaceAllString(after, "")
				after = strings.TrimSpace(after)
				if after != before {
					changed = true
				}
				item.Lines[li][ii].Text = after
			}
		}
	}
	return changed
}

func cueText(item *astisub.Item) string {
	var b strings.Builder
	for _, line := range item.Lines {
		for _, li := range line {
			b.WriteString(li.Text)
		}
	}
	return b.String()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelvault/reelvault/internal/adapter"
	"github.com/reelvault/reelvault/internal/config"
	"github.com/reelvault/reelvault/internal/download"
	"github.com/reelvault/reelvault/internal/drm"
	"github.com/reelvault/reelvault/internal/httpclient"
	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/obs"
	"github.com/reelvault/reelvault/internal/orchestrator"
	"github.com/reelvault/reelvault/internal/pipelineerr"
	"github.com/reelvault/reelvault/internal/toolrunner"
	"github.com/reelvault/reelvault/internal/trackselect"
	"github.com/reelvault/reelvault/internal/tui"
	"github.com/reelvault/reelvault/internal/vault"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type cliFlags struct {
	url         string
	configPath  string
	workDir     string
	workers     int
	selector    string
	audioOnly   bool
	subsOnly    bool
	noProgress  bool
	verbose     bool
	showVersion bool
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("reelvault %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if f.url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *cliFlags {
	f := &cliFlags{}
	flag.StringVar(&f.url, "url", "", "")
	flag.StringVar(&f.url, "u", "", "")
	flag.StringVar(&f.configPath, "config", "", "")
	flag.StringVar(&f.configPath, "c", "", "")
	flag.StringVar(&f.workDir, "output", ".", "")
	flag.StringVar(&f.workDir, "o", ".", "")
	flag.IntVar(&f.workers, "threads", 8, "")
	flag.IntVar(&f.workers, "n", 8, "")
	flag.StringVar(&f.selector, "select-track", "interactive", "")
	flag.StringVar(&f.selector, "s", "interactive", "")
	flag.BoolVar(&f.audioOnly, "audio-only", false, "")
	flag.BoolVar(&f.subsOnly, "subs-only", false, "")
	flag.BoolVar(&f.noProgress, "no-progress", false, "")
	flag.BoolVar(&f.verbose, "verbose", false, "")
	flag.BoolVar(&f.verbose, "v", false, "")
	flag.BoolVar(&f.showVersion, "version", false, "")
	flag.Usage = printUsage
	flag.Parse()
	return f
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `reelvault - DRM-aware adaptive-stream acquisition engine

Usage: reelvault [options] -u <URL>

Options:
  -u, --url <URL>            Manifest URL (DASH/HLS/Smooth) [required]
  -c, --config <path>        YAML config (vaults, proxies, worker count)
  -o, --output <dir>         Working directory (default: .)
  -n, --threads <num>        Per-track segment concurrency (default: 8)
  -s, --select-track <sel>   "best", "all", or omit for interactive picker
      --audio-only           Drop video after selection, mux to .mka
      --subs-only            Keep only subtitles, mux to .mks
      --no-progress          Disable the TUI, print plain status lines
  -v, --verbose              Verbose logging
      --version              Show version
`)
}

func run(ctx context.Context, f *cliFlags) error {
	logLevel := "info"
	if f.verbose {
		logLevel = "debug"
	}
	logger := obs.New(logLevel, false, nil)

	var vaults []drm.Vault
	workers := f.workers
	muxEnabled := true
	var maxBandwidth int64
	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		workers = cfg.DownloadWorkers
		muxEnabled = cfg.MuxEnabled
		maxBandwidth = cfg.MaxBandwidth
		for _, vc := range cfg.Vaults {
			switch vc.Kind {
			case "local":
				lv, err := vault.OpenLocalVault(vc.Path, vc.Services)
				if err != nil {
					return fmt.Errorf("open local vault: %w", err)
				}
				vaults = append(vaults, lv)
			case "remote":
				vaults = append(vaults, vault.NewRemoteVault(vc.BaseURL, http.DefaultClient))
			}
		}
	}
	var federation drm.Vault
	if len(vaults) > 0 {
		federation = vault.NewFederation(vaults...)
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.MaxBandwidth = maxBandwidth
	client := httpclient.NewWithRateLimit(httpCfg)

	a := adapter.NewURLAdapter(f.url, "url", nil)
	dl := download.New(client, workers)
	defer dl.Close()
	runner := toolrunner.New("")
	orch := orchestrator.New("url", a, federation, nil, dl, runner, f.workDir, muxEnabled, logger)

	titles, err := a.Titles(ctx)
	if err != nil {
		return fmt.Errorf("list titles: %w", err)
	}

	anyAttempted, anyFailed := false, false
	for _, title := range titles {
		anyAttempted = true

		tracks, err := a.Tracks(ctx, title)
		if err != nil {
			fmt.Fprintf(os.Stderr, "title %s: %v\n", title.ID, err)
			anyFailed = true
			continue
		}

		opts, canceled, err := selectionFor(tracks, f.selector, f.audioOnly, f.subsOnly)
		if err != nil {
			fmt.Fprintf(os.Stderr, "title %s: %v\n", title.ID, err)
			anyFailed = true
			continue
		}
		if canceled {
			fmt.Println("Canceled")
			continue
		}

		if err := runTitle(ctx, orch, dl, title, tracks, opts, f.noProgress); err != nil {
			fmt.Fprintf(os.Stderr, "title %s failed: %v\n", title.ID, err)
			anyFailed = true
			continue
		}
		fmt.Printf("title %s: done\n", title.ID)
	}

	if !anyAttempted || anyFailed {
		os.Exit(pipelineerr.ExitCode(anyAttempted, anyFailed))
	}
	return nil
}

// selectionFor turns the -select-track flag into SelectionOptions. "best"
// picks the single highest-bitrate video/audio via the SortVideos/
// SortAudios criteria; "all" takes every track via zero-value criteria;
// anything else (including the default, "interactive") runs the TUI
// picker and folds its result into opts.OnlyIDs, since a human's exact
// pick isn't expressible as a filter/sort criterion.
func selectionFor(tracks *model.TrackSet, selector string, audioOnly, subsOnly bool) (orchestrator.SelectionOptions, bool, error) {
	var opts orchestrator.SelectionOptions
	var canceled bool
	var err error

	switch selector {
	case "all":
		// opts stays zero-value.

	case "best":
		ids := map[string]bool{}
		sortedVideos := trackselect.SortVideos(tracks.Videos, nil)
		if len(sortedVideos) > 0 {
			ids[sortedVideos[0].ID] = true
		}
		sortedAudios := trackselect.SortAudios(tracks.Audios, nil)
		if len(sortedAudios) > 0 {
			ids[sortedAudios[0].ID] = true
		}
		opts.OnlyIDs = ids

	default:
		picker := tui.NewTrackPicker(tracks)
		p := tea.NewProgram(picker, tea.WithAltScreen())
		if _, perr := p.Run(); perr != nil {
			return orchestrator.SelectionOptions{}, false, fmt.Errorf("track picker: %w", perr)
		}

		result := picker.Result()
		if result.Canceled {
			return orchestrator.SelectionOptions{}, true, nil
		}

		ids := make(map[string]bool)
		for _, v := range result.Videos {
			ids[v.ID] = true
		}
		for _, a := range result.Audios {
			ids[a.ID] = true
		}
		for _, s := range result.Subtitles {
			ids[s.ID] = true
		}
		opts.OnlyIDs = ids
	}

	opts.AudioOnly = audioOnly
	opts.SubsOnly = subsOnly
	return opts, canceled, err
}

// runTitle drives one title's download, optionally through the TUI
// progress view.
func runTitle(ctx context.Context, orch *orchestrator.Orchestrator, dl *download.Downloader, title *model.Title, tracks *model.TrackSet, opts orchestrator.SelectionOptions, noProgress bool) error {
	if noProgress {
		return orch.RunTitle(ctx, title, opts)
	}

	display := tracks
	if opts.OnlyIDs != nil {
		display = model.NewTrackSet()
		for _, v := range tracks.Videos {
			if opts.OnlyIDs[v.ID] {
				display.AddVideo(v, true)
			}
		}
		for _, a := range tracks.Audios {
			if opts.OnlyIDs[a.ID] {
				display.AddAudio(a, true)
			}
		}
		for _, s := range tracks.Subtitles {
			if opts.OnlyIDs[s.ID] {
				display.AddSubtitle(s, true)
			}
		}
	}
	if opts.SubsOnly {
		display.Videos = nil
		display.Audios = nil
	} else if opts.AudioOnly {
		display.Videos = nil
	}

	m := tui.NewModel(title, display, dl)
	p := tea.NewProgram(m, tea.WithAltScreen())

	var runErr error
	go func() {
		if err := orch.RunTitle(ctx, title, opts); err != nil {
			runErr = err
			p.Send(tui.ErrorMsg{Err: err})
		} else {
			p.Send(tui.DoneMsg{})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return runErr
}

package main

import (
	"context"
	"errors"
	"log"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/engine"
)

// reminders is the daemon's in-memory reminder list. Reminders do not
// survive a restart; this is a companion-device convenience, not a calendar.
type reminderStore struct {
	mu    sync.Mutex
	items []reminder
}

type reminder struct {
	Text string
	When string
	At   time.Time
}

func (s *reminderStore) add(text, when string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, reminder{Text: text, When: when, At: time.Now().UTC()})
	return len(s.items)
}

// registerBuiltinTools wires the assistant-mode tool surface: media
// playback, reminders, settings, and deep sleep.
func registerBuiltinTools(eng *engine.Engine) {
	store := &reminderStore{}

	eng.Tools().Register("play_youtube_video",
		"Plays a YouTube video. Requires a video url and a human-readable title.",
		func(_ context.Context, args map[string]any) (map[string]any, error) {
			rawURL, _ := args["url"].(string)
			title, _ := args["title"].(string)
			if strings.TrimSpace(rawURL) == "" {
				return nil, errors.New("missing url")
			}
			u, err := url.Parse(rawURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return nil, errors.New("url must be http or https")
			}
			if !strings.Contains(strings.ToLower(u.Host), "youtube.com") &&
				!strings.Contains(strings.ToLower(u.Host), "youtu.be") {
				return nil, errors.New("url is not a youtube link")
			}
			if err := openInBrowser(u.String()); err != nil {
				log.Printf("tools: open browser failed: %v", err)
				return nil, errors.New("could not open the video")
			}
			return map[string]any{"status": "playing", "title": title}, nil
		})

	eng.Tools().Register("set_reminder",
		"Schedules a reminder with the given text and time description.",
		func(_ context.Context, args map[string]any) (map[string]any, error) {
			text, _ := args["text"].(string)
			if strings.TrimSpace(text) == "" {
				return nil, errors.New("missing reminder text")
			}
			when, _ := args["time"].(string)
			n := store.add(text, when)
			log.Printf("tools: reminder #%d set: %s (%s)", n, text, when)
			return map[string]any{"status": "scheduled", "reminder_number": n}, nil
		})

	eng.Tools().Register("open_settings",
		"Opens the device settings screen.",
		func(context.Context, map[string]any) (map[string]any, error) {
			log.Printf("tools: settings requested")
			return map[string]any{"status": "opened"}, nil
		})

	eng.Tools().Register("enter_deep_sleep",
		"Puts the assistant into deep sleep until it is woken manually.",
		func(context.Context, map[string]any) (map[string]any, error) {
			// Delay the teardown so the tool response reaches the model
			// before the transport closes.
			go func() {
				time.Sleep(500 * time.Millisecond)
				eng.Sleep()
			}()
			return map[string]any{"status": "sleeping"}, nil
		})
}

func openInBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}

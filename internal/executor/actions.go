package executor

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"chime/internal/platform/capability"
	"chime/internal/platform/session"
	"chime/internal/sequence"
)

// mediaExtensions filters play_random_media candidates.
var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".avi": true, ".mov": true,
	".mp3": true, ".ogg": true, ".flac": true, ".wav": true, ".m4a": true,
	".opus": true,
}

// playMedia launches the first available player detached. Launch failure is
// the only Failed condition: once the player is up the alarm did its job,
// even if the user closes it a second later.
func (d Deps) playMedia(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	file := p.Str("file", "")
	if file == "" {
		return "", Failed, fmt.Errorf("play_media: missing file param")
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(d.MediaDir, file)
	}
	if _, err := os.Stat(file); err != nil {
		return "", Failed, fmt.Errorf("play_media: %w", err)
	}
	return d.launchPlayer(ctx, file, p)
}

func (d Deps) playRandomMedia(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	dir := p.Str("dir", "")
	if dir == "" {
		dir = d.MediaDir
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(d.MediaDir, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", Failed, fmt.Errorf("play_random_media: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !mediaExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, e.Name()))
	}
	if len(candidates) == 0 {
		return "", Failed, fmt.Errorf("play_random_media: no media files in %s", dir)
	}
	return d.launchPlayer(ctx, candidates[rand.Intn(len(candidates))], p)
}

func (d Deps) launchPlayer(ctx context.Context, file string, p sequence.Params) (string, Outcome, error) {
	priority := p.StrSlice("players")
	if len(priority) == 0 {
		priority = d.Player.Priority
	}

	fullscreen := p.Bool("fullscreen", d.Player.Fullscreen)
	blocking := p.Bool("blocking", false)

	for _, player := range priority {
		if _, err := d.Run.LookPath(player); err != nil {
			continue
		}
		args := playerArgs(player, file, fullscreen)
		detail := fmt.Sprintf("%s %s", player, filepath.Base(file))
		if blocking {
			if _, err := d.Run.Run(ctx, player, args...); err != nil {
				return detail, Failed, fmt.Errorf("player %s: %w", player, err)
			}
			return detail, Succeeded, nil
		}
		if err := d.Run.Start(ctx, session.Slice(d.SessionEnv), player, args...); err != nil {
			return detail, Failed, fmt.Errorf("player %s: %w", player, err)
		}
		return detail, Succeeded, nil
	}
	return "", Failed, fmt.Errorf("no media player available (tried %s)", strings.Join(priority, ", "))
}

func playerArgs(player, file string, fullscreen bool) []string {
	switch player {
	case "mpv":
		args := []string{"--no-terminal"}
		if fullscreen {
			args = append(args, "--fs")
		}
		return append(args, file)
	case "vlc":
		args := []string{"--play-and-exit"}
		if fullscreen {
			args = append(args, "--fullscreen")
		}
		return append(args, file)
	case "ffplay":
		args := []string{"-autoexit", "-loglevel", "quiet"}
		if fullscreen {
			args = append(args, "-fs")
		}
		return append(args, file)
	default:
		return []string{file}
	}
}

func (d Deps) openURL(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	url := p.Str("url", "")
	if url == "" {
		return "", Failed, fmt.Errorf("open_url: missing url param")
	}

	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name, args = "open", []string{url}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		name, args = "xdg-open", []string{url}
	}
	if err := d.Run.Start(ctx, session.Slice(d.SessionEnv), name, args...); err != nil {
		return url, Failed, fmt.Errorf("open_url: %w", err)
	}
	return url, Succeeded, nil
}

func (d Deps) wait(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	seconds := p.Float("seconds", 0)
	if seconds <= 0 {
		return "", Failed, fmt.Errorf("wait: seconds must be positive")
	}
	dur := time.Duration(seconds * float64(time.Second))

	select {
	case <-time.After(dur):
		return dur.String(), Succeeded, nil
	case <-ctx.Done():
		return dur.String(), Failed, fmt.Errorf("wait: %w", ctx.Err())
	}
}

func (d Deps) setBrightness(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	level := p.Int("level", 100)
	res := d.Display.SetBrightness(ctx, level)
	return capabilityDetail("brightness", level, res.Strategy), fromCapability(res.Outcome), nil
}

func (d Deps) setVolume(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	level := p.Int("level", 70)
	res := d.Audio.SetVolume(ctx, level)
	return capabilityDetail("volume", level, res.Strategy), fromCapability(res.Outcome), nil
}

// inhibitSleep takes a hold scoped to the sequence run; the executor releases
// it after the last action.
func (d Deps) inhibitSleep(e *Executor) handler {
	return func(ctx context.Context, p sequence.Params) (string, Outcome, error) {
		reason := p.Str("reason", "alarm sequence running")
		hold, res := d.Power.Inhibit(ctx, reason)
		e.holdCleanup(hold.Release)
		return res.Strategy, fromCapability(res.Outcome), nil
	}
}

func (d Deps) runCommand(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	cmd := p.Str("command", "")
	if cmd == "" {
		return "", Failed, fmt.Errorf("run_command: missing command param")
	}
	args := p.StrSlice("args")

	if p.Bool("detach", false) {
		if err := d.Run.Start(ctx, session.Slice(d.SessionEnv), cmd, args...); err != nil {
			return cmd, Failed, fmt.Errorf("run_command: %w", err)
		}
		return cmd, Succeeded, nil
	}
	out, err := d.Run.Run(ctx, cmd, args...)
	if err != nil {
		return cmd, Failed, fmt.Errorf("run_command: %w (%s)", err, firstLine(out))
	}
	return cmd, Succeeded, nil
}

// recordAudio captures from the default input, arecord first, ffmpeg as
// fallback. A missing capture tool fails the action, not the run.
func (d Deps) recordAudio(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	seconds := p.Int("seconds", 10)
	file := p.Str("file", "")
	if file == "" {
		file = filepath.Join(d.MediaDir, fmt.Sprintf("recording-%d.wav", time.Now().Unix()))
	} else if !filepath.IsAbs(file) {
		file = filepath.Join(d.MediaDir, file)
	}

	if _, err := d.Run.LookPath("arecord"); err == nil {
		if _, err := d.Run.Run(ctx, "arecord", "-d", fmt.Sprintf("%d", seconds), "-f", "cd", file); err == nil {
			return file, Succeeded, nil
		}
	}
	if _, err := d.Run.LookPath("ffmpeg"); err == nil {
		if _, err := d.Run.Run(ctx, "ffmpeg", "-y", "-f", defaultCaptureFormat(), "-i", "default",
			"-t", fmt.Sprintf("%d", seconds), file); err == nil {
			return file, Succeeded, nil
		}
	}
	return file, Failed, fmt.Errorf("record_audio: no capture tool succeeded")
}

func defaultCaptureFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

// screenAutomation sends keystrokes or text to the session, xdotool on X11
// and ydotool on Wayland.
func (d Deps) screenAutomation(ctx context.Context, p sequence.Params) (string, Outcome, error) {
	keys := p.Str("keys", "")
	text := p.Str("text", "")
	if keys == "" && text == "" {
		return "", Failed, fmt.Errorf("screen_automation: need keys or text param")
	}

	for _, tool := range []string{"xdotool", "ydotool"} {
		if _, err := d.Run.LookPath(tool); err != nil {
			continue
		}
		var err error
		if keys != "" {
			_, err = d.Run.Run(ctx, tool, "key", keys)
		} else {
			_, err = d.Run.Run(ctx, tool, "type", text)
		}
		if err == nil {
			return tool, Succeeded, nil
		}
	}
	return "", Failed, fmt.Errorf("screen_automation: no automation tool succeeded")
}

func fromCapability(o capability.Outcome) Outcome {
	if o == capability.OK {
		return Succeeded
	}
	return Degraded
}

func capabilityDetail(what string, level int, strategy string) string {
	if strategy == "" {
		return fmt.Sprintf("%s %d", what, level)
	}
	return fmt.Sprintf("%s %d via %s", what, level, strategy)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return s
}

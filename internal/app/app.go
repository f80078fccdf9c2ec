// Package app wires one command-line invocation together: it resolves the
// configuration paths, runs the requested operation (pairing, cleanup,
// file-manager integration, deletion, dispatch), and turns failures into
// actionable terminal output.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-telegram/bot/models"

	"telegram-send/internal/config"
	"telegram-send/internal/fileman"
	"telegram-send/internal/pairing"
	"telegram-send/internal/telegram"
)

var (
	red  = color.New(color.FgRed)
	bold = color.New(color.Bold)
)

// Params is the parsed command line.
type Params struct {
	Messages []string
	Format   string // text, markdown or html
	Stdin    bool
	Pre      bool
	Silent   bool

	NoPreview bool

	Configure        bool
	ConfigureChannel bool
	ConfigureGroup   bool

	Files      []string
	Images     []string
	Stickers   []string
	Animations []string
	Videos     []string
	Audios     []string
	Locations  []string
	Captions   []string

	ShowIDs bool
	Delete  []int

	Configs      []string
	GlobalConfig bool

	FileManager bool
	Clean       bool

	Timeout time.Duration

	// Input and Output default to stdin/stdout; tests substitute buffers.
	Input  io.Reader
	Output io.Writer
}

// botAPI is everything an invocation needs from the remote side.
type botAPI interface {
	telegram.Sender
	telegram.Deleter
}

// newClient is swapped out in tests.
var newClient = func(token string, timeout time.Duration) (botAPI, error) {
	return telegram.NewClient(token, timeout)
}

// Run executes the invocation. Every failure is printed for the operator
// before it is returned; the caller only decides the exit code.
func Run(ctx context.Context, p *Params) error {
	err := run(ctx, p)
	if err != nil {
		printAdvice(p, err)
	}
	return err
}

func run(ctx context.Context, p *Params) error {
	if p.Input == nil {
		p.Input = os.Stdin
	}
	if p.Output == nil {
		p.Output = os.Stdout
	}

	confs, err := p.configPaths()
	if err != nil {
		return err
	}

	switch {
	case p.Configure:
		if err := pairing.New(pairing.ModeDirect).Run(ctx, confs[0]); err != nil {
			return err
		}
		if runtime.GOOS != "windows" {
			return fileman.Install()
		}
		return nil
	case p.ConfigureChannel:
		return pairing.New(pairing.ModeChannel).Run(ctx, confs[0])
	case p.ConfigureGroup:
		return pairing.New(pairing.ModeGroup).Run(ctx, confs[0])
	case p.FileManager:
		if runtime.GOOS == "windows" {
			return errors.New("file manager integration is unavailable on Windows")
		}
		return fileman.Install()
	case p.Clean:
		return clean()
	}

	messages := p.Messages
	if p.Stdin {
		data, err := io.ReadAll(p.Input)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) == 0 {
			return nil
		}
		messages = append([]string{string(data)}, messages...)
	}

	if len(p.Delete) > 0 {
		settings, err := config.Load(confs[0])
		if err != nil {
			return err
		}
		api, err := newClient(settings.Token, p.Timeout)
		if err != nil {
			return err
		}
		telegram.Delete(ctx, api, settings, p.Delete)
	}

	payload := &telegram.Payload{
		Messages:   messages,
		Files:      p.Files,
		Images:     p.Images,
		Stickers:   p.Stickers,
		Animations: p.Animations,
		Videos:     p.Videos,
		Audios:     p.Audios,
		Locations:  p.Locations,
		Captions:   p.Captions,
	}
	opts := telegram.Options{
		ParseMode: parseMode(p.Format),
		Pre:       p.Pre,
		Silent:    p.Silent,
		NoPreview: p.NoPreview,
	}

	// Broadcast: each target gets the whole payload before the next starts.
	var messageIDs []int
	for _, conf := range confs {
		settings, err := config.Load(conf)
		if err != nil {
			return err
		}
		api, err := newClient(settings.Token, p.Timeout)
		if err != nil {
			return err
		}
		sent, err := telegram.Send(ctx, api, settings, payload, opts)
		messageIDs = append(messageIDs, sent...)
		if err != nil {
			return err
		}
	}

	if p.ShowIDs && len(messageIDs) > 0 {
		ids := make([]string, 0, len(messageIDs))
		for _, id := range messageIDs {
			ids = append(ids, strconv.Itoa(id))
		}
		fmt.Fprintln(p.Output, "message_ids "+strings.Join(ids, " "))
	}
	return nil
}

// configPaths resolves which configuration files this invocation targets,
// in order: the global config, explicit --config paths, or the per-user
// default.
func (p *Params) configPaths() ([]string, error) {
	if p.GlobalConfig {
		return []string{config.GlobalPath}, nil
	}
	if len(p.Configs) == 0 {
		path, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	paths := make([]string, 0, len(p.Configs))
	for _, c := range p.Configs {
		paths = append(paths, config.ExpandUser(c))
	}
	return paths, nil
}

func clean() error {
	if err := fileman.Remove(); err != nil {
		return err
	}
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	if err := config.Delete(path); err != nil {
		return err
	}
	return config.Delete(config.GlobalPath)
}

func parseMode(format string) models.ParseMode {
	switch format {
	case "markdown":
		// the API's improved MarkdownV2 format
		return models.ParseModeMarkdown
	case "html":
		return models.ParseModeHTML
	default:
		return ""
	}
}

// printAdvice prints a human-readable message, with a suggested next step
// for the recoverable error kinds.
func printAdvice(p *Params, err error) {
	var cfgErr *config.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		red.Fprintln(os.Stderr, err.Error())
		cmd := "telegram-send --configure"
		if p.GlobalConfig {
			cmd = "sudo " + cmd + " --global-config"
		}
		fmt.Fprintln(os.Stderr, "Please run: "+bold.Sprint(cmd))
	case errors.Is(err, config.ErrPermission):
		red.Fprintln(os.Stderr, err.Error())
		fmt.Fprintln(os.Stderr, "Please run: "+bold.Sprint("sudo telegram-send --clean"))
	case telegram.IsTimeout(err):
		red.Fprintln(os.Stderr, "Error: Connection timed out")
		fmt.Fprintln(os.Stderr, "Please run with a longer timeout.")
		fmt.Fprintln(os.Stderr, "Try with the option: "+bold.Sprintf("--timeout %g", p.Timeout.Seconds()+10))
	default:
		red.Fprintln(os.Stderr, "Error: "+err.Error())
	}
}

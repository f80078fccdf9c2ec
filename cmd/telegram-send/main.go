// telegram-send posts messages, files, media and locations to Telegram
// from the command line, using credentials stored by a one-time pairing
// flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"telegram-send/internal/app"
	"telegram-send/internal/logger"
)

var (
	version = "dev"
	builtOn = "just now"

	versionSig = fmt.Sprintf("telegram-send %s (built %s)", version, builtOn)
)

var _ = godotenv.Load() // load environment variables from .env, if present

func main() {
	logger.Init()

	p, showVersion := parseCmdLine()
	if showVersion {
		fmt.Println(versionSig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, p); err != nil {
		// app.Run already printed the failure and any advice
		os.Exit(1)
	}
}

// stringList collects repeatable flag values, e.g. -f a.pdf -f b.pdf.
type stringList []string

func (s *stringList) Set(val string) error {
	*s = append(*s, val)
	return nil
}

func (s *stringList) String() string { return strings.Join(*s, " ") }

// intList collects repeatable integer flag values.
type intList []int

func (l *intList) Set(val string) error {
	n, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	*l = append(*l, n)
	return nil
}

func (l *intList) String() string { return fmt.Sprint([]int(*l)) }

func parseCmdLine() (*app.Params, bool) {
	var p = app.Params{Format: "text"}
	var timeoutSecs float64
	var showVersion bool
	{
		flag.StringVar(&p.Format, "format", "text", "how to format the message(s): 'text', 'markdown' or 'html'")
		flag.BoolVar(&p.Stdin, "stdin", false, "send text from stdin")
		flag.BoolVar(&p.Pre, "pre", false, "send preformatted fixed-width (monospace) text")
		flag.BoolVar(&p.NoPreview, "disable-web-page-preview", false, "disable link previews in the message(s)")
		flag.BoolVar(&p.Silent, "silent", false, "send silently, user will receive a notification without sound")

		flag.BoolVar(&p.Configure, "c", false, "configure telegram-send")
		flag.BoolVar(&p.Configure, "configure", false, "configure telegram-send")
		flag.BoolVar(&p.ConfigureChannel, "configure-channel", false, "configure telegram-send for a channel")
		flag.BoolVar(&p.ConfigureGroup, "configure-group", false, "configure telegram-send for a group")

		flag.Var((*stringList)(&p.Files), "f", "send `file`(s), repeatable")
		flag.Var((*stringList)(&p.Files), "file", "send `file`(s), repeatable")
		flag.Var((*stringList)(&p.Images), "i", "send `image`(s), repeatable")
		flag.Var((*stringList)(&p.Images), "image", "send `image`(s), repeatable")
		flag.Var((*stringList)(&p.Stickers), "s", "send `sticker`(s), repeatable")
		flag.Var((*stringList)(&p.Stickers), "sticker", "send `sticker`(s), repeatable")
		flag.Var((*stringList)(&p.Animations), "animation", "send `animation`(s) (GIF or soundless H.264/MPEG-4 AVC video), repeatable")
		flag.Var((*stringList)(&p.Videos), "video", "send `video`(s), repeatable")
		flag.Var((*stringList)(&p.Audios), "audio", "send `audio`(s), repeatable")
		flag.Var((*stringList)(&p.Locations), "l", "send `location`(s) via latitude and longitude (separated by a comma, or as two consecutive flags), repeatable")
		flag.Var((*stringList)(&p.Locations), "location", "send `location`(s) via latitude and longitude, repeatable")
		flag.Var((*stringList)(&p.Captions), "caption", "`caption` for the image(s)/file(s), repeatable")

		flag.BoolVar(&p.ShowIDs, "showids", false, "show message ids, used to delete messages after they're sent")
		flag.Var((*intList)(&p.Delete), "d", "delete sent messages by `id` (only last 48h), see -showids, repeatable")
		flag.Var((*intList)(&p.Delete), "delete", "delete sent messages by `id` (only last 48h), see -showids, repeatable")

		flag.Var((*stringList)(&p.Configs), "config", "specify configuration `file`, repeatable for broadcast")
		flag.BoolVar(&p.GlobalConfig, "g", false, "use the global configuration at /etc/telegram-send.conf")
		flag.BoolVar(&p.GlobalConfig, "global-config", false, "use the global configuration at /etc/telegram-send.conf")

		flag.BoolVar(&p.FileManager, "file-manager", false, "integrate telegram-send in the file manager")
		flag.BoolVar(&p.Clean, "clean", false, "clean telegram-send configuration files")
		flag.Float64Var(&timeoutSecs, "timeout", 30, "read timeout for network operations, in `seconds`")

		flag.BoolVar(&showVersion, "version", false, "print version and exit")

		flag.Parse()
	}

	p.Messages = flag.Args()
	p.Timeout = time.Duration(timeoutSecs * float64(time.Second))
	return &p, showVersion
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/handiism/media-downloader/internal/config"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	path := *configFlag
	if path == "" {
		path = config.ConfigFile()
	}
	settings, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The screen belongs to the UI, so logs only go to the file
	if settings.Logs.Write {
		closeLog, err := log.Setup(log.Options{
			Write: true,
			Dir:   config.LogsDir(),
			Level: settings.Logs.Level,
			JSON:  settings.Logs.JSON,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()
	}

	if err := tui.Run(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

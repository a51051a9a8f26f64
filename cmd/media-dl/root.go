package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/dustin/go-humanize"
	"github.com/handiism/media-downloader/internal/auth"
	"github.com/handiism/media-downloader/internal/config"
	"github.com/handiism/media-downloader/internal/download"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/model"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const (
	iconError   = "❌"
	iconWarning = "⚠️ "
	iconSuccess = "✅"
	iconInfo    = "ℹ️ "
)

func init() {
	f := rootCmd.Flags()
	f.StringP("cookies", "c", "", "Cookie file sent with every request (Netscape cookies.txt or a raw Cookie header)")
	f.Bool("remember-cookies", false, "Store the cookie file in the system keyring for later runs")
	f.Bool("forget-cookies", false, "Remove stored cookies from the system keyring")
	f.String("proxy", "", "Proxy URL (http, https or socks5)")
	f.StringP("output", "o", "", "Output directory (overrides config)")
	f.StringP("format", "f", "", "Format preference: auto, merge, combined or audio")
	f.StringSliceP("profiles", "p", nil, "Client profiles to try, in order")
	f.Bool("install-merge-tool", false, "Download the merge tool when it is missing")
	f.Bool("strict", false, "Fail when any playlist item fails")
	f.BoolP("verbose", "V", false, "Show verbose output")
	f.Bool("dry-run", false, "Resolve the URL without downloading")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "merge", "combined", "audio"}, cobra.ShellCompDirectiveNoFileComp
	}))
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("profiles", completeProfiles))

	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")
}

var rootCmd = &cobra.Command{
	Use:   "media-dl [url]",
	Short: "Download videos and playlists from the web",
	Long: "Resolve a video or playlist URL, download the best available streams,\n" +
		"merge separate video and audio tracks and deliver one file or a zip archive.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("version")) {
			versionCmd.Run(versionCmd, nil)
			return
		}
		handleErr(runDownload(cmd, args))
	},
}

// Execute runs the root command.
func Execute() {
	cc.Init(&cc.Config{
		RootCmd:       rootCmd,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		Example:       cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
		FlagsDataType: cc.Italic + cc.HiBlue,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func handleErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nDownload cancelled.")
		os.Exit(130)
	}
	log.Error(err)
	_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", iconError, strings.Trim(err.Error(), " \n"))
	os.Exit(1)
}

// loadSettings reads the config file named by --config, or the default one.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path := lo.Must(cmd.Flags().GetString("config"))
	if path == "" {
		path = config.ConfigFile()
	}
	settings, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return settings, nil
}

// setupLog starts logging to the logs dir when enabled, and to stderr in
// verbose mode.
func setupLog(settings *config.Settings, verbose bool) (func() error, error) {
	opts := log.Options{
		Write: settings.Logs.Write,
		Level: settings.Logs.Level,
		JSON:  settings.Logs.JSON,
	}
	if opts.Write {
		opts.Dir = config.LogsDir()
	}
	if verbose {
		opts.Stderr = os.Stderr
		opts.Level = "debug"
	}
	return log.Setup(opts)
}

func applyFlags(cmd *cobra.Command, settings *config.Settings) {
	f := cmd.Flags()
	if v := lo.Must(f.GetString("output")); v != "" {
		settings.Output.Dir = v
	}
	if v := lo.Must(f.GetString("format")); v != "" {
		settings.Format.Preference = v
	}
	if v := lo.Must(f.GetStringSlice("profiles")); len(v) > 0 {
		settings.Network.Profiles = v
	}
	if lo.Must(f.GetBool("install-merge-tool")) {
		settings.Merge.AutoInstall = true
	}
	if lo.Must(f.GetBool("strict")) {
		settings.Output.StrictPlaylist = true
	}
}

// cookies returns the cookie blob for this run: the --cookies file, or the
// one remembered in the keyring.
func cookies(cmd *cobra.Command) ([]byte, error) {
	f := cmd.Flags()
	if lo.Must(f.GetBool("forget-cookies")) {
		if err := auth.DeleteCookies(); err != nil {
			return nil, fmt.Errorf("forget cookies: %w", err)
		}
	}

	path := lo.Must(f.GetString("cookies"))
	if path == "" {
		blob, err := auth.GetCookies()
		if err != nil {
			log.Warnf("read stored cookies: %v", err)
			return nil, nil
		}
		return blob, nil
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	if lo.Must(f.GetBool("remember-cookies")) {
		if err := auth.SetCookies(blob); err != nil {
			return nil, fmt.Errorf("remember cookies: %w", err)
		}
	}
	return blob, nil
}

// promptURL asks for the URL when none was given.
func promptURL() (string, error) {
	var url string
	err := survey.AskOne(&survey.Input{
		Message: "Video or playlist URL:",
	}, &url, survey.WithValidator(survey.Required))
	return url, err
}

func runDownload(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyFlags(cmd, settings)

	verbose := lo.Must(cmd.Flags().GetBool("verbose"))
	closeLog, err := setupLog(settings, verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	var url string
	if len(args) > 0 {
		url = args[0]
	} else if url, err = promptURL(); err != nil {
		return err
	}

	blob, err := cookies(cmd)
	if err != nil {
		return err
	}

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := download.NewManager(settings, printer(verbose))
	if err != nil {
		return err
	}
	defer manager.Cleanup()

	req := download.Request{
		URL:     url,
		Cookies: blob,
		Proxy:   lo.Must(cmd.Flags().GetString("proxy")),
	}

	fmt.Println("🎬 Media Downloader")
	fmt.Println(strings.Repeat("━", 40))
	fmt.Println()

	if lo.Must(cmd.Flags().GetBool("dry-run")) {
		res, err := manager.Resolve(ctx, req)
		if err != nil {
			return err
		}
		printResolution(res)
		fmt.Println("\n[Dry run - not downloading]")
		return nil
	}

	report, err := manager.Run(ctx, req)
	if report != nil && report.Output != nil {
		printReport(report, manager)
	}
	return err
}

// printer prints manager events the way the terminal expects them.
func printer(verbose bool) func(download.ProgressEvent) {
	var mu sync.Mutex
	steps := map[string]int{}
	return func(event download.ProgressEvent) {
		if u := event.Update; u != nil {
			// Per-item progress in 10% steps
			if verbose && !u.Indeterminate {
				mu.Lock()
				if step := u.Percent / 10; step > steps[u.ItemID] {
					steps[u.ItemID] = step
					fmt.Printf("   %s: %d%%\n", u.Title, u.Percent)
				}
				mu.Unlock()
			}
			return
		}
		if event.Level == download.LevelVerbose && !verbose {
			return
		}

		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = iconError + " "
		case download.LevelWarning:
			prefix = iconWarning + " "
		case download.LevelSuccess:
			prefix = iconSuccess + " "
		case download.LevelInfo:
			prefix = iconInfo + " "
		default:
			prefix = "   "
		}

		fmt.Println(prefix + event.Message)
	}
}

func printReport(report *download.Report, manager *download.Manager) {
	received, _, filesReceived, filesTotal := manager.GetProgress()
	out := report.Output

	fmt.Println()
	fmt.Println(strings.Repeat("━", 40))
	fmt.Printf("✨ Complete! Downloaded %d/%d files (%s)\n", filesReceived, filesTotal, humanize.IBytes(uint64(received)))
	fmt.Printf("   %s (%s, %s)\n", out.Path, out.MIME, humanize.IBytes(uint64(out.Size)))
	for _, m := range out.Members {
		fmt.Printf("   • %s\n", m)
	}
	if n := len(report.Result.Failures); n > 0 {
		fmt.Printf("\n%s %d item(s) failed:\n", iconWarning, n)
		for _, f := range report.Result.Failures {
			fmt.Printf("   %s\n", f.Error())
		}
	}
}

func printResolution(res *model.Resolution) {
	fmt.Printf("%s (%d items)\n", res.Title, len(res.Items))
	for i, item := range res.Items {
		size := "unknown size"
		if sel, err := download.SelectFormats(item.Formats, download.PreferCombined, false); err == nil {
			if n := sel.ExpectedSize(); n > 0 {
				size = humanize.IBytes(uint64(n))
			}
		}
		fmt.Printf("  %2d. %s [%s] via %s: %d formats, %s\n",
			i+1, item.Title, item.ID, item.Profile.Name, len(item.Formats), size)
	}
	for _, miss := range res.Missing {
		fmt.Printf("  %2d. %s %v\n", miss.Index, iconWarning, miss)
	}
}

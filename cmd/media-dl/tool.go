package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/handiism/media-downloader/internal/config"
	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/merge"
	"github.com/handiism/media-downloader/internal/profile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(toolCmd)
	toolCmd.SetOut(os.Stdout)
	toolCmd.AddCommand(toolInstallCmd)
	toolInstallCmd.SetOut(os.Stdout)
}

func locator(settings *config.Settings) *merge.Locator {
	return merge.NewLocator(afero.NewOsFs(), settings.Merge.ToolPath, config.ToolsDir())
}

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Show where the merge tool is found",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := loadSettings(cmd)
		handleErr(err)

		path, ok := locator(settings).Available().Get()
		if !ok {
			cmd.Printf("%s %s not found; run \"media-dl tool install\" or set merge.tool_path\n", iconWarning, merge.BinaryName)
			return
		}
		cmd.Println(path)
	},
}

var toolInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the merge tool into the tools directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := loadSettings(cmd)
		handleErr(err)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client, err := http.NewClient(http.Options{
			Timeout: settings.SocketTimeout(),
			Proxy:   settings.Network.Proxy,
		})
		handleErr(err)
		defer client.CloseIdleConnections()

		installer := merge.NewInstaller(afero.NewOsFs(), locator(settings), client.Session(profile.Default().Ordered()[0]))
		cmd.Printf("Installing %s into %s\n", merge.BinaryName, config.ToolsDir())
		path, err := installer.Install(ctx)
		handleErr(err)
		cmd.Printf("%s %s\n", iconSuccess, path)
	},
}

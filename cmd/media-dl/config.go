package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/handiism/media-downloader/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
}

func init() {
	configCmd.AddCommand(configInfoCmd)
	configInfoCmd.Flags().StringSliceP("key", "k", []string{}, "Keys to describe")
	configInfoCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
	_ = configInfoCmd.RegisterFlagCompletionFunc("key", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return lo.Map(config.Fields(), func(f config.Field, _ int) string { return f.Key }), cobra.ShellCompDirectiveNoFileComp
	})
	configInfoCmd.SetOut(os.Stdout)
}

var configInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe settings, their defaults and environment overrides",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			keys   = lo.Must(cmd.Flags().GetStringSlice("key"))
			asJSON = lo.Must(cmd.Flags().GetBool("json"))
			fields = config.Fields()
		)

		if len(keys) > 0 {
			byKey := lo.KeyBy(fields, func(f config.Field) string { return f.Key })
			fields = make([]config.Field, 0, len(keys))
			for _, key := range keys {
				f, ok := byKey[key]
				if !ok {
					handleErr(fmt.Errorf("unknown key %s", key))
				}
				fields = append(fields, f)
			}
		}

		if asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			lo.Must0(encoder.Encode(fields))
			return
		}

		for i, field := range fields {
			cmd.Println(field.String())
			if i < len(fields)-1 {
				cmd.Println()
			}
		}
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configPathCmd.SetOut(os.Stdout)
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(config.ConfigFile())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolP("force", "F", false, "Overwrite an existing config file")
	configInitCmd.SetOut(os.Stdout)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Run: func(cmd *cobra.Command, args []string) {
		path := lo.Must(cmd.Flags().GetString("config"))
		if path == "" {
			path = config.ConfigFile()
		}

		if _, err := os.Stat(path); err == nil && !lo.Must(cmd.Flags().GetBool("force")) {
			handleErr(errors.New("config file already exists, use --force to overwrite"))
		}

		handleErr(config.DefaultSettings().Save(path))
		cmd.Printf("%s Config created at %s\n", iconSuccess, path)
	},
}

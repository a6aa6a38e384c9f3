package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keagan/vortex/internal/audio"
	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/config"
	"github.com/keagan/vortex/internal/effects"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/transitions"
	"github.com/keagan/vortex/pkg/util"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(os.Getenv("HOME"), ".vortex", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) && !forceInit {
			return fmt.Errorf("%s exists, use --force to overwrite", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		cliLog.Info().Str("path", path).Msg("config written")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:       "list [filters|transitions|animations|backgrounds|stickers|audio-effects]",
	Short:     "List available resources",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"filters", "transitions", "animations", "backgrounds", "stickers", "audio-effects"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var names []string
		switch args[0] {
		case "filters":
			for _, k := range effects.Kinds() {
				names = append(names, fmt.Sprintf("%-12s default %.2f", k, effects.DefaultIntensity(k)))
			}
		case "transitions":
			for _, k := range transitions.Kinds() {
				names = append(names, string(k))
			}
		case "animations":
			text := make(map[overlays.Animation]bool)
			for _, a := range overlays.TextAnimations() {
				text[a] = true
			}
			for _, a := range overlays.StickerAnimations() {
				if text[a] {
					names = append(names, string(a))
				} else {
					names = append(names, string(a)+" (stickers only)")
				}
			}
		case "backgrounds":
			for _, m := range background.Modes() {
				names = append(names, string(m))
			}
		case "audio-effects":
			for _, k := range audio.EffectKinds() {
				if d := audio.DefaultAmount(k); d != 0 {
					names = append(names, fmt.Sprintf("%-13s default %g", k, d))
				} else {
					names = append(names, string(k))
				}
			}
		case "stickers":
			cfg := config.FromContext(cmd.Context())
			for name, path := range cfg.Stickers {
				names = append(names, fmt.Sprintf("%-12s %s", name, path))
			}
			sort.Strings(names)
		default:
			return fmt.Errorf("unknown resource %q", args[0])
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

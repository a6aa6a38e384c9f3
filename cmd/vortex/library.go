package main

import (
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/vortex/internal/config"
	"github.com/keagan/vortex/internal/mediastore"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the catalogue of exported media",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered media, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *mediastore.Store) error {
			entries, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %8s  %s  %s\n",
					e.ID, e.Name, humanize.Bytes(uint64(e.Size)), e.CreatedAt.Format(time.DateTime), e.Path)
			}
			return nil
		})
	},
}

var libraryAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *mediastore.Store) error {
			kind := mime.TypeByExtension(filepath.Ext(args[0]))
			if kind == "" {
				kind = "application/octet-stream"
			}
			id, err := s.Register(cmd.Context(), args[0], "", kind)
			if err != nil {
				return err
			}
			cliLog.Info().Str("id", id).Str("path", args[0]).Msg("media registered")
			return nil
		})
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Forget a media entry; the file stays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *mediastore.Store) error {
			return s.Remove(cmd.Context(), args[0])
		})
	},
}

func withStore(cmd *cobra.Command, fn func(*mediastore.Store) error) error {
	cfg := config.FromContext(cmd.Context())
	s, err := mediastore.Open(cfg.MediaStore.Path, log.Logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func init() {
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryAddCmd)
	libraryCmd.AddCommand(libraryRemoveCmd)
}

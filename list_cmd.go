package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/lingoloop/playlist"
)

var (
	playlistExtensions = []string{"*.yaml", "*.yml", "*.json", "*.txt", "*.text", "*.md", "*.markdown"}
	showAllFiles       bool

	listCmd = &cobra.Command{
		Use:   "list [DIR]",
		Short: "List the playlists found in a directory",
		Long: paragraph(fmt.Sprintf("\nFind playlists in %s (default: the current directory). Files ignored by git are skipped unless %s is given.",
			keyword("DIR"), keyword("--all"))),
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return listPlaylists(cmd.OutOrStdout(), dir, showAllFiles)
		},
	}
)

// listPlaylists prints every file under dir that loads as a playlist.
func listPlaylists(w io.Writer, dir string, all bool) error {
	var (
		ch  chan gitcha.SearchResult
		err error
	)
	if all {
		ch, err = gitcha.FindAllFilesExcept(dir, playlistExtensions, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(dir, playlistExtensions, nil)
	}
	if err != nil {
		return fmt.Errorf("searching %s: %w", dir, err)
	}

	found := 0
	for res := range ch {
		p, err := playlist.Load(res.Path)
		if err != nil {
			log.Debug("not a playlist", "path", res.Path, "error", err)
			continue
		}
		found++

		rel, err := filepath.Rel(dir, res.Path)
		if err != nil {
			rel = res.Path
		}
		fmt.Fprintf(w, "%s  %s  %s\n", keyword(p.Name), faint(fmt.Sprintf("%d sentences", len(p.Sentences))), rel)
	}

	if found == 0 {
		fmt.Fprintln(w, "No playlists found.")
	}
	return nil
}

func init() {
	listCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "include files ignored by git")
}

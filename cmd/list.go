package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/server"
	"github.com/spf13/cobra"
)

var (
	flagListJSON bool
	flagListTag  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the notes of the archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := archive.NewReader(cfg.ArchiveRoot, slog.Default())
		notes, err := reader.ListNotes(cmd.Context())
		if err != nil {
			return err
		}
		if tag := strings.TrimSpace(flagListTag); tag != "" {
			notes = server.FilterByTag(notes, tag)
		}

		if flagListJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(notes)
		}

		if len(notes) == 0 {
			fmt.Fprintln(os.Stdout, "No notes found.")
			return nil
		}
		for _, n := range notes {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n", n.CreatedAt, n.Folder, n.Title, strings.Join(n.Tags, ","))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&flagListJSON, "json", false, "Print the listing as JSON")
	listCmd.Flags().StringVar(&flagListTag, "tag", "", "Only notes carrying this tag")
}

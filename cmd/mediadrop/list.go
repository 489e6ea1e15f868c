package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediadrop/internal/client"
	"mediadrop/internal/uploader"
)

func newListCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your uploaded media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			auth, err := uploader.TokenSessionProvider{Token: c.settings.Token}.Session(cmd.Context())
			if err != nil {
				return err
			}

			records, err := client.NewRecordsClient(client.Config{BaseURL: c.settings.Server}).List(cmd.Context(), *auth, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No media uploaded yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tUPLOADED\tURL")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.FileName,
					r.FileType,
					humanize.IBytes(uint64(r.FileSize)),
					humanize.Time(r.CreatedAt),
					r.FileURL,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 50, "maximum number of records")
	return cmd
}

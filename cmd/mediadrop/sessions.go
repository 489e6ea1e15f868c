package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediadrop/internal/uploader"
)

func newSessionsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show interrupted uploads that can be resumed",
		Long: `Show the resumable sessions remembered in the local resume file. Upload
the same file again to resume it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := uploader.NewFileFingerprintStore(c.settings.ResumeFile).All()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No interrupted uploads.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OBJECT\tSIZE\tSTARTED\tSESSION")
			for _, list := range all {
				for _, s := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						s.ObjectKey,
						humanize.IBytes(uint64(s.Size)),
						humanize.Time(s.CreatedAt),
						s.URL,
					)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("resume-file", "", "resume store path (default in the user cache dir)")
	return cmd
}

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/catalog-pipeline/internal/sink"
)

func newInspectCmd() *cobra.Command {
	var (
		name string
		file string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the latest processed Parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path := file
			if path == "" {
				path, err = latestProcessed(appInstance.Config.Output.ProcessedDir, name)
				if err != nil {
					return err
				}
			}
			data, err := sink.ReadParquet(path)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), path, catalog.Summarize(data))
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "only consider files whose name starts with this prefix")
	cmd.Flags().StringVarP(&file, "file", "f", "", "inspect this file instead of the latest one")
	return cmd
}

func latestProcessed(dir, prefix string) (string, error) {
	files, err := sink.List(dir, prefix+"*.parquet")
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no processed files matching %q in %s", prefix+"*.parquet", dir)
	}
	return files[0], nil
}

func printSummary(out io.Writer, path string, s catalog.Summary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "file\t%s\n", path)
	fmt.Fprintf(w, "rows\t%d\n", s.Rows)
	fmt.Fprintf(w, "distinct brands\t%d\n", s.DistinctBrands)

	fmt.Fprintln(w, "\nmean per 100g\t\t(non-null)")
	for _, m := range s.Means {
		fmt.Fprintf(w, "  %s\t%.2f\t%d\n", m.Column, m.Mean, m.Count)
	}

	fmt.Fprintln(w, "\nnutri-score\t")
	for _, g := range s.Grades() {
		label := g
		if label == "" {
			label = "(missing)"
		}
		fmt.Fprintf(w, "  %s\t%d\n", label, s.Nutriscore[g])
	}

	fmt.Fprintln(w, "\nmissing values\t")
	for _, c := range s.Missing {
		fmt.Fprintf(w, "  %s\t%d\n", c.Column, c.Count)
	}
	return w.Flush()
}

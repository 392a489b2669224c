package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/goliatone/go-business/internal/movies"
	"github.com/spf13/cobra"
)

// printMovies writes list in the selected format.
func (o *RootOptions) printMovies(cmd *cobra.Command, list []*movies.Movie) error {
	out := cmd.OutOrStdout()
	if o.Format == "json" {
		if list == nil {
			list = []*movies.Movie{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tTITLE\tRELEASED\tGENRE\tPRICE\tDELETED")
	for _, m := range list {
		var id int64
		if m.ID != nil {
			id = *m.ID
		}
		released := ""
		if !m.ReleaseDate.IsZero() {
			released = m.ReleaseDate.Format(movies.DateLayout)
		}
		deleted := ""
		if m.DeletedAt != nil {
			deleted = m.DeletedAt.Format(movies.DateLayout)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\n", id, m.Slug, m.Title, released, m.Genre, m.Price, deleted)
	}
	return w.Flush()
}

package testshots

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/opengolfcoach/bridge/internal/domain/registry"
)

// ListDataPoints writes the data point catalog to w, one row per field, so
// operators can see which ids they can enable.
func ListDataPoints(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLABEL\tIMPERIAL\tMETRIC\tDERIVED\tDEFAULT")
	for _, d := range registry.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\t%v\n",
			d.ID, d.Category, d.Label, d.UnitImperial, d.UnitMetric, d.Derived, d.DefaultEnabled)
	}
	return tw.Flush()
}

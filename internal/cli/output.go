package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/FranksOps/qparser/internal/session"
)

func printSession(w io.Writer, s *session.Session) {
	fmt.Fprintf(w, "%s  %q  %d results  %s\n", s.ID, s.Query, len(s.Results), s.CreatedAt.Local().Format("2006-01-02 15:04:05"))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range s.Results {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", i+1, r.URI, truncate(r.Title, 60))
	}
	tw.Flush()

	if len(s.DomainStats) > 0 {
		fmt.Fprintln(w, "  domains:")
		for _, st := range s.DomainStats {
			fmt.Fprintf(w, "    %-40s %d\n", st.Domain, st.Count)
		}
	}
	if s.Analysis != "" {
		fmt.Fprintln(w, "  analysis:")
		for _, line := range strings.Split(strings.TrimSpace(s.Analysis), "\n") {
			fmt.Fprintln(w, "    "+line)
		}
	}
}

// printHistory lists sessions newest first, one line each.
func printHistory(w io.Writer, sessions []*session.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRESULTS\tTOP DOMAIN\tQUERY")
	for _, s := range sessions {
		top := "-"
		if len(s.DomainStats) > 0 {
			top = s.DomainStats[0].Domain
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.ID, len(s.Results), top, truncate(s.Query, 50))
	}
	tw.Flush()
}

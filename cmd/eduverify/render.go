package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"eduverify/internal/certificate/viewstate"
)

func (c *cli) render() {
	c.renderNotification()

	s := c.model.Snapshot()
	if msg := viewstate.EmptyStateMessage(s.Student, len(s.Certificates)); msg != "" {
		fmt.Fprintln(c.out, msg)
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tIPFS HASH\tISSUED BY\tISSUED AT\tSTATUS")
	for _, cert := range s.Certificates {
		status := "active"
		if cert.IsRevoked {
			status = "revoked"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			cert.Index,
			cert.IPFSHash.Short(),
			cert.IssuedBy.Short(),
			cert.IssuedTime().Format(time.DateTime),
			status)
	}
	w.Flush()
}

func (c *cli) renderNotification() {
	s := c.model.Snapshot()
	if !s.Notification.Open || s.Notification.Severity == viewstate.SeverityError {
		return
	}
	fmt.Fprintln(c.out, s.Notification.Message)
	c.model.DismissNotification()
}

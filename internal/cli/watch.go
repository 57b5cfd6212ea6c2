package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/intentflow/pkg/lifecycle"
)

// WatchState prints every change of st until ctx is canceled. In JSON mode
// each change is one JSON line; otherwise a one-line summary is printed.
func WatchState(ctx context.Context, st *lifecycle.Store, w io.Writer, jsonMode bool) error {
	changes := st.Watch(ctx)
	enc := json.NewEncoder(w)

	if !jsonMode {
		PrintSystemMessage(w, "Watching '%s' at seq %d (Ctrl+C to stop).", st.Key(), st.Seq())
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if jsonMode {
				if err := enc.Encode(c); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(w, Summarize(c))
		}
	}
}

// Summarize renders a change as one line.
func Summarize(c lifecycle.Change) string {
	source := "local"
	if c.Remote {
		source = "remote " + c.Snapshot.Origin
	}
	var areas []string
	for _, area := range []string{"intent", "auction", "authorization", "execution", "proofs"} {
		if c.Diff.Touches(area) {
			areas = append(areas, area)
		}
	}
	if len(areas) == 0 {
		areas = append(areas, "-")
	}
	st := c.Snapshot.State
	return fmt.Sprintf("seq=%d epoch=%d %-20s %-14s [%s] auction=%s authorization=%s execution=%s",
		c.Snapshot.Seq, c.Snapshot.Epoch, c.Action, source, strings.Join(areas, ","),
		st.AuctionStatus, st.AuthorizationStatus, st.ExecutionStatus)
}

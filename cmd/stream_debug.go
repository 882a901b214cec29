package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/killallgit/canvaschat/pkg/controllers"
	"github.com/killallgit/canvaschat/pkg/testutil"
	"github.com/spf13/cobra"
)

// demoReply is a canned reply proposing an edit to demoCanvas
const demoReply = "I'll add a greeting.\n--- DIFF ---\n@@ -1,2 +1,3 @@\n func main() {\n+\tprintln(\"hello\")\n }\n--- END DIFF ---\nThe function now prints a greeting."

const demoCanvas = "func main() {\n}\n"

var streamDebugCmd = &cobra.Command{
	Use:    "stream-debug",
	Short:  "Replay a canned reply through the controller without a backend",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		delay, _ := cmd.Flags().GetDuration("delay")
		allowEdits, _ := cmd.Flags().GetBool("allow-edits")
		return runStreamDebug(cmd, cmd.OutOrStdout(), delay, allowEdits)
	},
}

func runStreamDebug(cmd *cobra.Command, out io.Writer, delay time.Duration, allowEdits bool) error {
	transport := testutil.NewFakeTransport(demoReply)
	transport.SetChunkSize(7)
	transport.SetChunkDelay(delay)

	ctrl := controllers.NewController(transport, controllers.Options{InitialCanvas: demoCanvas})
	updates, err := ctrl.SendMessage(cmd.Context(), "Add a greeting", demoCanvas, allowEdits)
	if err != nil {
		return err
	}

	for update := range updates {
		switch update.Type {
		case controllers.TextUpdated:
			fmt.Fprintf(out, "%-16s %q\n", update.Type, update.Text)
		case controllers.DiffAvailable:
			fmt.Fprintf(out, "%-16s %q\n", update.Type, update.Diff)
		case controllers.PatchApplied:
			fmt.Fprintf(out, "%-16s %q\n", update.Type, update.Canvas)
		case controllers.PatchRejected:
			fmt.Fprintf(out, "%-16s %s\n", update.Type, update.Reason)
		default:
			fmt.Fprintf(out, "%-16s epoch=%d\n", update.Type, update.Epoch)
		}
	}

	session := ctrl.Session()
	fmt.Fprintf(out, "status=%s messages=%d pending=%t\n", session.Status, len(session.Messages), session.Pending != nil)
	fmt.Fprintf(out, "canvas:\n%s", session.Canvas)
	return nil
}

func init() {
	streamDebugCmd.Flags().Duration("delay", 50*time.Millisecond, "delay between chunks")
	streamDebugCmd.Flags().Bool("allow-edits", true, "apply the proposed diff")
	rootCmd.AddCommand(streamDebugCmd)
}

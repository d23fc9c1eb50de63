package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/notify"
	"github.com/venus-kyc/caseflow/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream case and request events from NATS",
	Long:  "Subscribes to the configured subject prefix and prints events as they are published.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.nats == nil {
		return fmt.Errorf("no NATS broker configured. Set notify.nats_url in %s", caseflowPath("config.yaml"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s.> (ctrl+c to stop)\n", a.cfg.Notify.SubjectPrefix)
	return a.nats.Watch(ctx, func(subject string, data []byte) {
		fmt.Println(formatNotification(subject, data))
	})
}

// formatNotification renders a published message as one line.
func formatNotification(subject string, data []byte) string {
	if strings.Contains(subject, ".adhoc.") {
		var msg notify.AdHocMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			return fmt.Sprintf("%s%s%s  request %s [%s] %s: %s",
				colorMagenta, msg.Time.Format("15:04:05"), colorReset, msg.TaskID, msg.Status, msg.Author, msg.Message)
		}
	} else {
		var e store.Event
		if err := json.Unmarshal(data, &e); err == nil {
			return fmt.Sprintf("%s%s%s  case #%d %-17s %s",
				colorBlue, e.Timestamp.Format("15:04:05"), colorReset, e.CaseID, e.Type, e.Description)
		}
	}
	return subject + " " + string(data)
}

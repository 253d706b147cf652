package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/donaldgifford/ebay-seller-sync/internal/api/handlers"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printAccountsTable(accounts []domain.Account) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tEBAY USER\tNAME\tACTIVE\tRECONNECT\n")
	for i := range accounts {
		a := &accounts[i]
		tw.writef("%s\t%s\t%s\t%v\t%v\n",
			a.ID,
			a.EbayUserID,
			truncate(a.DisplayName, 30),
			a.Active,
			a.NeedsReconnect,
		)
	}
	return tw.finish()
}

func printAccountDetail(d *handlers.AccountDetail) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", d.ID)
	tw.writef("eBay User:\t%s\n", d.EbayUserID)
	tw.writef("Name:\t%s\n", d.DisplayName)
	tw.writef("Active:\t%v\n", d.Active)
	tw.writef("Connected:\t%s\n", d.ConnectedAt.Format(timeLayout))
	if d.NeedsReconnect {
		tw.writef("Reconnect:\t%s\n", d.ReconnectReason)
	}
	if d.Token == nil {
		tw.writef("Token:\tnone\n")
		return tw.finish()
	}
	tw.writef("Environment:\t%s\n", d.Token.Environment)
	tw.writef("Access Expires:\t%s\n", formatTime(d.Token.AccessExpiresAt))
	tw.writef("Refresh Expires:\t%s\n", formatTime(d.Token.RefreshExpiresAt))
	tw.writef("Last Refreshed:\t%s\n", formatTime(d.Token.LastRefreshedAt))
	if d.Token.LastErrorCode != "" {
		tw.writef("Last Error:\t%s: %s\n", d.Token.LastErrorCode, d.Token.LastError)
	}
	return tw.finish()
}

func printRefreshLogsTable(logs []domain.TokenRefreshLog) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("STARTED\tTRIGGER\tFAMILY\tSUCCESS\tERROR\tNEW EXPIRY\n")
	for i := range logs {
		l := &logs[i]
		errText := "-"
		if l.ErrorCode != "" {
			errText = l.ErrorCode
		}
		tw.writef("%s\t%s\t%s\t%v\t%s\t%s\n",
			l.StartedAt.Format(timeLayout),
			l.TriggeredBy,
			dash(l.APIFamily),
			l.Success,
			errText,
			formatTime(l.NewExpiresAt),
		)
	}
	return tw.finish()
}

func printSyncStatesTable(states []domain.SyncState) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("FAMILY\tENABLED\tBACKFILLED\tLAST RUN\tLAST ERROR\n")
	for i := range states {
		s := &states[i]
		tw.writef("%s\t%v\t%v\t%s\t%s\n",
			s.APIFamily,
			s.Enabled,
			s.BackfillCompleted,
			formatTime(s.LastRunAt),
			dash(truncate(s.LastError, 40)),
		)
	}
	return tw.finish()
}

func printRunsTable(runs []domain.WorkerRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tACCOUNT\tFAMILY\tSTATUS\tSTARTED\tFINISHED\tSTORED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		stored := "-"
		if r.Summary != nil {
			stored = fmt.Sprintf("%d", r.Summary.Stored)
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.AccountID,
			r.APIFamily,
			r.Status,
			r.StartedAt.Format(timeLayout),
			formatTime(r.FinishedAt),
			stored,
			dash(truncate(r.ErrorText, 40)),
		)
	}
	return tw.finish()
}

func printJobRunsTable(runs []domain.JobRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("JOB\tSTATUS\tSTARTED\tCOMPLETED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.JobName,
			r.Status,
			r.StartedAt.Format(timeLayout),
			formatTime(r.CompletedAt),
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

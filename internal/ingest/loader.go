// Package ingest turns the flat signal feed (one row per signal, account and
// action fields repeated across rows) into the normalized account / signal /
// recommended-action split.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"signalsai/pkg/domain"
)

// Dataset is the normalized result of one load, ready to dispatch.
type Dataset struct {
	Accounts []domain.Account
	Signals  []domain.Signal
	Actions  []domain.RecommendedAction
}

// Report accounts for what happened to each input row.
type Report struct {
	RowsTotal      int
	RowsAccepted   int
	RowsRejected   int
	DuplicateRows  int
	CorrectedNames int
}

// Loader parses the delimited feed in a single pass.
type Loader struct {
	validator AccountIDValidator
	logger    *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithValidator replaces the account id validator.
func WithValidator(v AccountIDValidator) LoaderOption {
	return func(l *Loader) {
		if v != nil {
			l.validator = v
		}
	}
}

// WithLogger wires structured logging.
func WithLogger(lg *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader builds a loader with the CRM id validator by default.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{validator: SalesforceIDValidator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// row is one parsed record with case-insensitive header access.
type row struct {
	fields map[string]string
}

func (r row) get(names ...string) string {
	for _, name := range names {
		if v, ok := r.fields[strings.ToLower(name)]; ok && v != "" {
			return v
		}
	}
	return ""
}

func (r row) getFloat(names ...string) float64 {
	v, _ := strconv.ParseFloat(r.get(names...), 64)
	return v
}

func (r row) getInt(names ...string) int {
	v, _ := strconv.Atoi(r.get(names...))
	return v
}

// Load parses the feed. Single bad rows are logged and skipped; only an
// empty input or a missing header is fatal.
func (l *Loader) Load(input io.Reader) (Dataset, Report, error) {
	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, Report{}, fmt.Errorf("feed is empty")
	}
	if err != nil {
		return Dataset{}, Report{}, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if !contains(columns, "account_id") {
		return Dataset{}, Report{}, fmt.Errorf("feed header missing account_id column")
	}

	var (
		dataset     Dataset
		report      Report
		seenSignals = map[string]bool{}
		accounts    = map[string]int{} // id -> index into dataset.Accounts
		actions     = map[string]bool{}
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.RowsTotal++
			report.RowsRejected++
			l.logger.Warn("unparsable feed row", "line", line, "error", err)
			continue
		}
		report.RowsTotal++

		r := row{fields: make(map[string]string, len(record))}
		for i, value := range record {
			if i < len(columns) {
				r.fields[columns[i]] = strings.TrimSpace(value)
			}
		}

		accountID := r.get("account_id", "account id")
		if err := l.validator.Validate(accountID); err != nil {
			report.RowsRejected++
			l.logger.Warn("dropping feed row", "line", line, "reason", err)
			continue
		}

		signalID := r.get("signal_id", "signal id", "id")
		if signalID == "" {
			signalID = naturalKey(accountID, r)
		}
		if seenSignals[signalID] {
			report.DuplicateRows++
			l.logger.Debug("duplicate signal row skipped", "line", line, "signal", signalID)
			continue
		}
		seenSignals[signalID] = true
		report.RowsAccepted++

		// First row for an account wins its descriptive fields; later rows
		// only fill fields that were empty.
		if idx, ok := accounts[accountID]; ok {
			backfillAccount(&dataset.Accounts[idx], l.accountFromRow(accountID, r, &report))
		} else {
			accounts[accountID] = len(dataset.Accounts)
			dataset.Accounts = append(dataset.Accounts, l.accountFromRow(accountID, r, &report))
		}

		actionID := r.get("action_id", "action id")
		if actionID != "" && !actions[actionID] {
			actions[actionID] = true
			dataset.Actions = append(dataset.Actions, actionFromRow(accountID, actionID, r))
		}
		dataset.Signals = append(dataset.Signals, signalFromRow(signalID, accountID, actionID, r))
	}

	if report.RowsAccepted == 0 {
		return Dataset{}, report, fmt.Errorf("feed yielded no usable rows (%d rejected)", report.RowsRejected)
	}
	l.logger.Info("feed loaded",
		"accounts", len(dataset.Accounts), "signals", len(dataset.Signals), "actions", len(dataset.Actions),
		"rejected", report.RowsRejected, "duplicates", report.DuplicateRows)
	return dataset, report, nil
}

func (l *Loader) accountFromRow(accountID string, r row, report *Report) domain.Account {
	name, corrected := correctAccountName(accountID, r.get("account_name", "account name"))
	if corrected {
		report.CorrectedNames++
		l.logger.Warn("corrected account name", "account", accountID, "name", name)
	}
	account := domain.Account{
		Base:          domain.Base{ID: accountID},
		Name:          name,
		Industry:      r.get("industry (domo)", "industry"),
		Health:        domain.HealthCategory(r.get("at_risk_cat")),
		GPAScore:      r.getFloat("account gpa numeric", "account_gpa_numeric"),
		LifetimeBill:  r.getFloat("total lifetime billings", "total_lifetime_billings"),
		ActiveUsers:   r.getInt("daily active users (dau)", "daily_active_users"),
		DatasetCount:  r.getInt("total data sets"),
		RowCount:      int64(r.getInt("total rows")),
		Owner:         r.get("account owner"),
		AccountExec:   r.get("ae"),
		CSM:           r.get("csm"),
		RenewalBase:   r.getFloat("bks_renewal_baseline_usd"),
		RenewalFcst:   r.getFloat("bks_forecast_new"),
		NameCorrected: corrected,
	}
	if renewal := parseDate(r.get("next renewal date", "next_renewal_date")); !renewal.IsZero() {
		d := renewal
		account.NextRenewal = &d
	}
	return account
}

func signalFromRow(signalID, accountID, actionID string, r row) domain.Signal {
	sig := domain.Signal{
		Base:       domain.Base{ID: signalID},
		AccountID:  accountID,
		Category:   domain.SignalCategory(r.get("category")),
		Name:       r.get("name", "code"),
		Priority:   normalizePriority(r.get("priority")),
		Confidence: r.getFloat("confidence", "signal_confidence"),
		Summary:    r.get("summary"),
		Rationale:  r.get("signal_rationale", "rationale"),
		Polarity:   domain.NormalizePolarity(r.get("signal_polarity", "signal polarity")),
		CallDate:   parseDate(r.get("call scheduled date", "call_date")),
	}
	if actionID != "" {
		id := actionID
		sig.ActionID = &id
	}
	return sig
}

func actionFromRow(accountID, actionID string, r row) domain.RecommendedAction {
	action := domain.RecommendedAction{
		Base:        domain.Base{ID: actionID},
		AccountID:   accountID,
		Recommended: r.get("recommended_action", "recommended action"),
		Rationale:   r.get("signal_rationale", "rationale"),
		Priority:    normalizePriority(r.get("priority")),
		Confidence:  r.getFloat("confidence", "signal_confidence"),
	}
	for i := 1; i <= domain.MaxPlaysPerPlan; i++ {
		playID := r.get(fmt.Sprintf("play_%d", i))
		if playID == "" {
			continue
		}
		action.Plays = append(action.Plays, domain.Play{
			ID:          playID,
			Name:        r.get(fmt.Sprintf("play %d name", i)),
			Description: r.get(fmt.Sprintf("play %d description", i)),
			Role:        r.get(fmt.Sprintf("play_%d_executing_role", i)),
		})
	}
	return action
}

// backfillAccount fills only the fields the first-seen row left empty.
func backfillAccount(dst *domain.Account, src domain.Account) {
	if dst.Industry == "" {
		dst.Industry = src.Industry
	}
	if dst.Health == "" {
		dst.Health = src.Health
	}
	if dst.Owner == "" {
		dst.Owner = src.Owner
	}
	if dst.AccountExec == "" {
		dst.AccountExec = src.AccountExec
	}
	if dst.CSM == "" {
		dst.CSM = src.CSM
	}
	if dst.NextRenewal == nil {
		dst.NextRenewal = src.NextRenewal
	}
}

func normalizePriority(raw string) domain.Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return domain.PriorityHigh
	case "low":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "1/2/2006", "01/02/2006"}

func parseDate(raw string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func naturalKey(accountID string, r row) string {
	return accountID + "|" + r.get("name", "code") + "|" + r.get("call scheduled date", "call_date")
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

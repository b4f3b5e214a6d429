package core

import (
	"sort"
	"strings"
	"time"

	"signalsai/pkg/domain"
)

// DenormalizedSignal joins a signal with its account, optional recommended
// action, and the aggregate feedback recorded against it. It is the feed's
// unit of display.
type DenormalizedSignal struct {
	Signal
	Account             Account                `json:"account"`
	Action              *RecommendedAction     `json:"action,omitempty"`
	Likes               int                    `json:"likes"`
	NotAccurate         int                    `json:"not_accurate"`
	CommentCount        int                    `json:"comment_count"`
	Viewed              bool                   `json:"viewed"`
	CurrentUserFeedback domain.InteractionType `json:"current_user_feedback,omitempty"`
}

// DenormalizedAccount joins an account with its signals, the polarity-split
// counts of distinct recommended actions, and the merged rationale text, for
// the portfolio overview. BestPolarityRank and LatestSignal are derived from
// the account's high-priority signals only: the rank of the best such signal
// and the most recent call date at that rank, which together drive the
// portfolio sort.
type DenormalizedAccount struct {
	Account
	Signals          []Signal   `json:"signals"`
	RiskActions      int        `json:"risk_actions"`
	GrowthActions    int        `json:"growth_actions"`
	MergedRationale  string     `json:"merged_rationale,omitempty"`
	BestPolarityRank int        `json:"-"`
	LatestSignal     *time.Time `json:"latest_signal,omitempty"`
}

// PortfolioSummary aggregates the working set for the overview header.
type PortfolioSummary struct {
	Accounts      int `json:"accounts"`
	Signals       int `json:"signals"`
	RiskSignals   int `json:"risk_signals"`
	GrowthSignals int `json:"growth_signals"`
	OpenPlans     int `json:"open_plans"`
}

// denormalizeSignal assembles one feed row from the snapshot view.
func denormalizeSignal(view TransactionView, sig Signal, userID string) (DenormalizedSignal, bool) {
	account, ok := view.FindAccount(sig.AccountID)
	if !ok {
		return DenormalizedSignal{}, false
	}
	row := DenormalizedSignal{Signal: sig, Account: account}
	if sig.ActionID != nil {
		if action, ok := view.FindRecommendedAction(*sig.ActionID); ok {
			row.Action = &action
		}
	}
	for _, id := range view.InteractionIDsBySignal(sig.ID) {
		i, ok := view.FindInteraction(id)
		if !ok {
			continue
		}
		switch i.Type {
		case domain.InteractionLike:
			row.Likes++
		case domain.InteractionNotAccurate:
			row.NotAccurate++
		case domain.InteractionViewed:
			if i.UserID == userID {
				row.Viewed = true
			}
			continue
		}
		if i.UserID == userID && i.Type != domain.InteractionViewed {
			row.CurrentUserFeedback = i.Type
		}
	}
	row.CommentCount = len(view.CommentIDsBySignal(sig.ID))
	return row, true
}

// sortFeed orders feed rows: unviewed before viewed, then priority rank
// descending, then call date descending. Ties keep id order for stability.
func sortFeed(rows []DenormalizedSignal) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Viewed != b.Viewed {
			return !a.Viewed
		}
		if ar, br := a.Priority.Rank(), b.Priority.Rank(); ar != br {
			return ar > br
		}
		if !a.CallDate.Equal(b.CallDate) {
			return a.CallDate.After(b.CallDate)
		}
		return a.ID < b.ID
	})
}

// denormalizeAccount assembles one portfolio row. Action counts are over
// distinct referenced action ids, classified by the highest polarity rank of
// the signals pointing at each action. The sort fields come from the
// high-priority signals only: the best polarity rank among them, and the most
// recent call date at that rank.
func denormalizeAccount(view TransactionView, account Account) DenormalizedAccount {
	row := DenormalizedAccount{Account: account}
	actionPolarity := make(map[string]int)
	for _, sigID := range view.SignalIDsByAccount(account.ID) {
		sig, ok := view.FindSignal(sigID)
		if !ok {
			continue
		}
		row.Signals = append(row.Signals, sig)
		rank := sig.Polarity.Rank()
		if sig.ActionID != nil {
			if prev, ok := actionPolarity[*sig.ActionID]; !ok || rank > prev {
				actionPolarity[*sig.ActionID] = rank
			}
		}
	}
	sort.Slice(row.Signals, func(i, j int) bool { return row.Signals[i].ID < row.Signals[j].ID })
	for _, sig := range row.Signals {
		if sig.Priority != domain.PriorityHigh {
			continue
		}
		rank := sig.Polarity.Rank()
		if rank > row.BestPolarityRank {
			row.BestPolarityRank = rank
			d := sig.CallDate
			row.LatestSignal = &d
			continue
		}
		if rank == row.BestPolarityRank && row.LatestSignal != nil && sig.CallDate.After(*row.LatestSignal) {
			d := sig.CallDate
			row.LatestSignal = &d
		}
	}
	row.MergedRationale = mergeRationales(row.Signals)
	for _, rank := range actionPolarity {
		switch rank {
		case domain.PolarityRisk.Rank():
			row.RiskActions++
		case domain.PolarityOpportunity.Rank():
			row.GrowthActions++
		}
	}
	return row
}

// mergeRationales joins the distinct non-empty rationale texts of the
// account's signals, one per line, in signal id order.
func mergeRationales(signals []Signal) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, sig := range signals {
		text := strings.TrimSpace(sig.Rationale)
		if text == "" || text == "No rationale specified" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

// sortComments orders comments oldest first for threaded display.
func sortComments(out []Comment) {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

// sortNotes orders notes pinned first, then newest first.
func sortNotes(out []Note) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

// sortPortfolio orders accounts by the polarity rank of the best qualifying
// high-priority signal, then that signal's date descending, then name.
func sortPortfolio(rows []DenormalizedAccount) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.BestPolarityRank != b.BestPolarityRank {
			return a.BestPolarityRank > b.BestPolarityRank
		}
		at, bt := a.LatestSignal, b.LatestSignal
		switch {
		case at != nil && bt != nil && !at.Equal(*bt):
			return at.After(*bt)
		case at != nil && bt == nil:
			return true
		case at == nil && bt != nil:
			return false
		}
		return a.Name < b.Name
	})
}

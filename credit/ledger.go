package credit

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/config"
	"github.com/SnehaChouksey/Acadlyst/errors"
)

// Ledger manages user credit balances backed by the users table.
//
// The clock is injectable so tests can cross month boundaries.
type Ledger struct {
	db     *sql.DB
	plan   config.CreditsConfig
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewLedger creates a credit ledger using the configured plan allowances
func NewLedger(db *sql.DB, plan config.CreditsConfig, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		db:     db,
		plan:   plan,
		logger: logger.Named("credit"),
		now:    time.Now,
	}
}

// Balance is a user's current credit state
type Balance struct {
	UserID             string `json:"user_id"`
	Plan               string `json:"plan"`
	SummarizerCredits  int    `json:"summarizer_credits"`
	QuizCredits        int    `json:"quiz_credits"`
	ChatCredits        int    `json:"chat_credits"`
	ChatMessageCredits int    `json:"chat_message_credits"`
	TotalSummaries     int    `json:"total_summaries"`
	TotalQuizzes       int    `json:"total_quizzes"`
	TotalChats         int    `json:"total_chats"`
	TotalChatMessages  int    `json:"total_chat_messages"`
	Unlimited          bool   `json:"unlimited"`
}

// allowance returns the plan allowance for a feature
func (l *Ledger) allowance(f Feature) int {
	switch f {
	case FeatureSummarizer:
		return l.plan.Summarizer
	case FeatureQuiz:
		return l.plan.Quiz
	case FeatureChat:
		return l.plan.Chat
	case FeatureChatMessage:
		return l.plan.ChatMessage
	default:
		return 0
	}
}

// ensureUser creates the user row on first contact and applies the lazy
// monthly reset when the stored reset marker is from an earlier month.
func (l *Ledger) ensureUser(userID string) error {
	now := l.now()
	month, year := int(now.Month()), now.Year()

	var resetMonth, resetYear int
	err := l.db.QueryRow(
		`SELECT reset_month, reset_year FROM users WHERE id = ?`, userID,
	).Scan(&resetMonth, &resetYear)

	if errors.Is(err, sql.ErrNoRows) {
		_, err := l.db.Exec(`
			INSERT INTO users (
				id, plan,
				summarizer_credits, quiz_credits, chat_credits, chat_message_credits,
				reset_month, reset_year, created_at, updated_at
			) VALUES (?, 'free', ?, ?, ?, ?, ?, ?, ?, ?)
		`, userID,
			l.plan.Summarizer, l.plan.Quiz, l.plan.Chat, l.plan.ChatMessage,
			month, year, now, now)
		if err != nil {
			return errors.Wrapf(err, "failed to create user %s", userID)
		}
		l.logger.Infow("Created user ledger", "user_id", userID)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to load user %s", userID)
	}

	if resetMonth == month && resetYear == year {
		return nil
	}

	// New calendar month: replenish. The WHERE clause repeats the stale
	// marker so concurrent requests reset at most once.
	result, err := l.db.Exec(`
		UPDATE users
		SET summarizer_credits = ?,
		    quiz_credits = ?,
		    chat_credits = ?,
		    chat_message_credits = ?,
		    reset_month = ?,
		    reset_year = ?,
		    updated_at = ?
		WHERE id = ? AND reset_month = ? AND reset_year = ?
	`, l.plan.Summarizer, l.plan.Quiz, l.plan.Chat, l.plan.ChatMessage,
		month, year, now,
		userID, resetMonth, resetYear)
	if err != nil {
		return errors.Wrapf(err, "failed to reset credits for user %s", userID)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		l.logger.Infow("Monthly credit reset",
			"user_id", userID,
			"month", month,
			"year", year,
		)
	}
	return nil
}

// Check returns the remaining credits for a feature without deducting.
// Owner accounts always report OwnerCredits.
func (l *Ledger) Check(userID string, feature Feature) (int, error) {
	if l.plan.IsOwner(userID) {
		return OwnerCredits, nil
	}

	if err := l.ensureUser(userID); err != nil {
		return 0, err
	}

	column, err := creditColumn(feature)
	if err != nil {
		return 0, err
	}

	var remaining int
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ?`, column)
	if err := l.db.QueryRow(query, userID).Scan(&remaining); err != nil {
		return 0, errors.Wrapf(err, "failed to check %s credits for user %s", feature, userID)
	}

	return remaining, nil
}

// Deduct spends one credit for the feature and increments the lifetime
// usage counter. Returns errors.ErrInsufficientCredits when the balance
// is exhausted. Credits are not refunded if the work later fails.
func (l *Ledger) Deduct(userID string, feature Feature) error {
	if err := l.ensureUser(userID); err != nil {
		return err
	}

	credit, err := creditColumn(feature)
	if err != nil {
		return err
	}
	total, err := totalColumn(feature)
	if err != nil {
		return err
	}

	if l.plan.IsOwner(userID) {
		// Owners still accrue lifetime usage, just never pay for it
		query := fmt.Sprintf(`UPDATE users SET %s = %s + 1, updated_at = ? WHERE id = ?`, total, total)
		if _, err := l.db.Exec(query, l.now(), userID); err != nil {
			return errors.Wrapf(err, "failed to record %s usage for owner %s", feature, userID)
		}
		return nil
	}

	// Decrement and count in one statement; the guard keeps the balance
	// from going negative under concurrent requests.
	query := fmt.Sprintf(`
		UPDATE users
		SET %s = %s - 1, %s = %s + 1, updated_at = ?
		WHERE id = ? AND %s > 0
	`, credit, credit, total, total, credit)

	result, err := l.db.Exec(query, l.now(), userID)
	if err != nil {
		return errors.Wrapf(err, "failed to deduct %s credit for user %s", feature, userID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrInsufficientCredits, "no %s credits remaining for user %s", feature, userID)
	}

	l.logger.Debugw("Credit deducted", "user_id", userID, "feature", feature)
	return nil
}

// Stats returns the user's full balance and lifetime usage
func (l *Ledger) Stats(userID string) (*Balance, error) {
	if err := l.ensureUser(userID); err != nil {
		return nil, err
	}

	balance := &Balance{UserID: userID}
	err := l.db.QueryRow(`
		SELECT plan,
		       summarizer_credits, quiz_credits, chat_credits, chat_message_credits,
		       total_summaries, total_quizzes, total_chats, total_chat_messages
		FROM users WHERE id = ?
	`, userID).Scan(
		&balance.Plan,
		&balance.SummarizerCredits,
		&balance.QuizCredits,
		&balance.ChatCredits,
		&balance.ChatMessageCredits,
		&balance.TotalSummaries,
		&balance.TotalQuizzes,
		&balance.TotalChats,
		&balance.TotalChatMessages,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load stats for user %s", userID)
	}

	if l.plan.IsOwner(userID) {
		balance.Unlimited = true
		balance.SummarizerCredits = OwnerCredits
		balance.QuizCredits = OwnerCredits
		balance.ChatCredits = OwnerCredits
		balance.ChatMessageCredits = OwnerCredits
	}

	return balance, nil
}

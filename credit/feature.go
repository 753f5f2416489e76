// Package credit implements the per-user feature allowance ledger.
//
// Every user gets a monthly budget of credits per feature family. Credits
// are checked before work is accepted and deducted before the job is
// enqueued; a failed job does not refund its credit. Allowances replenish
// lazily: the first check or deduction in a new calendar month resets the
// row to the plan's allowance.
package credit

import (
	"github.com/SnehaChouksey/Acadlyst/errors"
)

// Feature identifies one billable feature family
type Feature string

const (
	FeatureSummarizer  Feature = "summarizer"   // summary generation jobs
	FeatureQuiz        Feature = "quiz"         // quiz generation jobs
	FeatureChat        Feature = "chat"         // document indexing for chat
	FeatureChatMessage Feature = "chat-message" // individual chat questions
)

// OwnerCredits is the balance reported for owner accounts, which are never
// decremented.
const OwnerCredits = 999999

// creditColumn maps a feature to its credit column in the users table
func creditColumn(f Feature) (string, error) {
	switch f {
	case FeatureSummarizer:
		return "summarizer_credits", nil
	case FeatureQuiz:
		return "quiz_credits", nil
	case FeatureChat:
		return "chat_credits", nil
	case FeatureChatMessage:
		return "chat_message_credits", nil
	default:
		return "", errors.Newf("unknown feature: %s", f)
	}
}

// totalColumn maps a feature to its lifetime usage column in the users table
func totalColumn(f Feature) (string, error) {
	switch f {
	case FeatureSummarizer:
		return "total_summaries", nil
	case FeatureQuiz:
		return "total_quizzes", nil
	case FeatureChat:
		return "total_chats", nil
	case FeatureChatMessage:
		return "total_chat_messages", nil
	default:
		return "", errors.Newf("unknown feature: %s", f)
	}
}

package disposition

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/models"
)

// FailureText is the generic reply for a store failure.
const FailureText = msgFailure

const (
	msgFailure       = "⚠️ Something went wrong. Please try again."
	msgNotForYou     = "❌ Not for you!"
	msgStaleAction   = "⚠️ This line is no longer active."
	msgNothingCancel = "Nothing to cancel."
	msgDeskStopped   = "⏸️ The desk is currently stopped."
	msgAlreadyActive = "❌ You already have an active line! Use it first."
	msgNoneAvailable = "❌ No numbers available in queue right now."
	msgAdminOnly     = "❌ Admin only!"
	msgNamePrompt    = "👋 Welcome! Please enter your agent name:\n\nSend /cancel to abort."
	msgNameInvalid   = "❌ Agent name must be 2-50 characters!"
	msgSummaryPrompt = "📝 Send summary for this call:\n\nSend /cancel to abort."
	msgCancelled     = "❌ Cancelled."
	msgNoLine        = "⚠️ You don't have a line to replace."
	msgRequestExists = "⏳ Your request is already waiting for an admin."
	msgRequestSent   = "📝 Your request for a new line was sent to the admins."
	msgRequestGone   = "⚠️ Not found or already processed!"
	msgDeclinedUser  = "❌ Your line request was denied by admin.\n\nMessage in the group to find out why."
)

// defaultAgentName is shown for operators who never registered a name.
const defaultAgentName = "Agent"

// Agent name length bounds, in characters.
const (
	minAgentName = 2
	maxAgentName = 50
)

func lineAction(label string) Action {
	return Action{ID: ActionID(KindRequestAllocation, ""), Label: label}
}

func assignedActions(operatorID string) []Action {
	return []Action{
		{ID: ActionID(KindOTP, operatorID), Label: "OTP 📞"},
		{ID: ActionID(KindNoAnswer, operatorID), Label: "No Answer ❌"},
	}
}

func onCallActions(operatorID string) []Action {
	return []Action{
		{ID: ActionID(KindNeedPass, operatorID), Label: "Need a Pass ⛹️"},
		{ID: ActionID(KindNeedEmail, operatorID), Label: "Need Email 📧"},
		{ID: ActionID(KindFinishing, operatorID), Label: "Finishing 🫡"},
		{ID: ActionID(KindCallback, operatorID), Label: "Vic Needs Callback ☎️"},
		{ID: ActionID(KindCallEnded, operatorID), Label: "Call Ended 📵"},
	}
}

func requestActions(requestID uint) []Action {
	id := fmt.Sprintf("%d", requestID)
	return []Action{
		{ID: ActionID(KindApproveRequest, id), Label: "✅ Approve"},
		{ID: ActionID(KindDeclineRequest, id), Label: "❌ Decline"},
	}
}

// lineDetails renders a work item payload with the agent header.
func lineDetails(item *models.WorkItem, agent, reference string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 Agent: %s\n", agent)
	fmt.Fprintf(&b, "🗃️ Reference: %s\n\n", reference)
	b.WriteString("🎫 Line Details:\n\n")
	if item.Name != "" {
		fmt.Fprintf(&b, "👤 Name: %s\n", item.Name)
	}
	fmt.Fprintf(&b, "📞 Number: %s\n", item.Number)
	if item.Address != "" {
		fmt.Fprintf(&b, "📍 Address: %s\n", item.Address)
	}
	if item.Email != "" {
		fmt.Fprintf(&b, "📧 Email: %s\n", item.Email)
	}
	return b.String()
}

// summaryBroadcast renders the group message for a submitted summary.
func summaryBroadcast(status, who, summary string) string {
	switch status {
	case models.StatusFinishing:
		return fmt.Sprintf("🫡 %s finishing call\n\n📝 Summary:\n%s", who, summary)
	case models.StatusCallback:
		return fmt.Sprintf("☎️ %s needs callback\n\n📝 Summary:\n%s", who, summary)
	default:
		return fmt.Sprintf("📝 %s's Call Summary:\n\n%s", who, summary)
	}
}

// dispositionBroadcast renders the group message when a status is set.
func dispositionBroadcast(kind Kind, who string) string {
	switch kind {
	case KindNeedPass:
		return fmt.Sprintf("⛹️ %s needs a pass", who)
	case KindNeedEmail:
		return fmt.Sprintf("📧 %s needs an email", who)
	case KindFinishing:
		return fmt.Sprintf("🫡 %s is finishing call", who)
	case KindCallback:
		return fmt.Sprintf("☎️ %s needs a call back", who)
	case KindCallEnded:
		return fmt.Sprintf("📵 %s call ended", who)
	}
	return ""
}

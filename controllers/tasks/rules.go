package tasks

import (
	"errors"
	"os"
	"strconv"

	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"
)

// Rule errors. Each maps to one distinct user-visible outcome at the handler
// boundary; none of them is ever treated as a server fault.
var (
	ErrTaskClosed        = errors.New("task already closed")
	ErrTaskClaimed       = errors.New("task already claimed")
	ErrTaskLimitExceeded = errors.New("active task limit exceeded")
	ErrNotInvited        = errors.New("user not invited")
	ErrNotEligible       = errors.New("user not eligible")
	ErrNonePending       = errors.New("no pending request")
	ErrDuplicatePending  = errors.New("duplicate pending request")
	ErrAlreadyComplete   = errors.New("task already complete")
	ErrBadInvitee        = errors.New("unknown invitee identifier")
	ErrNotParticipant    = errors.New("user not a participant")
)

// MaxActiveTasks is the ceiling of simultaneously running tasks per student,
// env MAX_ACTIVE_TASKS, default 6.
func MaxActiveTasks() int {
	if s := os.Getenv("MAX_ACTIVE_TASKS"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return 6
}

// CanApply checks the apply preconditions: task open, not claimed, and the
// applicant below the active-task ceiling.
func CanApply(task *models.Task, acceptedCount, activeCount int64, maxActive int) error {
	if task.IsCompleted {
		return ErrTaskClosed
	}
	if task.TaskType == models.TaskTypeTeam && task.LeaderID != nil {
		return ErrTaskClaimed
	}
	if acceptedCount >= int64(task.MaximumUsers) {
		return ErrTaskClaimed
	}
	if activeCount >= int64(maxActive) {
		return ErrTaskLimitExceeded
	}
	return nil
}

// ApplyStartState returns the started/accepted flags right after an apply.
// Solo tasks and self-formed teams of one start immediately; a team with
// outstanding invitations is accepted but waits for members.
func ApplyStartState(taskType string, inviteeCount int) (started, accepted bool) {
	if taskType == models.TaskTypeSolo || inviteeCount == 0 {
		return true, true
	}
	return false, true
}

// CanAcceptInvite re-checks capacity and the active-task ceiling before
// admitting an invited user; the accepted set never grows past MaximumUsers.
func CanAcceptInvite(task *models.Task, invited bool, acceptedCount, activeCount int64, maxActive int) error {
	if !invited {
		return ErrNotInvited
	}
	if task.IsCompleted {
		return ErrTaskClosed
	}
	if acceptedCount >= int64(task.MaximumUsers) {
		return ErrTaskClaimed
	}
	if activeCount >= int64(maxActive) {
		return ErrTaskLimitExceeded
	}
	return nil
}

// CanRequestCancel: solo tasks allow any participant, team tasks only the
// leader.
func CanRequestCancel(task *models.Task, requesterID uint, isParticipant bool) error {
	if task.IsCompleted {
		return ErrTaskClosed
	}
	if task.TaskType == models.TaskTypeSolo {
		if !isParticipant {
			return ErrNotEligible
		}
		return nil
	}
	if task.LeaderID == nil || *task.LeaderID != requesterID || !isParticipant {
		return ErrNotEligible
	}
	return nil
}

// CanUrgeCompletion: any accepted participant may urge an uncompleted task.
func CanUrgeCompletion(task *models.Task, isParticipant bool) error {
	if task.IsCompleted {
		return ErrAlreadyComplete
	}
	if !isParticipant {
		return ErrNotEligible
	}
	return nil
}

// CanRemoveParticipant: publisher-only operation on non-completed solo tasks.
func CanRemoveParticipant(task *models.Task) error {
	if task.TaskType != models.TaskTypeSolo || task.IsCompleted {
		return ErrNotEligible
	}
	return nil
}

// ResetForCancel returns the task to its pristine pre-application state.
// The caller clears the participant and invite associations in the same
// transaction.
func ResetForCancel(task *models.Task) {
	task.LeaderID = nil
	task.Leader = nil
	task.IsStarted = false
	task.IsAccepted = false
	task.IsCompleted = false
	task.CancelRequested = false
}

// ApplyAutoClose closes a solo task whose last participant was removed.
func ApplyAutoClose(task *models.Task) {
	task.IsCompleted = true
	task.IsAccepted = false
	task.CancelRequested = true
}

// Reward is the per-participant settlement of a completed task.
type Reward struct {
	Experience    uint
	Tokens        uint
	VolunteerTime float64
}

func TaskReward(task *models.Task) Reward {
	return Reward{
		Experience:    task.ExperienceReward,
		Tokens:        task.TokenReward,
		VolunteerTime: task.VolunteerTimeReward,
	}
}

// CreditBalances applies a reward to a user's ledger fields and recomputes
// the level. Returns true when the credit crossed a level boundary.
func CreditBalances(u *models.User, r Reward) (leveledUp bool) {
	u.Experience += r.Experience
	u.Tokens += r.Tokens
	u.VolunteerTime = utils.RoundFloat(u.VolunteerTime+r.VolunteerTime, 2)

	titleName := ""
	if u.Title != nil {
		titleName = u.Title.Name
	}
	newLevel := utils.CalculateLevel(u.Experience, titleName)
	leveledUp = newLevel != u.Level
	u.Level = newLevel
	return leveledUp
}

package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"gorm.io/gorm"
)

type applyRequest struct {
	InvitedIdentifiers []string `json:"invited_identifiers"`
}

// POST /v1/tasks/{taskid}/apply
//
// Adds the student to the accepted set. Solo tasks start immediately; team
// tasks make the applicant leader and optionally invite teammates by their
// public identifiers.
func ApplyHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}

	var notes []note
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		accepted, err := acceptedCount(tx, task.ID)
		if err != nil {
			return err
		}
		active, err := activeTaskCount(tx, actor.ID)
		if err != nil {
			return err
		}
		if err := CanApply(task, accepted, active, MaxActiveTasks()); err != nil {
			return err
		}

		var invitees []models.User
		if task.TaskType == models.TaskTypeTeam && len(req.InvitedIdentifiers) > 0 {
			if err := tx.Where("identifier IN ?", req.InvitedIdentifiers).Find(&invitees).Error; err != nil {
				return err
			}
			if len(invitees) != len(req.InvitedIdentifiers) {
				return ErrBadInvitee
			}
		}

		if err := tx.Model(task).Association("AcceptedBy").Append(actor); err != nil {
			return err
		}

		task.IsStarted, task.IsAccepted = ApplyStartState(task.TaskType, len(invitees))
		if task.TaskType == models.TaskTypeTeam {
			task.LeaderID = &actor.ID
			if len(invitees) > 0 {
				if err := tx.Model(task).Association("InvitedUsers").Replace(invitees); err != nil {
					return err
				}
			}
		}
		if err := tx.Save(task).Error; err != nil {
			return err
		}

		var publisher models.User
		if err := tx.First(&publisher, task.PublisherID).Error; err == nil {
			notes = append(notes, note{
				user:          &publisher,
				notifType:     models.NotifyTaskUpdate,
				message:       fmt.Sprintf("%s 接取了你发布的任务《%s》", actor.DisplayName(), task.Title),
				taskID:        &task.ID,
				relatedUserID: &actor.ID,
			})
		}
		for i := range invitees {
			invitee := invitees[i]
			notes = append(notes, note{
				user:          &invitee,
				notifType:     models.NotifyInvite,
				message:       fmt.Sprintf("你被 %s 邀请加入任务《%s》", actor.DisplayName(), task.Title),
				taskID:        &task.ID,
				relatedUserID: &actor.ID,
			})
		}
		return nil
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	flushNotes(notes)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "任务已申请成功"})
}

// POST /v1/tasks/{taskid}/accept
func AcceptInvitationHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		invited, err := isInvited(tx, task.ID, actor.ID)
		if err != nil {
			return err
		}
		accepted, err := acceptedCount(tx, task.ID)
		if err != nil {
			return err
		}
		active, err := activeTaskCount(tx, actor.ID)
		if err != nil {
			return err
		}
		if err := CanAcceptInvite(task, invited, accepted, active, MaxActiveTasks()); err != nil {
			return err
		}
		if err := tx.Model(task).Association("InvitedUsers").Delete(actor); err != nil {
			return err
		}
		if err := tx.Model(task).Association("AcceptedBy").Append(actor); err != nil {
			return err
		}
		return tx.Save(task).Error
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "已接受邀请"})
}

// POST /v1/tasks/{taskid}/reject
func RejectInvitationHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		invited, err := isInvited(tx, task.ID, actor.ID)
		if err != nil {
			return err
		}
		if !invited {
			return ErrNotInvited
		}
		return tx.Model(task).Association("InvitedUsers").Delete(actor)
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "已拒绝邀请"})
}

type removeParticipantRequest struct {
	ParticipantID uint `json:"participant_id"`
}

// POST /v1/tasks/{taskid}/remove-participant
//
// Publisher removes one participant from a solo task. Removing the last
// participant auto-closes the task and purges its requests.
func RemoveParticipantHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}
	var req removeParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "缺少 participant_id"})
		return
	}

	var notes []note
	autoClosed := false
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		if task.PublisherID != actor.ID {
			return ErrNotEligible
		}
		if err := CanRemoveParticipant(task); err != nil {
			return err
		}

		var participant models.User
		if err := tx.First(&participant, req.ParticipantID).Error; err != nil {
			return err
		}
		inTask, err := isParticipant(tx, task.ID, participant.ID)
		if err != nil {
			return err
		}
		if !inTask {
			return ErrNotParticipant
		}

		if err := tx.Model(task).Association("AcceptedBy").Delete(&participant); err != nil {
			return err
		}
		// The removed participant's asks are void once they leave the task.
		if err := tx.Where("task_id = ? AND requester_id = ?", task.ID, participant.ID).
			Delete(&models.TaskRequest{}).Error; err != nil {
			return err
		}

		remaining, err := acceptedCount(tx, task.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			ApplyAutoClose(task)
			if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskRequest{}).Error; err != nil {
				return err
			}
			autoClosed = true
			notes = append(notes, note{
				user:      actor,
				notifType: models.NotifyTaskUpdate,
				message:   fmt.Sprintf("任务《%s》因没有参与者被取消", task.Title),
				taskID:    &task.ID,
			})
		} else {
			pending, err := hasPendingCancel(tx, task.ID)
			if err != nil {
				return err
			}
			task.CancelRequested = pending
		}
		if err := tx.Save(task).Error; err != nil {
			return err
		}

		notes = append(notes, note{
			user:          &participant,
			notifType:     models.NotifyTaskUpdate,
			message:       fmt.Sprintf("你已被移出任务《%s》", task.Title),
			taskID:        &task.ID,
			relatedUserID: &actor.ID,
		})
		return nil
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	flushNotes(notes)
	if autoClosed {
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
			Success: true,
			Message: "参与者已移除，任务因无人参与已被取消",
			Data:    map[string]interface{}{"auto_cancelled": true},
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "参与者已移除"})
}

package contest

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"ojcore/internal/auth"
	"ojcore/internal/model"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

// UserResolver turns a username into an identity for roster edits.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// Controller exposes the contest and exam endpoints.
type Controller struct {
	service *Service
	exams   *ExamService
	users   UserResolver
}

// NewController creates the contest controller.
func NewController(service *Service, exams *ExamService, users UserResolver) *Controller {
	return &Controller{service: service, exams: exams, users: users}
}

// RegisterPublic mounts the read-only routes that admit anonymous
// viewers; public published contests are listed to everyone.
func (ctl *Controller) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/contests/", ctl.list)
	rg.GET("/contests/:id/", ctl.get)
}

// Register mounts the routes on the authenticated group.
func (ctl *Controller) Register(rg *gin.RouterGroup) {
	rg.POST("/contests/:id/register/", ctl.register)
	rg.POST("/contests/:id/enter/", ctl.enter)
	rg.POST("/contests/:id/leave/", ctl.leave)

	rg.POST("/contests/:id/exam/start/", ctl.examStart)
	rg.POST("/contests/:id/exam/pause/", ctl.examPause)
	rg.POST("/contests/:id/exam/end/", ctl.examEnd)
	rg.POST("/contests/:id/exam/events/", ctl.examEvent)
	rg.GET("/contests/:id/exam/", ctl.examState)
	rg.POST("/contests/:id/unlock_participant/", ctl.unlockParticipant)
	rg.POST("/contests/:id/reopen_exam/", ctl.reopenExam)

	rg.GET("/contests/:id/admins/", ctl.listAdmins)
	rg.POST("/contests/:id/add_admin/", ctl.addAdmin)
	rg.POST("/contests/:id/remove_admin/", ctl.removeAdmin)

	rg.GET("/contests/:id/clarifications/", ctl.listClarifications)
	rg.POST("/contests/:id/clarifications/", ctl.createClarification)
	rg.POST("/contests/:id/clarifications/:cid/reply/", ctl.replyClarification)
}

func contestID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErr.ValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (ctl *Controller) list(c *gin.Context) {
	scope := c.DefaultQuery("scope", "visible")
	contests, err := ctl.service.ListContests(c.Request.Context(), auth.CurrentUser(c), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	if contests == nil {
		contests = []model.Contest{}
	}
	response.Success(c, contests)
}

func (ctl *Controller) get(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	contest, err := ctl.service.GetContest(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contest)
}

func (ctl *Controller) register(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
		Nickname string `json:"nickname"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErr.BadRequest("Invalid request payload"))
			return
		}
	}
	participant, err := ctl.service.Register(c.Request.Context(), auth.CurrentUser(c), id, req.Password, req.Nickname)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

func (ctl *Controller) enter(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	if err := ctl.service.Enter(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (ctl *Controller) leave(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	if err := ctl.service.Leave(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (ctl *Controller) examStart(c *gin.Context) {
	ctl.examTransition(c, ctl.exams.StartExam)
}

func (ctl *Controller) examPause(c *gin.Context) {
	ctl.examTransition(c, ctl.exams.PauseExam)
}

func (ctl *Controller) examEnd(c *gin.Context) {
	ctl.examTransition(c, ctl.exams.EndExam)
}

func (ctl *Controller) examTransition(c *gin.Context,
	fn func(context.Context, *model.User, int64) (*model.ContestParticipant, error)) {

	id, ok := contestID(c)
	if !ok {
		return
	}
	participant, err := fn(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, participant)
}

func (ctl *Controller) examEvent(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	var req struct {
		EventType string `json:"event_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ValidationError("event_type", "required"))
		return
	}
	participant, err := ctl.exams.LogEvent(c.Request.Context(), auth.CurrentUser(c), id, req.EventType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, participant)
}

func (ctl *Controller) examState(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	participant, err := ctl.exams.ParticipantState(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, participant)
}

func (ctl *Controller) unlockParticipant(c *gin.Context) {
	ctl.recoverParticipant(c, ctl.exams.Unlock)
}

func (ctl *Controller) reopenExam(c *gin.Context) {
	ctl.recoverParticipant(c, ctl.exams.Reopen)
}

func (ctl *Controller) recoverParticipant(c *gin.Context,
	fn func(context.Context, *model.User, int64, int64) (*model.ContestParticipant, error)) {

	id, ok := contestID(c)
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ValidationError("user_id", "required"))
		return
	}
	participant, err := fn(c.Request.Context(), auth.CurrentUser(c), id, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, participant)
}

func (ctl *Controller) listAdmins(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	admins, err := ctl.service.ListAdmins(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if admins == nil {
		admins = []int64{}
	}
	response.Success(c, gin.H{"admin_ids": admins})
}

// resolveTarget accepts either a user_id or a username.
func (ctl *Controller) resolveTarget(c *gin.Context) (int64, bool) {
	var req struct {
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.BadRequest("Invalid request payload"))
		return 0, false
	}
	if req.UserID > 0 {
		return req.UserID, true
	}
	if req.Username == "" {
		response.Error(c, appErr.ValidationError("user_id", "user_id or username required"))
		return 0, false
	}
	user, err := ctl.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		response.Error(c, err)
		return 0, false
	}
	return user.ID, true
}

func (ctl *Controller) addAdmin(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	target, ok := ctl.resolveTarget(c)
	if !ok {
		return
	}
	if err := ctl.service.AddAdmin(c.Request.Context(), auth.CurrentUser(c), id, target); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (ctl *Controller) removeAdmin(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	target, ok := ctl.resolveTarget(c)
	if !ok {
		return
	}
	if err := ctl.service.RemoveAdmin(c.Request.Context(), auth.CurrentUser(c), id, target); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (ctl *Controller) listClarifications(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	items, err := ctl.service.ListClarifications(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []model.Clarification{}
	}
	response.Success(c, items)
}

func (ctl *Controller) createClarification(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	var req struct {
		ProblemID *int64 `json:"problem"`
		Question  string `json:"question" binding:"required"`
		IsPublic  bool   `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ValidationError("question", "required"))
		return
	}
	item, err := ctl.service.CreateClarification(c.Request.Context(), auth.CurrentUser(c), id,
		req.ProblemID, req.Question, req.IsPublic)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

func (ctl *Controller) replyClarification(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	cid, err := strconv.ParseInt(c.Param("cid"), 10, 64)
	if err != nil || cid <= 0 {
		response.Error(c, appErr.ValidationError("cid", "must be a positive integer"))
		return
	}
	var req struct {
		Answer   string `json:"answer" binding:"required"`
		IsPublic bool   `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ValidationError("answer", "required"))
		return
	}
	item, err := ctl.service.ReplyClarification(c.Request.Context(), auth.CurrentUser(c), id, cid,
		req.Answer, req.IsPublic)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

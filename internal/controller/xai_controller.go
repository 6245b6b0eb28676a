package controller

import (
	"strconv"

	"mcq_tutor_backend/internal/service"
	"mcq_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type XAIController struct {
	XAIService  *service.XAIService
	ChatService *service.ChatService
}

func NewXAIController(xaiService *service.XAIService, chatService *service.ChatService) *XAIController {
	return &XAIController{
		XAIService:  xaiService,
		ChatService: chatService,
	}
}

// ExplainRequest 判题请求。question_id 为 0 或缺省时走无状态模式，
// 此时题干、选项和正确标签必须随请求提供。
// swagger:model ExplainRequest
type ExplainRequest struct {
	QuestionID         uint                      `json:"question_id"`
	StudentAnswerLabel string                    `json:"student_answer_label" binding:"required"`
	QuestionStem       string                    `json:"question_stem"`
	Options            []service.StatelessOption `json:"options"`
	CorrectLabel       string                    `json:"correct_label"`
	LectureText        string                    `json:"lecture_text"`
	IncludeEvidence    bool                      `json:"include_evidence"`
	Backend            string                    `json:"backend" binding:"omitempty,oneof=online offline"`
}

// Explain godoc
// @Summary 判题并生成解释
// @Description 校验学生作答并返回选项级解释；解释按 (题目, 选项, 版本) 缓存
// @Tags XAI
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body ExplainRequest true "判题请求"
// @Success 200 {object} util.Response{data=service.VerdictResponse}
// @Failure 400 {object} util.Response "标签无法识别、题目不存在或无状态载荷不完整"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/xai/explain [post]
func (c *XAIController) Explain(ctx *gin.Context) {
	var req ExplainRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var (
		resp *service.VerdictResponse
		err  error
	)
	if req.QuestionID == 0 {
		resp, err = c.XAIService.ExplainStateless(ctx.Request.Context(), service.StatelessExplainInput{
			QuestionStem:    req.QuestionStem,
			Options:         req.Options,
			CorrectLabel:    req.CorrectLabel,
			StudentLabel:    req.StudentAnswerLabel,
			LectureText:     req.LectureText,
			IncludeEvidence: req.IncludeEvidence,
			Backend:         req.Backend,
		})
	} else {
		resp, err = c.XAIService.Explain(ctx.Request.Context(), req.QuestionID, req.StudentAnswerLabel, req.Backend, req.IncludeEvidence)
	}

	if err != nil {
		if util.IsClientError(err) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, resp)
}

// ChatRequest 会话消息
// swagger:model ChatRequest
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// Chat godoc
// @Summary 辅导会话
// @Description 发送一条会话消息；session_id 缺省时创建新会话
// @Tags XAI
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body ChatRequest true "会话消息"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/xai/chat [post]
func (c *XAIController) Chat(ctx *gin.Context) {
	var req ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	userID := "anonymous"
	if claims := util.GetUserFromContext(ctx); claims != nil {
		userID = strconv.FormatUint(uint64(claims.UserID), 10)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	reply, err := c.ChatService.HandleMessage(ctx.Request.Context(), sessionID, userID, req.Message)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"session_id": sessionID,
		"reply":      reply,
	})
}

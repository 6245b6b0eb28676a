package controller

import (
	"errors"
	"strconv"

	"mcq_tutor_backend/internal/service"
	"mcq_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MCQController struct {
	MCQService *service.MCQService
}

func NewMCQController(mcqService *service.MCQService) *MCQController {
	return &MCQController{MCQService: mcqService}
}

// GenerateRequest 出题请求
// swagger:model GenerateRequest
type GenerateRequest struct {
	LectureID    uint   `json:"lecture_id"`
	SectionID    *uint  `json:"section_id"`
	LectureText  string `json:"lecture_text"`
	NumQuestions int    `json:"num_questions" binding:"omitempty,min=1,max=10"`
	UseStub      bool   `json:"use_stub"`
	Backend      string `json:"backend" binding:"omitempty,oneof=online offline"`
}

// Generate godoc
// @Summary 从讲义生成 MCQ
// @Description 调用模型出题并入库；use_stub 为真时返回确定性的占位题目
// @Tags 题目
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body GenerateRequest true "出题请求"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "讲义或小节不存在"
// @Failure 500 {object} util.Response "模型不可用或返回无法解析"
// @Router /api/mcq/generate [post]
func (c *MCQController) Generate(ctx *gin.Context) {
	var req GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.LectureID == 0 && req.LectureText == "" && !req.UseStub {
		util.BadRequest(ctx, "either lecture_id or lecture_text is required")
		return
	}

	ids, questions, err := c.MCQService.GenerateAndSave(ctx.Request.Context(), service.MCQGenerateInput{
		LectureID:    req.LectureID,
		SectionID:    req.SectionID,
		LectureText:  req.LectureText,
		NumQuestions: req.NumQuestions,
		UseStub:      req.UseStub,
		Backend:      req.Backend,
	})
	if err != nil {
		if util.IsClientError(err) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{
		"question_ids": ids,
		"questions":    questions,
	})
}

// List godoc
// @Summary 题目列表
// @Description 按讲义（可选小节）列出题目及其选项和答案键
// @Tags 题目
// @Produce  json
// @Security BearerAuth
// @Param   lecture_id query int true "讲义ID"
// @Param   section_id query int false "小节ID"
// @Success 200 {object} util.Response{data=[]model.Question}
// @Failure 400 {object} util.Response "缺少讲义ID"
// @Router /api/questions [get]
func (c *MCQController) List(ctx *gin.Context) {
	lectureID, err := strconv.ParseUint(ctx.Query("lecture_id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "lecture_id query parameter is required")
		return
	}

	var sectionID *uint
	if raw := ctx.Query("section_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			util.BadRequest(ctx, "invalid section_id")
			return
		}
		id := uint(parsed)
		sectionID = &id
	}

	questions, err := c.MCQService.ListQuestions(uint(lectureID), sectionID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// Get godoc
// @Summary 题目详情
// @Tags 题目
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "题目ID"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [get]
func (c *MCQController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	question, err := c.MCQService.GetQuestion(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrQuestionNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, question)
}

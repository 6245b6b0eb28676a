package controller

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"mcq_tutor_backend/internal/service"
	"mcq_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 10 << 20 // 10MB

type LectureController struct {
	DocumentService *service.DocumentService
}

func NewLectureController(documentService *service.DocumentService) *LectureController {
	return &LectureController{DocumentService: documentService}
}

// Upload godoc
// @Summary 上传讲义
// @Description 上传 UTF-8 文本讲义，清洗后按空行切分小节入库
// @Tags 讲义
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "讲义文本文件"
// @Success 201 {object} util.Response{data=model.Lecture} "创建成功"
// @Failure 400 {object} util.Response "文件为空、编码错误或内容过短"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/lectures/upload [post]
func (c *LectureController) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		util.BadRequest(ctx, "file too large (max 10MB)")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text") {
		util.BadRequest(ctx, "unsupported file type: "+contentType)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	lecture, err := c.DocumentService.ProcessUpload(ctx.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		if util.IsClientError(err) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, lecture)
}

// List godoc
// @Summary 讲义列表
// @Description 按创建时间倒序返回所有未删除的讲义
// @Tags 讲义
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Lecture}
// @Router /api/lectures [get]
func (c *LectureController) List(ctx *gin.Context) {
	lectures, err := c.DocumentService.ListLectures()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, lectures)
}

// Get godoc
// @Summary 讲义详情
// @Tags 讲义
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "讲义ID"
// @Success 200 {object} util.Response{data=model.Lecture}
// @Failure 404 {object} util.Response "讲义不存在"
// @Router /api/lectures/{id} [get]
func (c *LectureController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lecture id")
		return
	}

	lecture, err := c.DocumentService.GetLecture(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrLectureNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, lecture)
}

// Delete godoc
// @Summary 删除讲义
// @Description 软删除，讲义从列表消失但历史题目保留
// @Tags 讲义
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "讲义ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "讲义不存在"
// @Router /api/lectures/{id} [delete]
func (c *LectureController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lecture id")
		return
	}

	if err := c.DocumentService.DeleteLecture(uint(id)); err != nil {
		if errors.Is(err, util.ErrLectureNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

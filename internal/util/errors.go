package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrLectureNotFound     = errors.New("lecture not found")
	ErrSectionNotFound     = errors.New("section not found for the given lecture")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionNoOptions   = errors.New("question has no options")
	ErrNoCorrectLabel      = errors.New("correct answer label could not be determined")
	ErrLabelNotRecognized  = errors.New("answer label not recognized")
	ErrOptionNotFound      = errors.New("option does not exist for this question")
	ErrLectureTooShort     = errors.New("lecture text too short (>= 50 characters required)")
	ErrInvalidUpload       = errors.New("file is empty or not valid UTF-8 text")
	ErrStatelessIncomplete = errors.New("either a valid question_id or full question payload must be provided")
)

// IsClientError 判断错误是否属于输入/数据完整性问题（映射为 400）。
// 上游模型和持久化错误不会走到这里，它们在编排层被降级吸收。
func IsClientError(err error) bool {
	for _, e := range []error{
		ErrLectureNotFound,
		ErrSectionNotFound,
		ErrQuestionNotFound,
		ErrQuestionNoOptions,
		ErrNoCorrectLabel,
		ErrLabelNotRecognized,
		ErrOptionNotFound,
		ErrLectureTooShort,
		ErrInvalidUpload,
		ErrStatelessIncomplete,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

package service

// 一次编排运行的终态
const (
	StatusDone           = "done"
	StatusDoneWithErrors = "done_with_errors"
	StatusFailed         = "failed"
)

// TaskRequest 任务提交请求，接收后不可变
type TaskRequest struct {
	Email         string       `json:"email"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	EvaluationURL string       `json:"evaluation_url"`
	Attachments   []Attachment `json:"attachments"`
	Secret        string       `json:"secret"`
}

// Attachment 内联附件，data URI 形式
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Data string `json:"data"`
}

// UploadedFile 已上传文件的记录
type UploadedFile struct {
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// Report 一次运行的累积结果，只追加不回滚
// 错误被记录而非撤销，status 的取值由错误列表决定
type Report struct {
	RunID                string          `json:"run_id"`
	Status               string          `json:"status"`
	Repo                 string          `json:"repo,omitempty"`
	PagesURL             string          `json:"pages_url,omitempty"`
	Errors               []string        `json:"errors"`
	LLMFiles             []UploadedFile  `json:"llm_files"`
	AttachmentsUploaded  []UploadedFile  `json:"attachments_uploaded"`
	Checks               map[string]bool `json:"checks"`
	EvaluationPosted     *bool           `json:"evaluation_posted,omitempty"`
	EvaluationStatusCode int             `json:"evaluation_status_code,omitempty"`
}

// NewReport 创建空报告
func NewReport(runID string) *Report {
	return &Report{
		RunID:               runID,
		Status:              StatusDone,
		Errors:              make([]string, 0),
		LLMFiles:            make([]UploadedFile, 0),
		AttachmentsUploaded: make([]UploadedFile, 0),
		Checks:              make(map[string]bool),
	}
}

// AddError 追加一条带阶段标签的错误
func (r *Report) AddError(tag string, err error) {
	if err != nil {
		r.Errors = append(r.Errors, tag+":"+err.Error())
	} else {
		r.Errors = append(r.Errors, tag)
	}
}

// Finalize 根据错误列表确定终态：无错误为 done，否则 done_with_errors
func (r *Report) Finalize() {
	if len(r.Errors) == 0 {
		r.Status = StatusDone
	} else {
		r.Status = StatusDoneWithErrors
	}
}

// CondensedReport 回调给 evaluation_url 的精简报告，不含内部字段
type CondensedReport struct {
	Email               string          `json:"email"`
	Task                string          `json:"task"`
	Round               int             `json:"round"`
	Repo                string          `json:"repo"`
	PagesURL            string          `json:"pages_url"`
	Checks              map[string]bool `json:"checks"`
	Errors              []string        `json:"errors"`
	LLMFiles            []UploadedFile  `json:"llm_files"`
	AttachmentsUploaded []UploadedFile  `json:"attachments_uploaded"`
	Timestamp           int64           `json:"timestamp"`
}

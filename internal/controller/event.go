package controller

import "fmt"

// Op 控制器操作
type Op string

const (
	OpLogin          Op = "login"
	OpRegister       Op = "register"
	OpLogout         Op = "logout"
	OpRestore        Op = "restore_session"
	OpListThreads    Op = "list_threads"
	OpCreateThread   Op = "create_thread"
	OpSelectThread   Op = "select_thread"
	OpDeleteThread   Op = "delete_thread"
	OpSendMessage    Op = "send_message"
	OpUploadDocument Op = "upload_document"
)

// Outcome 操作结果
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeStale // 响应已过期被丢弃，状态未修改
)

// String 返回结果名称
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeStale:
		return "stale"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Event 一次操作的结果
type Event struct {
	Op       Op
	Outcome  Outcome
	ThreadID int64
	Err      error
}

// OK 是否成功
func (e Event) OK() bool {
	return e.Outcome == OutcomeSuccess
}

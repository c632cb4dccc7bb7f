package types

// 视频处理状态（metadata.status 保存提供方原始状态字符串）
const (
	StatusUploading = "uploading"
	StatusWaiting   = "waiting"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusErrored   = "errored"
)

// 记录生命周期
const (
	StateUploading = "uploading"
	StateLinked    = "linked"
	StateReady     = "ready"
	StateErrored   = "errored"
)

// StatusRank 状态序：uploading < linked < ready|errored；空状态为 0，未知的非空状态视为 linked
func StatusRank(status string) int {
	switch status {
	case "":
		return 0
	case StatusUploading, StatusWaiting:
		return 1
	case StatusReady, StatusErrored:
		return 3
	default:
		return 2
	}
}

// IsTerminal ready 或 errored
func IsTerminal(status string) bool {
	return StatusRank(status) == 3
}

// StateRank 生命周期序，用于校验单调性
func StateRank(state string) int {
	switch state {
	case StateUploading:
		return 1
	case StateLinked:
		return 2
	case StateReady, StateErrored:
		return 3
	}
	return 0
}

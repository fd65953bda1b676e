package websocket

// ─── Runner protocol (client → code runner) ─────────────────────────

type RunnerAction string

const (
	RunnerInit  RunnerAction = "init"
	RunnerInput RunnerAction = "input"
	RunnerKill  RunnerAction = "kill"
)

// InitRequest starts a program. Language is the file extension of the buffer.
type InitRequest struct {
	Type     RunnerAction `json:"type"`
	Language string       `json:"language"`
	Code     string       `json:"code"`
	Input    string       `json:"input"`
}

// InputRequest feeds stdin of the running program.
type InputRequest struct {
	Type RunnerAction `json:"type"`
	Data string       `json:"data"`
}

// KillRequest aborts the running program.
type KillRequest struct {
	Type RunnerAction `json:"type"`
}

// ─── Runner protocol (code runner → client) ─────────────────────────

type RunnerEvent string

const (
	RunnerStdout RunnerEvent = "stdout"
	RunnerStderr RunnerEvent = "stderr"
	RunnerExit   RunnerEvent = "exit"
)

// RunnerMessage is every frame the runner streams back.
type RunnerMessage struct {
	Type RunnerEvent `json:"type"`
	Data string      `json:"data"`
}

// ─── Attempt stream (daemon → UI) ───────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
)

// Action is sent by the UI over the event stream.
type Action string

const (
	ActionPing   Action = "ping"
	ActionFinish Action = "finish"
)

// RequestEnvelope is used to peek at the action of a UI message.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// Envelope wraps every message pushed to the UI.
type Envelope struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

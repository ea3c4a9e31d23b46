package bridge

import (
	"encoding/json"
	"fmt"
)

// RegistrationMessage is the JSON body a backend instance posts to the
// gateway on startup and re-sends on every heartbeat. The gateway treats
// every message as register-or-update, so a heartbeat from an instance
// the gateway has forgotten (e.g. after a gateway restart) transparently
// re-creates its record.
//
// ProcessID is the stable identity of the instance; Port is where its
// query endpoint listens. SolutionPath and SolutionName describe the
// workload currently open in the instance and may be empty when the
// backend has nothing loaded yet. Projects lists the workload's
// sub-units and is replaced wholesale on each message.
type RegistrationMessage struct {
	SolutionPath string   `json:"solutionPath,omitempty"`
	SolutionName string   `json:"solutionName,omitempty"`
	Projects     []string `json:"projects,omitempty"`
	Port         int      `json:"port"`
	ProcessID    int      `json:"processId"`
}

// UnregisterMessage identifies the instance being removed on graceful
// shutdown, and is also the body of the legacy lightweight heartbeat.
type UnregisterMessage struct {
	ProcessID int `json:"processId"`
}

// QueryEnvelope is the request the gateway forwards to a backend's query
// endpoint. The gateway only inspects the fields it needs for routing
// (FilePath, plus name/port hints carried as query parameters); the
// rest is opaque payload interpreted by the backend.
type QueryEnvelope struct {
	OperationType string            `json:"operationType"`
	FilePath      string            `json:"filePath,omitempty"`
	SymbolName    string            `json:"symbolName,omitempty"`
	Project       string            `json:"project,omitempty"`
	Package       string            `json:"package,omitempty"`
	Version       string            `json:"version,omitempty"`
	Configuration string            `json:"configuration,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
	Line          int               `json:"line,omitempty"`   // 1-based
	Column        int               `json:"column,omitempty"` // 0-based
}

// ResultEnvelope is the uniform response shape used by every gateway
// endpoint and by the backends themselves. Data is kept raw so backend
// payloads pass through the gateway without interpretation.
type ResultEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Failure builds a failure envelope from a formatted error string.
func Failure(format string, args ...any) ResultEnvelope {
	return ResultEnvelope{Success: false, Error: fmt.Sprintf(format, args...)}
}

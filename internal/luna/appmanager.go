package luna

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const AppManagerName = "com.palm.applicationManager"

// LaunchResult is the launch response.
type LaunchResult struct {
	Reply
	ProcessID string `json:"processId"`
}

// AppList is the listApps response.
type AppList struct {
	Reply
	Apps []json.RawMessage `json:"apps"`
}

// RunningList is the running response.
type RunningList struct {
	Reply
	Running []json.RawMessage `json:"running"`
}

// AppInfo describes an application.
type AppInfo struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

// AppInfoResult is the getAppInfo response.
type AppInfoResult struct {
	Reply
	AppInfo AppInfo `json:"appInfo"`
}

type launchRequest struct {
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

type openRequest struct {
	Target string `json:"target"`
}

type appInfoRequest struct {
	ID string `json:"id"`
}

// AppManager emulates com.palm.applicationManager. Only open has a host
// side effect.
type AppManager struct {
	opener Opener
	now    func() time.Time
	table  MethodTable
}

func NewAppManager(opener Opener) *AppManager {
	m := &AppManager{opener: opener, now: time.Now}
	m.table.
		On("launch", Suffix("launch"), m.launch).
		On("open", Suffix("open"), m.open).
		On("listApps", Suffix("listApps"), m.listApps).
		On("getAppInfo", Suffix("getAppInfo"), m.appInfo).
		On("running", Suffix("running"), m.running)
	return m
}

func (m *AppManager) Name() string { return AppManagerName }

func (m *AppManager) Handle(method string, p Params) (any, error) {
	return m.table.Dispatch(method, p)
}

func (m *AppManager) launch(_ string, p Params) (any, error) {
	var req launchRequest
	_ = p.Decode(&req)
	slog.Debug("applicationManager launch", "app_id", req.ID)
	return LaunchResult{Reply: OK(), ProcessID: fmt.Sprintf("wcl-%d", m.now().UnixMilli())}, nil
}

// classifyTarget maps an open target to a host action. ok is false for
// targets the host does not handle; those still succeed.
func classifyTarget(target string) (OpenKind, bool) {
	switch {
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return OpenView, true
	case strings.HasPrefix(target, "tel:"):
		return OpenDial, true
	case strings.HasPrefix(target, "mailto:"):
		return OpenCompose, true
	default:
		return "", false
	}
}

func (m *AppManager) open(_ string, p Params) (any, error) {
	var req openRequest
	_ = p.Decode(&req)
	if req.Target == "" {
		return OK(), nil
	}
	kind, ok := classifyTarget(req.Target)
	if !ok || m.opener == nil {
		slog.Debug("applicationManager open ignored", "target", req.Target)
		return OK(), nil
	}
	if err := m.opener.Open(kind, req.Target); err != nil {
		slog.Warn("applicationManager open failed", "target", req.Target, "error", err)
		return Failure(err.Error()), nil
	}
	return OK(), nil
}

func (m *AppManager) listApps(string, Params) (any, error) {
	return AppList{Reply: OK(), Apps: []json.RawMessage{}}, nil
}

func (m *AppManager) running(string, Params) (any, error) {
	return RunningList{Reply: OK(), Running: []json.RawMessage{}}, nil
}

func (m *AppManager) appInfo(_ string, p Params) (any, error) {
	var req appInfoRequest
	_ = p.Decode(&req)
	return AppInfoResult{
		Reply:   OK(),
		AppInfo: AppInfo{ID: req.ID, Title: "Unknown App", Version: "1.0.0"},
	}, nil
}

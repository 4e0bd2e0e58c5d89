package luna

import (
	"fmt"
	"time"
)

const (
	PreferencesName = "com.palm.preferences"
	DBName          = "com.palm.db"
	AudioName       = "com.palm.audio"
	PowerName       = "com.palm.power"
)

// PreferencesService acknowledges preference reads without returning values.
type PreferencesService struct{}

func (PreferencesService) Name() string { return PreferencesName }

func (PreferencesService) Handle(method string, _ Params) (any, error) {
	if AnyOf(Contains("getPreferences"), Contains("systemProperties"))(method) {
		return OK(), nil
	}
	return NewStub("", method), nil
}

// DBResult is a put/merge result entry.
type DBResult struct {
	ID  string `json:"id"`
	Rev int    `json:"rev"`
}

// DBFindResult is the find response.
type DBFindResult struct {
	Reply
	Results []DBResult `json:"results"`
}

// DBCountResult is the del response.
type DBCountResult struct {
	Reply
	Count int `json:"count"`
}

// DBService is a stub document store: nothing is kept, finds are empty and
// writes return a synthesized id.
type DBService struct {
	Now func() time.Time
}

func (d DBService) Name() string { return DBName }

func (d DBService) Handle(method string, p Params) (any, error) {
	var t MethodTable
	t.On("find", Contains("find"), d.find).
		On("put", AnyOf(Contains("put"), Contains("merge")), d.put).
		On("del", Contains("del"), d.del)
	return t.Dispatch(method, p)
}

func (d DBService) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d DBService) find(string, Params) (any, error) {
	return DBFindResult{Reply: OK(), Results: []DBResult{}}, nil
}

func (d DBService) put(string, Params) (any, error) {
	id := fmt.Sprintf("stub-id-%d", d.now().UnixMilli())
	return DBFindResult{Reply: OK(), Results: []DBResult{{ID: id, Rev: 1}}}, nil
}

func (d DBService) del(string, Params) (any, error) {
	return DBCountResult{Reply: OK(), Count: 0}, nil
}

// AudioService accepts every call.
type AudioService struct{}

func (AudioService) Name() string { return AudioName }

func (AudioService) Handle(string, Params) (any, error) { return OK(), nil }

// BatteryStatus is the batteryStatus response.
type BatteryStatus struct {
	Reply
	Percent  int  `json:"percent"`
	Charging bool `json:"charging"`
}

// PowerService reports a full, unplugged battery.
type PowerService struct{}

func (PowerService) Name() string { return PowerName }

func (PowerService) Handle(method string, _ Params) (any, error) {
	if Contains("batteryStatus")(method) {
		return BatteryStatus{Reply: OK(), Percent: 100, Charging: false}, nil
	}
	return NewStub("", method), nil
}

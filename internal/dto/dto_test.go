package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sensorlog/internal/model"
	"sensorlog/internal/viewmodel"
)

func TestMeasurementInfo_MarshalJSON(t *testing.T) {
	m := model.NewAccelerationMeasurement(time.Date(2025, 6, 15, 14, 30, 5, 0, time.Local).UnixMilli(), 0.1, 0.2, 9.8)
	m.ID = 7

	data, err := json.Marshal(NewMeasurementInfo(m))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		`"id":7`,
		`"sensorType":"ACCELEROMETER"`,
		`"time":"15.06.2025 14:30:05"`,
		`"accelerationX":0.100`,
		`"magnitude":9.803`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "latitude") {
		t.Errorf("Accelerometer record should not carry coordinates: %s", out)
	}
}

func TestMeasurementInfo_Coordinates(t *testing.T) {
	data, err := json.Marshal(NewMeasurementInfo(model.NewGPSMeasurement(0, 52.2297, 21.0122)))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"latitude":52.229700`) || !strings.Contains(out, `"longitude":21.012200`) {
		t.Errorf("Expected 6-decimal coordinates in %s", out)
	}
	if strings.Contains(out, "magnitude") {
		t.Errorf("GPS record should have no magnitude: %s", out)
	}
}

func TestNewDashboardInfo(t *testing.T) {
	info := NewDashboardInfo(viewmodel.DashboardState{
		TotalCount:             1,
		Acceleration:           &model.Acceleration{X: 3, Y: 4, Z: 0},
		CollectingAcceleration: true,
	})

	if info.Measurements == nil || len(info.Measurements) != 0 {
		t.Error("Expected an empty measurement list")
	}
	if info.Location != nil {
		t.Error("Expected no location")
	}
	if info.Acceleration == nil || info.Acceleration.Magnitude != 5 {
		t.Errorf("Expected magnitude 5, got %+v", info.Acceleration)
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"location":null`) {
		t.Errorf("Expected null location in %s", data)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("Healthy state should carry no error: %s", data)
	}
}

func TestStateErrorsAreExposed(t *testing.T) {
	cause := fmt.Errorf("measurements: %w: %w", viewmodel.ErrQueryFailed, errors.New("disk gone"))

	dash := NewDashboardInfo(viewmodel.DashboardState{Err: cause})
	if dash.Error != "measurements: live query failed: disk gone" {
		t.Errorf("Unexpected dashboard error %q", dash.Error)
	}

	hist := NewHistoryInfo(viewmodel.HistoryState{Filter: viewmodel.FilterGPS, Err: cause})
	data, err := json.Marshal(hist)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"error":"measurements: live query failed: disk gone"`) {
		t.Errorf("Expected error in %s", data)
	}
}

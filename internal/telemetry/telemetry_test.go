package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInertial_Keys(t *testing.T) {
	b, err := EncodeInertial(InertialSample{
		Accel: [3]float64{0, 0, 1},
		Gyro:  [3]float64{0.5, 0, 0},
		Mag:   [3]float64{10, 20, 30},
		Temp:  24.5,
	})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	want := map[string]interface{}{
		"accel": []interface{}{0.0, 0.0, 1.0},
		"gyro":  []interface{}{0.5, 0.0, 0.0},
		"mag":   []interface{}{10.0, 20.0, 30.0},
		"temp":  24.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("inertial json mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeScan(t *testing.T) {
	b, err := EncodeScan(RangeScan{{Angle: 90, Distance: 1500.25}, {Angle: 180.5, Distance: 20}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"angle":90,"distance":1500.25},{"angle":180.5,"distance":20}]`, string(b))

	b, err = EncodeScan(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestRangeScanDistances(t *testing.T) {
	s := RangeScan{{Angle: 1, Distance: 2}, {Angle: 3, Distance: 4}}
	assert.Equal(t, []float64{2, 4}, s.Distances())
}

package pose_test

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"bodytrack/pkg/pose"
)

// Estimator output captured from a live session; note the ragged column
// padding and the trailing space before each closing bracket.
const capturedPayload = "[[[251.86478     77.78895      0.7667822 ]\n  [252.51468     95.317856     0.876728  ]\n  [240.80292     95.322365     0.8040645 ]\n  [232.37624    116.77977      0.8273126 ]\n  [236.22884    107.00365      0.5796813 ]\n  [266.7548      95.29869      0.786159  ]\n  [273.3028     115.452614     0.800534  ]\n  [268.09955    106.35879      0.7154094 ]\n  [251.82945    134.94682      0.7444093 ]\n  [242.13077    134.29881      0.7457033 ]\n  [236.90192    163.49742      0.8655727 ]\n  [241.44772    190.79929      0.83191615]\n  [259.63016    136.23273      0.69610536]\n  [252.50996    164.16794      0.8566567 ]\n  [258.32214    190.13763      0.8514975 ]\n  [249.88536     75.206375     0.7748856 ]\n  [254.43979     75.18927      0.7664361 ]\n  [246.62242     75.84186      0.54281354]\n  [258.3567      75.21359      0.73365533]\n  [257.71597    195.97488      0.77183896]\n  [262.24216    195.31381      0.8010959 ]\n  [257.69754    192.08958      0.6295021 ]\n  [238.8438     196.64983      0.71956825]\n  [236.24486    195.36232      0.81978583]\n  [243.402      194.03827      0.6732243 ]]]"

func gridRows(t *testing.T, payload string) [][]string {
	t.Helper()
	body := strings.TrimSuffix(strings.TrimPrefix(payload, "[[["), "]]]")
	var rows [][]string
	for _, row := range strings.Split(body, "]\n  [") {
		rows = append(rows, strings.Fields(row))
	}
	if len(rows) != pose.JointCount {
		t.Fatalf("fixture has %d rows", len(rows))
	}
	return rows
}

func expectGrid(t *testing.T, got pose.JointSet, rows [][]string, divisor float64) {
	t.Helper()
	for i, row := range rows {
		var want [3]float64
		for k, tok := range row {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				t.Fatalf("fixture row %d: %v", i, err)
			}
			want[k] = v / divisor
		}
		if got[i].X != want[0] || got[i].Y != want[1] || got[i].Z != want[2] {
			t.Fatalf("joint %d: got %v want %v", i, got[i], want)
		}
	}
}

func TestParseTPose(t *testing.T) {
	parser := pose.NewParser(pose.DefaultScale())
	joints, err := parser.Parse(pose.TPose, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	expectGrid(t, joints, gridRows(t, pose.TPose), 85.0)
}

func TestParseCapturedPayload(t *testing.T) {
	parser := pose.NewParser(pose.DefaultScale())
	joints, err := parser.Parse(capturedPayload, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	expectGrid(t, joints, gridRows(t, capturedPayload), 85.0)
}

func TestParseAppliesDepthOffset(t *testing.T) {
	parser := pose.NewParser(pose.DefaultScale())
	joints, err := parser.Parse(pose.TPose, 2)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	expectGrid(t, joints, gridRows(t, pose.TPose), 95.0)
}

func TestParseAcceptsSpaceSeparatedRows(t *testing.T) {
	flat := strings.ReplaceAll(capturedPayload, "]\n  [", "]  [")
	parser := pose.NewParser(pose.DefaultScale())
	a, err := parser.Parse(flat, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	b, err := parser.Parse(capturedPayload, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a != b {
		t.Fatalf("row separator changed the result")
	}
}

func TestParseAcceptsDecimalForms(t *testing.T) {
	rows := strings.Split(strings.TrimSuffix(strings.TrimPrefix(pose.TPose, "[[["), "]]]"), "]\n  [")
	rows[0] = "-8.5e+01 +17. .5E1"
	payload := "[[[" + strings.Join(rows, "]\n  [") + "]]]"

	joints, err := pose.NewParser(pose.Scale{Base: 85}).Parse(payload, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if want := (pose.Vec3{X: -1, Y: 0.2, Z: 5.0 / 85}); joints[0] != want {
		t.Fatalf("joint 0 = %v, want %v", joints[0], want)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	parser := pose.NewParser(pose.Scale{Base: 40, Gain: 2})
	first, err := parser.Parse(pose.TPose, 1.5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := parser.Parse(pose.TPose, 1.5)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if again != first {
			t.Fatalf("parse %d differs from first result", i)
		}
	}
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	rows := strings.Split(strings.TrimSuffix(strings.TrimPrefix(pose.TPose, "[[["), "]]]"), "]\n  [")
	build := func(rows []string) string {
		return "[[[" + strings.Join(rows, "]\n  [") + "]]]"
	}
	replaceRow := func(i int, row string) string {
		cp := append([]string(nil), rows...)
		cp[i] = row
		return build(cp)
	}

	def := pose.DefaultScale()
	cases := []struct {
		name    string
		payload string
		scale   pose.Scale
	}{
		{name: "two tokens", payload: replaceRow(3, "1.0 2.0"), scale: def},
		{name: "four tokens", payload: replaceRow(24, "1.0 2.0 3.0 4.0"), scale: def},
		{name: "non numeric", payload: replaceRow(0, "1.0 abc 3.0"), scale: def},
		{name: "not finite", payload: replaceRow(7, "1.0 NaN 3.0"), scale: def},
		{name: "hex float", payload: replaceRow(0, "0x1p3 2.0 3.0"), scale: def},
		{name: "digit separator", payload: replaceRow(0, "1_0 2.0 3.0"), scale: def},
		{name: "infinity", payload: replaceRow(5, "1.0 2.0 Inf"), scale: def},
		{name: "overflow", payload: replaceRow(5, "1.0 2.0 1e999"), scale: def},
		{name: "too few rows", payload: build(rows[:24]), scale: def},
		{name: "too many rows", payload: build(append(append([]string(nil), rows...), "1 2 3")), scale: def},
		{name: "missing brackets", payload: strings.TrimPrefix(pose.TPose, "["), scale: def},
		{name: "empty", payload: "", scale: def},
		{name: "zero divisor", payload: pose.TPose, scale: pose.Scale{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			joints, err := pose.NewParser(tc.scale).Parse(tc.payload, 0)
			if err == nil {
				t.Fatalf("expected decode failure")
			}
			if !errors.Is(err, pose.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
			if joints != (pose.JointSet{}) {
				t.Fatalf("expected no partial joint set, got %v", joints)
			}
		})
	}
}

func TestFormatPayloadRoundTrip(t *testing.T) {
	var joints pose.JointSet
	for i := range joints {
		f := float64(i)
		joints[i] = pose.Vec3{X: 1.25 + f*0.1, Y: -0.5 + f*0.07, Z: 0.003 * f}
	}
	scale := pose.DefaultScale()

	for _, depth := range []float64{0, 0.75, 3} {
		payload := pose.FormatPayload(joints, scale, depth)
		got, err := pose.NewParser(scale).Parse(payload, depth)
		if err != nil {
			t.Fatalf("depth %v: parse failed: %v", depth, err)
		}
		for i := range joints {
			d := got[i].Sub(joints[i])
			if math.Abs(d.X) > 1e-4 || math.Abs(d.Y) > 1e-4 || math.Abs(d.Z) > 1e-4 {
				t.Fatalf("depth %v joint %d: got %v want %v", depth, i, got[i], joints[i])
			}
		}
	}
}

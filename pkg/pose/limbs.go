package pose

// LimbKey names a limb segment by the two joint indices forming its origin
// and endpoint.
type LimbKey struct {
	Name string
	A    int
	B    int
}

// The foot entries intentionally pair heel and big toe rather than adjacent
// indices.
var limbKeys = [...]LimbKey{
	{Name: "neck", A: 0, B: 1},
	{Name: "leftShoulder", A: 1, B: 2},
	{Name: "upperLeftArm", A: 2, B: 3},
	{Name: "lowerLeftArm", A: 3, B: 4},
	{Name: "rightShoulder", A: 1, B: 5},
	{Name: "upperRightArm", A: 5, B: 6},
	{Name: "lowerRightArm", A: 6, B: 7},
	{Name: "chest", A: 1, B: 8},
	{Name: "leftHip", A: 8, B: 9},
	{Name: "leftThigh", A: 9, B: 10},
	{Name: "leftCalf", A: 10, B: 11},
	{Name: "rightHip", A: 8, B: 12},
	{Name: "rightThigh", A: 12, B: 13},
	{Name: "rightCalf", A: 13, B: 14},
	{Name: "leftFoot", A: 24, B: 22},
	{Name: "rightFoot", A: 21, B: 19},
}

// LimbCount is the number of entries in the limb table.
const LimbCount = len(limbKeys)

// LimbKeys returns a copy of the limb table in its fixed order.
func LimbKeys() []LimbKey {
	out := make([]LimbKey, LimbCount)
	copy(out, limbKeys[:])
	return out
}

// LookupLimb finds a limb by name.
func LookupLimb(name string) (LimbKey, bool) {
	for _, key := range limbKeys {
		if key.Name == name {
			return key, true
		}
	}
	return LimbKey{}, false
}

// Segment is a limb resolved against a JointSet.
type Segment struct {
	Name   string `json:"name"`
	Origin Vec3   `json:"origin"`
	End    Vec3   `json:"end"`
	Vector Vec3   `json:"vector"`
}

// Segments resolves every limb in table order.
func Segments(j JointSet) []Segment {
	out := make([]Segment, 0, LimbCount)
	for _, key := range limbKeys {
		origin := j[key.A]
		end := j[key.B]
		out = append(out, Segment{
			Name:   key.Name,
			Origin: origin,
			End:    end,
			Vector: end.Sub(origin),
		})
	}
	return out
}

package actuator

import (
	"encoding/json"
)

// RoArm JSON command codes
const (
	cmdReset     = 100
	cmdMoveXYZ   = 104
	cmdState     = 105
	cmdFeedback  = 1051
	cmdLight     = 114
	cmdJoint     = 121
	cmdAllJoints = 122
)

// Joint indexes used by the single joint command
const (
	JointBase     = 1
	JointShoulder = 2
	JointElbow    = 3
	JointHand     = 4
)

type resetCommand struct {
	T int `json:"T"`
}

type jointCommand struct {
	T     int     `json:"T"`
	Joint int     `json:"joint"`
	Angle float64 `json:"angle"`
	Speed int     `json:"spd"`
	Acc   int     `json:"acc"`
}

type xyzCommand struct {
	T     int     `json:"T"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Hand  float64 `json:"t"`
	Speed float64 `json:"spd"`
}

type jointsCommand struct {
	T        int     `json:"T"`
	Base     float64 `json:"b"`
	Shoulder float64 `json:"s"`
	Elbow    float64 `json:"e"`
	Hand     float64 `json:"h"`
	Speed    int     `json:"spd"`
	Acc      int     `json:"acc"`
}

type lightCommand struct {
	T   int `json:"T"`
	LED int `json:"led"`
}

func encode(v any) []byte {
	// command structs only hold numbers, Marshal cannot fail
	data, _ := json.Marshal(v)
	return data
}

func resetCmd() []byte { return encode(resetCommand{T: cmdReset}) }

func stateCmd() []byte { return encode(resetCommand{T: cmdState}) }

func jointCmd(joint int, angle float64, speed, acc int) []byte {
	return encode(jointCommand{T: cmdJoint, Joint: joint, Angle: angle, Speed: speed, Acc: acc})
}

func moveXYZCmd(p Position, hand, speed float64) []byte {
	return encode(xyzCommand{T: cmdMoveXYZ, X: p.X, Y: p.Y, Z: p.Z, Hand: hand, Speed: speed})
}

func jointsCmd(pose Pose, speed, acc int) []byte {
	return encode(jointsCommand{
		T: cmdAllJoints, Base: pose.Base, Shoulder: pose.Shoulder, Elbow: pose.Elbow, Hand: pose.Hand,
		Speed: speed, Acc: acc,
	})
}

func lightCmd(level int) []byte {
	return encode(lightCommand{T: cmdLight, LED: level})
}

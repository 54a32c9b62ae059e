package inference

// DefaultModel is the Live model the visualizer talks to.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// SetTension is the only function the control loop acts on.
const SetTension = "setTension"

// TensionArg is the numeric argument of SetTension.
const TensionArg = "tension"

// SystemInstruction tells the model how to turn hand gestures into tension.
const SystemInstruction = `You are a vision-to-motion controller driving a 3D particle system in real time from a live video stream of a user.

Look only at the user's hands and upper-body energy and estimate one number, "tension", from 0.0 to 1.0:

0.0 means relaxed and expanded: hands wide open, arms spread, palms forward or up, open body language.
1.0 means tense and contracted: fists clenched, hands clasped or held close together, arms crossed or tight to the body. Fast jerky movement may also raise tension.
Between the two, interpolate from the distance between the hands and how open the fingers are.

Call the setTension tool continuously with the latest value and favor frequent updates. Do not speak unless a system error occurs.`

// SetTensionDeclaration is the tool offered to the model at connect.
var SetTensionDeclaration = FunctionDeclaration{
	Name:        SetTension,
	Description: "Sets the tension level of the particle system based on user hand gestures.",
	Params: map[string]Param{
		TensionArg: {
			Type:        TypeNumber,
			Description: "A value between 0.0 (relaxed/open) and 1.0 (tense/closed).",
			Required:    true,
		},
	},
}

// DefaultSetup is the stream configuration for model.
func DefaultSetup(model string) Setup {
	if model == "" {
		model = DefaultModel
	}
	return Setup{
		Model:             model,
		SystemInstruction: SystemInstruction,
		Functions:         []FunctionDeclaration{SetTensionDeclaration},
	}
}

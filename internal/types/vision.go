package types

// AppType is the category of a detected application.
type AppType string

const (
	AppIDE           AppType = "IDE"
	AppTerminal      AppType = "Terminal"
	AppBrowser       AppType = "Browser"
	AppVideoCall     AppType = "VideoCall"
	AppChat          AppType = "Chat"
	AppEmail         AppType = "Email"
	AppDocumentTool  AppType = "DocumentTool"
	AppMediaPlayer   AppType = "MediaPlayer"
	AppSystemUtility AppType = "SystemUtility"
	AppUnknown       AppType = "Unknown"
)

// WindowState describes how a detected app window is presented.
type WindowState string

const (
	WindowFullScreen WindowState = "FullScreen"
	WindowMaximized  WindowState = "Maximized"
	WindowNormal     WindowState = "Normal"
	WindowMinimized  WindowState = "Minimized"
)

// DetectedApp is one application the vision classifier believes is visible.
type DetectedApp struct {
	Type        AppType     `json:"type"`
	Name        string      `json:"name,omitempty"`
	Confidence  float64     `json:"confidence"`
	Region      BoundingBox `json:"region"`
	WindowState WindowState `json:"window_state"`
}

// Activity is the closed set of user activities the classifier emits.
type Activity string

const (
	ActivityCoding           Activity = "Coding"
	ActivityVideoConference  Activity = "VideoConferencing"
	ActivityWebBrowsing      Activity = "WebBrowsing"
	ActivityDocumentation    Activity = "Documentation"
	ActivityCommunication    Activity = "Communication"
	ActivityProductivity     Activity = "Productivity"
	ActivityEntertainment    Activity = "Entertainment"
	ActivityGaming           Activity = "Gaming"
	ActivitySystemManagement Activity = "SystemManagement"
	ActivityIdle             Activity = "Idle"
	ActivityUnknown          Activity = "Unknown"
)

// EvidenceType labels where a piece of classification evidence came from.
type EvidenceType string

const (
	EvidenceAppPresence EvidenceType = "ApplicationPresence"
	EvidenceURLBar      EvidenceType = "URLBar"
	EvidenceTextPattern EvidenceType = "TextPattern"
	EvidenceVisualCue   EvidenceType = "VisualCue"
	EvidenceWindowTitle EvidenceType = "WindowTitle"
)

// Evidence is one weighted observation supporting an activity.
type Evidence struct {
	Type        EvidenceType `json:"type"`
	Description string       `json:"description"`
	Confidence  float64      `json:"confidence"`
	Weight      float64      `json:"weight"`
}

// ActivityClassification is the classifier's activity verdict.
type ActivityClassification struct {
	Primary    Activity   `json:"primary"`
	Secondary  []Activity `json:"secondary,omitempty"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence,omitempty"`
}

// VisualElement is a non-text cue the classifier found (icons, video grids,
// progress bars).
type VisualElement struct {
	Kind       string      `json:"kind"`
	Box        BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// ContextIndicator is a cross-modality hint emitted for downstream
// correlation.
type ContextIndicator struct {
	Type       EvidenceType `json:"type"`
	Value      string       `json:"value"`
	Confidence float64      `json:"confidence"`
}

// Theme is the inferred UI theme of the screen.
type Theme string

const (
	ThemeDark    Theme = "Dark"
	ThemeLight   Theme = "Light"
	ThemeUnknown Theme = "Unknown"
)

// ScreenAnalysis is the vision classifier's full verdict for one frame.
type ScreenAnalysis struct {
	DetectedApps   []DetectedApp          `json:"detected_apps"`
	Activity       ActivityClassification `json:"activity"`
	VisualElements []VisualElement        `json:"visual_elements,omitempty"`
	Indicators     []ContextIndicator     `json:"context_indicators,omitempty"`
	Layout         ScreenLayout           `json:"layout"`
	Theme          Theme                  `json:"theme"`
	ProcessingMs   int64                  `json:"processing_time_ms"`
}

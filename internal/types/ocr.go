package types

// TextType is the coarse semantic classification of a text block.
type TextType string

const (
	TextUIElement       TextType = "UIElement"
	TextCodeSnippet     TextType = "CodeSnippet"
	TextDocumentContent TextType = "DocumentContent"
	TextErrorMessage    TextType = "ErrorMessage"
	TextChatMessage     TextType = "ChatMessage"
	TextEmailContent    TextType = "EmailContent"
)

// TextAlignment describes how a line sits within its band.
type TextAlignment string

const (
	AlignLeft   TextAlignment = "Left"
	AlignCenter TextAlignment = "Center"
	AlignRight  TextAlignment = "Right"
)

// Word is one recognized token from the word-level OCR pass.
// LineID and ParagraphID key into OcrResult.Lines and OcrResult.Paragraphs.
type Word struct {
	Text         string      `json:"text"`
	Box          BoundingBox `json:"bounding_box"`
	Confidence   float64     `json:"confidence"`
	FontSize     int         `json:"font_size,omitempty"`
	LineID       string      `json:"line_id"`
	ParagraphID  string      `json:"paragraph_id"`
	SemanticType TextType    `json:"semantic_type"`
}

// Line groups words sharing a vertical band. Its box is the union of its
// words' boxes.
type Line struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Box           BoundingBox   `json:"bounding_box"`
	AvgConfidence float64       `json:"average_confidence"`
	Alignment     TextAlignment `json:"text_alignment"`
	IsHeading     bool          `json:"is_heading"`
	FontSize      int           `json:"font_size,omitempty"`
}

// Paragraph groups vertically adjacent lines. Its box is the union of its
// lines' boxes; ReadingOrder is top-to-bottom, left-to-right within a band.
type Paragraph struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	Box          BoundingBox `json:"bounding_box"`
	LineIDs      []string    `json:"lines"`
	SemanticType TextType    `json:"semantic_type"`
	ReadingOrder int         `json:"reading_order"`
}

// TextRegion assigns paragraphs to a layout region of the screen.
type TextRegion struct {
	ID           string      `json:"id"`
	RegionType   RegionType  `json:"region_type"`
	Box          BoundingBox `json:"bounding_box"`
	ParagraphIDs []string    `json:"paragraphs"`
}

// LayoutRegion is one area of the screen layout map the OCR engine
// partitions paragraphs into.
type LayoutRegion struct {
	ID         string      `json:"id"`
	RegionType RegionType  `json:"region_type"`
	Box        BoundingBox `json:"bounding_box"`
}

// ScreenLayout is the coarse layout map for one frame.
type ScreenLayout struct {
	Resolution    [2]int         `json:"screen_resolution"`
	EffectiveArea BoundingBox    `json:"effective_area"`
	Regions       []LayoutRegion `json:"regions"`
}

// OcrResult is the full hierarchical extraction for one frame.
// ConfidenceMap is keyed by "overall" plus each semantic type present.
type OcrResult struct {
	RawText       string             `json:"raw_text"`
	Words         []Word             `json:"words"`
	Lines         []Line             `json:"lines"`
	Paragraphs    []Paragraph        `json:"paragraphs"`
	Regions       []TextRegion       `json:"regions"`
	Layout        ScreenLayout       `json:"layout"`
	ConfidenceMap map[string]float64 `json:"confidence_map"`
	ProcessingMs  int64              `json:"processing_time_ms"`
}

// LineByID returns the line with the given id, or nil.
func (r *OcrResult) LineByID(id string) *Line {
	for i := range r.Lines {
		if r.Lines[i].ID == id {
			return &r.Lines[i]
		}
	}
	return nil
}

// ParagraphByID returns the paragraph with the given id, or nil.
func (r *OcrResult) ParagraphByID(id string) *Paragraph {
	for i := range r.Paragraphs {
		if r.Paragraphs[i].ID == id {
			return &r.Paragraphs[i]
		}
	}
	return nil
}

// Package fileproc implements spec §4.3's File Processor: classify an
// uploaded file by type, run the type-specific extraction branch (vision,
// PDF, ASR, or plain text decode), hand the resulting text to the
// ingestion pipeline, and apply the two auto-creation rules (inventory
// photos become Items, invoice photos become Expenses).
package fileproc

import (
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/ingest"
	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/pkg/embeddings"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// Class is one of the eleven file/image classes spec §4.3 names.
type Class string

const (
	ClassInvoice           Class = "invoice"
	ClassOfficialDocument  Class = "official_document"
	ClassPersonalPhoto     Class = "personal_photo"
	ClassInfoImage         Class = "info_image"
	ClassNote              Class = "note"
	ClassProjectFile       Class = "project_file"
	ClassPriceList         Class = "price_list"
	ClassBusinessCard      Class = "business_card"
	ClassInventoryItem     Class = "inventory_item"
	ClassPDFDocument       Class = "pdf_document"
	ClassAudioRecording    Class = "audio_recording"
)

// Classes lists every class the classifier may return, in the order
// spec §4.3 names them.
var Classes = []string{
	string(ClassInvoice), string(ClassOfficialDocument), string(ClassPersonalPhoto),
	string(ClassInfoImage), string(ClassNote), string(ClassProjectFile),
	string(ClassPriceList), string(ClassBusinessCard), string(ClassInventoryItem),
	string(ClassPDFDocument), string(ClassAudioRecording),
}

// BarcodeScanner decodes a barcode from raw image bytes, if present. No
// barcode-decoding library appears anywhere in the example pack; the
// default used by [New] is a no-op, and a real scanner can be injected via
// [WithBarcodeScanner] once one is wired in (see DESIGN.md).
type BarcodeScanner interface {
	Scan(data []byte) (code, symbology string, ok bool)
}

type noopScanner struct{}

func (noopScanner) Scan(data []byte) (string, string, bool) { return "", "", false }

// Deps are the collaborators the file processor needs.
type Deps struct {
	Gateway *llmgateway.Gateway
	Graph   *graphsvc.Service
	Ingest  *ingest.Service
	Vectors vectorstore.Store
	Embed   embeddings.Provider

	// WhisperServerURL points at a running whisper.cpp HTTP server
	// (see whisperInfer in asr.go); empty disables audio ingestion.
	WhisperServerURL string
}

// Service runs the file-processing pipeline.
type Service struct {
	deps    Deps
	scanner BarcodeScanner
}

// Option configures a [Service].
type Option func(*Service)

// WithBarcodeScanner overrides the default no-op [BarcodeScanner].
func WithBarcodeScanner(s BarcodeScanner) Option {
	return func(svc *Service) { svc.scanner = s }
}

// New returns a Service backed by deps.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{deps: deps, scanner: noopScanner{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Request is the input to [Service.ProcessFile].
type Request struct {
	Filename  string
	Data      []byte
	Mime      string
	SessionID string
}

// Result summarises what the pipeline did with one file.
type Result struct {
	Class          string           `json:"class"`
	IngestResult   *ingest.Result   `json:"ingest_result,omitempty"`
	CreatedItem    string           `json:"created_item,omitempty"`
	SimilarItems   []string         `json:"similar_items,omitempty"`
	CreatedExpense string           `json:"created_expense,omitempty"`
	Barcode        string           `json:"barcode,omitempty"`
}

// classPrompts are the type-specific vision prompt templates spec §4.3
// calls for ("per-class template"). Each asks for structured JSON so
// [analysisToText] can render a readable Arabic+English bilingual summary
// without losing exact reference numbers or Arabic names.
var classPrompts = map[string]string{
	string(ClassInvoice): "This is an invoice or receipt. Extract as JSON: " +
		`{"vendor":"...","total":0.0,"currency":"...","date":"YYYY-MM-DD","items":[{"name":"...","price":0.0}],"name_ar":"..."}`,
	string(ClassOfficialDocument): "This is an official document. Extract as JSON: " +
		`{"title":"...","issuer":"...","reference_number":"...","date":"YYYY-MM-DD","summary":"...","name_ar":"..."}`,
	string(ClassPersonalPhoto): "This is a personal photo. Describe as JSON: " +
		`{"description":"...","people":["..."],"location":"..."}`,
	string(ClassInfoImage): "This is an informational image (sign, screenshot, whiteboard). Extract as JSON: " +
		`{"text_content":"...","summary":"..."}`,
	string(ClassNote): `Transcribe the handwritten or typed note as JSON {"content":"..."}.`,
	string(ClassProjectFile): "This is a project-related file. Extract as JSON: " +
		`{"project":"...","summary":"...","action_items":["..."]}`,
	string(ClassPriceList): "This is a price list. Extract as JSON: " +
		`{"items":[{"name":"...","price":0.0,"name_ar":"..."}]}`,
	string(ClassBusinessCard): "This is a business card. Extract as JSON: " +
		`{"name":"...","name_ar":"...","company":"...","title":"...","phone":"...","email":"..."}`,
	string(ClassInventoryItem): "This is a photo of an item for inventory. Extract as JSON: " +
		`{"name":"...","name_ar":"...","category":"...","brand":"...","condition":"...","quantity":1}`,
}

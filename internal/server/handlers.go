package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/ironsheep/retina-explain-mcp/internal/analysis"
	"github.com/ironsheep/retina-explain-mcp/internal/imaging"
	"github.com/ironsheep/retina-explain-mcp/internal/inference"
	"github.com/ironsheep/retina-explain-mcp/internal/nn"
	"github.com/ironsheep/retina-explain-mcp/internal/ocr"
	"github.com/ironsheep/retina-explain-mcp/internal/store"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "scan_explain").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Scans
	case "scan_load":
		return s.handleScanLoad(args)
	case "scan_classify":
		return s.handleScanClassify(ctx, args)
	case "scan_explain":
		return s.handleScanExplain(ctx, args)
	case "scan_overlay_crop":
		return s.handleScanOverlayCrop(ctx, args)
	case "scan_read_annotations":
		return s.handleScanReadAnnotations(args)
	case "model_info":
		return s.handleModelInfo()

	// Patients
	case "patient_add":
		return s.handlePatientAdd(ctx, args)
	case "patient_get":
		return s.handlePatientGet(ctx, args)
	case "patient_search":
		return s.handlePatientSearch(ctx, args)
	case "patient_update":
		return s.handlePatientUpdate(ctx, args)
	case "patient_delete":
		return s.handlePatientDelete(ctx, args)

	// Analyses
	case "analysis_list":
		return s.handleAnalysisList(ctx, args)
	case "analysis_get":
		return s.handleAnalysisGet(ctx, args)
	case "analysis_compare":
		return s.handleAnalysisCompare(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func (s *Server) loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	scan, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return scan.Image, nil
}

func (s *Server) requireAnalyzer() error {
	if s.analyzer == nil {
		return fmt.Errorf("no model loaded")
	}
	return nil
}

// === Scan Handlers ===

type scanPathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleScanLoad(args json.RawMessage) (interface{}, error) {
	var a scanPathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return imaging.LoadScanInfo(s.cache, a.Path)
}

type scanClassifyArgs struct {
	Path    string `json:"path"`
	Backend string `json:"backend"`
}

func (s *Server) handleScanClassify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a scanClassifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	switch a.Backend {
	case "", "gradcam":
		if err := s.requireAnalyzer(); err != nil {
			return nil, err
		}
		return s.analyzer.Classify(ctx, img)
	case "onnx":
		return s.predict(img)
	}
	return nil, fmt.Errorf("unknown backend: %s", a.Backend)
}

func (s *Server) predict(img image.Image) (*inference.Prediction, error) {
	if s.predictor == nil {
		return nil, inference.ErrUnavailable
	}
	size := s.predictor.InputSize()
	if size <= 0 {
		size = imaging.DefaultInputSize
	}
	input, err := imaging.ToInputTensor(img, size)
	if err != nil {
		return nil, err
	}
	return s.predictor.Predict(nn.Values(input))
}

type scanExplainArgs struct {
	Path             string   `json:"path"`
	Target           *int     `json:"target"`
	Alpha            *float64 `json:"alpha"`
	HotspotThreshold *float64 `json:"hotspot_threshold"`
	BoxColor         string   `json:"box_color"`
	PatientID        string   `json:"patient_id"`
	Save             bool     `json:"save"`
	Report           string   `json:"report"`
}

type scanExplainResult struct {
	*analysis.Result
	Hotspot *imaging.Hotspot `json:"hotspot,omitempty"`
}

func (s *Server) handleScanExplain(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a scanExplainArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.requireAnalyzer(); err != nil {
		return nil, err
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.analyzer.Analyze(ctx, analysis.Request{
		Image:     img,
		PatientID: a.PatientID,
		Alpha:     a.Alpha,
		Target:    a.Target,
		Save:      a.Save,
		Report:    a.Report,
	})
	if err != nil {
		return nil, err
	}
	out := scanExplainResult{Result: res}
	if a.HotspotThreshold != nil {
		annotated, hs, err := imaging.AnnotateHotspot(res.Image, res.Map, *a.HotspotThreshold, a.BoxColor)
		if err != nil {
			return nil, err
		}
		if res.Overlay, err = imaging.EncodePNGBase64(annotated); err != nil {
			return nil, err
		}
		out.Hotspot = &hs
	}
	return out, nil
}

type scanOverlayCropArgs struct {
	Path   string   `json:"path"`
	Region string   `json:"region"`
	X1     *int     `json:"x1"`
	Y1     *int     `json:"y1"`
	X2     *int     `json:"x2"`
	Y2     *int     `json:"y2"`
	Scale  float64  `json:"scale"`
	Alpha  *float64 `json:"alpha"`
	Target *int     `json:"target"`
}

type scanOverlayCropResult struct {
	*imaging.EncodedImage
	PredictedClass   string `json:"predicted_class"`
	ExplainedClass   string `json:"explained_class"`
	GradCAMAvailable bool   `json:"gradcam_available"`
}

func (s *Server) handleScanOverlayCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a scanOverlayCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 2.0
	}
	coords := a.X1 != nil && a.Y1 != nil && a.X2 != nil && a.Y2 != nil
	if a.Region == "" && !coords {
		return nil, fmt.Errorf("either region or x1, y1, x2, y2 is required")
	}
	if err := s.requireAnalyzer(); err != nil {
		return nil, err
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.analyzer.Analyze(ctx, analysis.Request{Image: img, Alpha: a.Alpha, Target: a.Target})
	if err != nil {
		return nil, err
	}

	var crop *imaging.EncodedImage
	if a.Region != "" {
		crop, err = imaging.CropRegion(res.Image, a.Region, a.Scale)
	} else {
		crop, err = imaging.Crop(res.Image, *a.X1, *a.Y1, *a.X2, *a.Y2, a.Scale)
	}
	if err != nil {
		return nil, err
	}
	return scanOverlayCropResult{
		EncodedImage:     crop,
		PredictedClass:   res.PredictedClass,
		ExplainedClass:   res.ExplainedClass,
		GradCAMAvailable: res.GradCAMAvailable,
	}, nil
}

type scanReadAnnotationsArgs struct {
	Path     string `json:"path"`
	Region   string `json:"region"`
	Language string `json:"language"`
}

func (s *Server) handleScanReadAnnotations(args json.RawMessage) (interface{}, error) {
	var a scanReadAnnotationsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if a.Language == "" {
		a.Language = s.ocrLang
	}
	if a.Region == "" {
		return ocr.ExtractText(a.Path, a.Language)
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	r, err := imaging.RegionRect(a.Region, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	return ocr.ExtractTextFromRegion(img, r.Add(b.Min), a.Language)
}

type modelInfoResult struct {
	nn.Spec
	Demo          bool      `json:"demo"`
	WeightsPath   string    `json:"weights_path,omitempty"`
	Available     []nn.Spec `json:"available_models"`
	OCR           bool      `json:"ocr_available"`
	ONNX          bool      `json:"onnx_available"`
	ONNXSize      int       `json:"onnx_input_size,omitempty"`
	ServerVersion string    `json:"server_version"`
}

func (s *Server) handleModelInfo() (interface{}, error) {
	if err := s.requireAnalyzer(); err != nil {
		return nil, err
	}
	m := s.analyzer.Model()
	out := modelInfoResult{
		Spec:          m.Spec,
		Demo:          m.Demo,
		WeightsPath:   m.WeightsPath,
		Available:     nn.Specs(),
		OCR:           ocr.Available(),
		ONNX:          s.predictor != nil,
		ServerVersion: s.version,
	}
	if s.predictor != nil {
		out.ONNXSize = s.predictor.InputSize()
	}
	return out, nil
}

// === Patient Handlers ===

type patientAddArgs struct {
	FileNo    string `json:"file_no"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Notes     string `json:"notes"`
}

func (s *Server) handlePatientAdd(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a patientAddArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.patients.Add(ctx, &store.Patient{
		FileNo:    a.FileNo,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		BirthDate: a.BirthDate,
		Phone:     a.Phone,
		Email:     a.Email,
		Notes:     a.Notes,
	})
}

type idArgs struct {
	ID string `json:"id"`
}

func (s *Server) handlePatientGet(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.patients.Get(ctx, a.ID)
}

type patientSearchArgs struct {
	Query string `json:"query"`
}

type patientSearchResult struct {
	Count    int              `json:"count"`
	Patients []*store.Patient `json:"patients"`
}

func (s *Server) handlePatientSearch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a patientSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	found, err := s.patients.Search(ctx, a.Query)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []*store.Patient{}
	}
	return patientSearchResult{Count: len(found), Patients: found}, nil
}

type patientUpdateArgs struct {
	ID string `json:"id"`
	store.PatientUpdate
}

func (s *Server) handlePatientUpdate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a patientUpdateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.patients.Update(ctx, a.ID, a.PatientUpdate)
}

type patientDeleteResult struct {
	Deleted         string `json:"deleted"`
	AnalysesRemoved int    `json:"analyses_removed"`
}

func (s *Server) handlePatientDelete(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.patients.Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	n, err := s.analyses.DeleteByPatient(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return patientDeleteResult{Deleted: a.ID, AnalysesRemoved: n}, nil
}

// === Analysis Handlers ===

type analysisListArgs struct {
	PatientID     string `json:"patient_id"`
	IncludeImages bool   `json:"include_images"`
}

type analysisListResult struct {
	PatientID string                  `json:"patient_id"`
	Count     int                     `json:"count"`
	Analyses  []*store.AnalysisRecord `json:"analyses"`
}

func (s *Server) handleAnalysisList(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analysisListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, a.PatientID); err != nil {
		return nil, err
	}
	records, err := s.analyses.ListByPatient(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*store.AnalysisRecord{}
	}
	if !a.IncludeImages {
		for _, r := range records {
			r.OriginalPNG = ""
			r.OverlayPNG = ""
		}
	}
	return analysisListResult{PatientID: a.PatientID, Count: len(records), Analyses: records}, nil
}

func (s *Server) handleAnalysisGet(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.analyses.Get(ctx, a.ID)
}

type analysisCompareArgs struct {
	CurrentID string `json:"current_id"`
	PastID    string `json:"past_id"`
}

func (s *Server) handleAnalysisCompare(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analysisCompareArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.CurrentID == "" || a.PastID == "" {
		return nil, fmt.Errorf("current_id and past_id are required")
	}
	current, err := s.analyses.Get(ctx, a.CurrentID)
	if err != nil {
		return nil, err
	}
	past, err := s.analyses.Get(ctx, a.PastID)
	if err != nil {
		return nil, err
	}
	return analysis.Compare(current, past)
}

package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the OCT scan (PNG, JPEG or GIF)",
	}
}

func property(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func regionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Named region of the image",
		"enum": []string{
			"top-left", "top-right", "bottom-left", "bottom-right",
			"top-half", "bottom-half", "left-half", "right-half",
			"center", "fovea",
		},
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Scans
		{
			Name:        "scan_load",
			Description: "Load an OCT scan and return its dimensions, format and color depth. The decoded scan is cached for later tool calls.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": pathProperty(),
			}, "path"),
		},
		{
			Name:        "scan_classify",
			Description: "Classify an OCT scan and return the predicted class, its confidence and the probability of every class.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": pathProperty(),
				"backend": map[string]interface{}{
					"type":        "string",
					"description": "Classifier backend. \"onnx\" needs a server started with an ONNX model.",
					"enum":        []string{"gradcam", "onnx"},
					"default":     "gradcam",
				},
			}, "path"),
		},
		{
			Name:        "scan_explain",
			Description: "Classify an OCT scan and explain the decision with a Grad-CAM heatmap blended onto the scan. Returns saliency statistics and the composite as base64 PNG. When the explanation cannot be computed the heatmap is empty and gradcam_available is false.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":   pathProperty(),
				"target": property("integer", "Class index to explain. Defaults to the predicted class."),
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Heatmap opacity in [0,1]",
					"default":     0.5,
					"minimum":     0,
					"maximum":     1,
				},
				"hotspot_threshold": property("number", "When set, outline the region whose attention is at least this fraction of the peak"),
				"box_color":         property("string", "Hotspot box color as #RRGGBB. Default white"),
				"patient_id":        property("string", "Patient the scan belongs to"),
				"save":              property("boolean", "Store the result for patient_id"),
				"report":            property("string", "Report stored with the result; a clinical report is generated when empty"),
			}, "path"),
		},
		{
			Name:        "scan_overlay_crop",
			Description: "Explain an OCT scan and return a zoomed crop of the heatmap composite. Give either a named region or x1,y1,x2,y2 in composite pixels.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":   pathProperty(),
				"region": regionProperty(),
				"x1":     property("integer", "Left edge X coordinate (0-based)"),
				"y1":     property("integer", "Top edge Y coordinate (0-based)"),
				"x2":     property("integer", "Right edge X coordinate (exclusive)"),
				"y2":     property("integer", "Bottom edge Y coordinate (exclusive)"),
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Scale factor for the crop. Default 2.0",
					"default":     2.0,
				},
				"alpha":  property("number", "Heatmap opacity in [0,1]. Default 0.5"),
				"target": property("integer", "Class index to explain. Defaults to the predicted class."),
			}, "path"),
		},
		{
			Name:        "scan_read_annotations",
			Description: "Read burned-in text from an OCT export (eye, scan date, patient ID, device) using OCR.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":     pathProperty(),
				"region":   regionProperty(),
				"language": property("string", "Tesseract language code. Default eng"),
			}, "path"),
		},
		{
			Name:        "model_info",
			Description: "Describe the loaded classifier: classes, Grad-CAM target layer, input size and whether it runs on demo weights.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},

		// Patients
		{
			Name:        "patient_add",
			Description: "Register a patient.",
			InputSchema: objectSchema(map[string]interface{}{
				"file_no":    property("string", "Clinic file number"),
				"first_name": property("string", "First name"),
				"last_name":  property("string", "Last name"),
				"birth_date": property("string", "Birth date as YYYY-MM-DD"),
				"phone":      property("string", "Phone number"),
				"email":      property("string", "Email address"),
				"notes":      property("string", "Free-text notes"),
			}, "file_no", "first_name", "last_name"),
		},
		{
			Name:        "patient_get",
			Description: "Get a patient by ID.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": property("string", "Patient ID"),
			}, "id"),
		},
		{
			Name:        "patient_search",
			Description: "Search patients by name or file number. An empty query lists everyone.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": property("string", "Case-insensitive substring"),
			}),
		},
		{
			Name:        "patient_update",
			Description: "Update patient fields. Omitted fields are unchanged.",
			InputSchema: objectSchema(map[string]interface{}{
				"id":         property("string", "Patient ID"),
				"file_no":    property("string", "Clinic file number"),
				"first_name": property("string", "First name"),
				"last_name":  property("string", "Last name"),
				"birth_date": property("string", "Birth date as YYYY-MM-DD"),
				"phone":      property("string", "Phone number"),
				"email":      property("string", "Email address"),
				"notes":      property("string", "Free-text notes"),
			}, "id"),
		},
		{
			Name:        "patient_delete",
			Description: "Delete a patient and all of their stored analyses.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": property("string", "Patient ID"),
			}, "id"),
		},

		// Analyses
		{
			Name:        "analysis_list",
			Description: "List the stored analyses of a patient, newest first.",
			InputSchema: objectSchema(map[string]interface{}{
				"patient_id": property("string", "Patient ID"),
				"include_images": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the base64 scan and composite images",
					"default":     false,
				},
			}, "patient_id"),
		},
		{
			Name:        "analysis_get",
			Description: "Get one stored analysis including its images.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": property("string", "Analysis ID"),
			}, "id"),
		},
		{
			Name:        "analysis_compare",
			Description: "Compare two stored analyses of the same patient: class change and confidence trend.",
			InputSchema: objectSchema(map[string]interface{}{
				"current_id": property("string", "ID of the newer analysis"),
				"past_id":    property("string", "ID of the older analysis"),
			}, "current_id", "past_id"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

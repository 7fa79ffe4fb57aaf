// Package server implements the MCP (Model Context Protocol) server for
// explaining retinal OCT classifications.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods: initialize, tools/list, tools/call and ping.
//
// # Available Tools
//
// Scans:
//   - scan_load: Decode and describe a scan
//   - scan_classify: Class probabilities from the Grad-CAM network or the ONNX backend
//   - scan_explain: Classification plus Grad-CAM heatmap composite
//   - scan_overlay_crop: Zoom into a region of the composite
//   - scan_read_annotations: OCR of burned-in device text
//   - model_info: Loaded model, classes and target layer
//
// Records:
//   - patient_add, patient_get, patient_search, patient_update, patient_delete
//   - analysis_list, analysis_get, analysis_compare
//
// # Degraded Explanations
//
// A scan whose explanation cannot be computed still gets a classification.
// The heatmap is empty, gradcam_available is false and warning is set; this
// is a successful tool call, not an error.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000, message "Tool execution failed" and the Go error string as data.
package server

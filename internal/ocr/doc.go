// Package ocr reads the text that OCT devices burn into exported scans:
// eye laterality, acquisition date, patient identifiers and device name.
//
// Text recognition uses Tesseract through gosseract/v2 and is only compiled
// with cgo and the "tesseract" build tag:
//
//	go build -tags tesseract ./...
//
// Tesseract and its language data must be installed on the system
// (apt-get install tesseract-ocr tesseract-ocr-eng). Other builds get stubs
// that return ErrUnavailable. ParseAnnotations is plain Go and always
// available.
//
// # Thread Safety
//
// Each call creates its own Tesseract client, so calls may run
// concurrently.
package ocr

package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
)

// ImageCache keeps decoded scans keyed by file path so repeated tool calls
// on the same scan skip disk I/O and decoding.
//
// ImageCache is safe for concurrent use. Entries stay until Evict or Clear.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*Scan
}

// Scan is a decoded image together with the format reported by the decoder.
type Scan struct {
	Image  image.Image
	Format string
	Bytes  int64
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[string]*Scan)}
}

// Load returns the scan at path, decoding it on first use. PNG, JPEG and GIF
// are supported.
func (c *ImageCache) Load(path string) (*Scan, error) {
	c.mu.RLock()
	if s, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	s, err := DecodeScan(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = s
	c.mu.Unlock()
	return s, nil
}

// Clear empties the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*Scan)
	c.mu.Unlock()
}

// Evict drops one path from the cache.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len reports the number of cached scans.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// DecodeScan decodes an in-memory PNG, JPEG or GIF.
func DecodeScan(data []byte) (*Scan, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Scan{Image: img, Format: format, Bytes: int64(len(data))}, nil
}

// ScanInfo describes a loaded scan.
type ScanInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	ColorDepth    string `json:"color_depth"`
	Grayscale     bool   `json:"grayscale"`
	HasAlpha      bool   `json:"has_alpha"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// Info summarises s. OCT scans are usually stored as grayscale; Grayscale
// is true for gray image types and for colour images whose channels agree
// on every pixel.
func (s *Scan) Info() *ScanInfo {
	b := s.Image.Bounds()
	info := &ScanInfo{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        s.Format,
		ColorDepth:    "8-bit",
		FileSizeBytes: s.Bytes,
	}
	switch s.Image.(type) {
	case *image.RGBA, *image.NRGBA:
		info.HasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = true
		info.ColorDepth = "16-bit"
	case *image.Gray16:
		info.ColorDepth = "16-bit"
	}
	info.Grayscale = isGray(s.Image)
	return info
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}

// LoadScanInfo loads path through cache and describes it.
func LoadScanInfo(cache *ImageCache, path string) (*ScanInfo, error) {
	s, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	return s.Info(), nil
}

// Package api uploads exported flights to the farm dashboard.
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/farmassist/dronesim/internal/storage/memory"
)

// UploadPath is the dashboard endpoint receiving flight exports.
const UploadPath = "/api/v1/flights/upload"

// UploadMetadata describes an uploaded flight.
type UploadMetadata struct {
	FlightID        string
	Mission         string
	DurationSeconds float64
	FinalScore      int
}

// MetadataFromExport fills UploadMetadata from a flight export.
func MetadataFromExport(e memory.FlightExport) UploadMetadata {
	return UploadMetadata{
		FlightID:        e.FlightID,
		Mission:         e.Mission,
		DurationSeconds: e.DurationSeconds,
		FinalScore:      e.FinalScore,
	}
}

// Client handles communication with the farm dashboard.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the dashboard is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends an exported flight file to the dashboard.
func (c *Client) Upload(filePath string, meta UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		// Form fields
		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filepath.Base(filePath))
		_ = writer.WriteField("flightId", meta.FlightID)
		_ = writer.WriteField("mission", meta.Mission)
		_ = writer.WriteField("duration", fmt.Sprintf("%f", meta.DurationSeconds))
		_ = writer.WriteField("score", fmt.Sprintf("%d", meta.FinalScore))

		// File
		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadExport reads the flight export at path and uploads it with
// metadata taken from the export itself.
func (c *Client) UploadExport(path string) (UploadMetadata, error) {
	export, err := memory.ReadExport(path)
	if err != nil {
		return UploadMetadata{}, fmt.Errorf("reading export: %w", err)
	}
	meta := MetadataFromExport(export)
	return meta, c.Upload(path, meta)
}

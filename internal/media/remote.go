package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"parley/internal/models"
)

// RemoteProcessor delegates media processing to a dedicated service over
// HTTP. The caller's context bounds each call; the client timeout is the
// upper bound when no deadline is set.
type RemoteProcessor struct {
	baseURL string
	client  *http.Client
}

// NewRemoteProcessor returns a RemoteProcessor for the service at baseURL.
func NewRemoteProcessor(baseURL string, timeout time.Duration) *RemoteProcessor {
	return &RemoteProcessor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type remoteProcessResponse struct {
	Ref         string `json:"ref"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Process uploads the content as multipart/form-data and returns the stored
// asset reference the service reports.
func (p *RemoteProcessor) Process(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	if in.OwnerID == 0 {
		return nil, models.NewValidationError("Invalid owner")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("owner_id", strconv.FormatUint(uint64(in.OwnerID), 10)); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, in.Filename))
	if in.ContentType != "" {
		partHeader.Set("Content-Type", in.ContentType)
	}
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if _, err := part.Write(in.Content); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/process", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media processor call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusRequestEntityTooLarge,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, models.NewValidationError(readRemoteError(resp.Body))
	default:
		return nil, fmt.Errorf("media processor returned status %d", resp.StatusCode)
	}

	var decoded remoteProcessResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode media processor response: %w", err)
	}
	if decoded.Ref == "" {
		return nil, fmt.Errorf("media processor response missing ref")
	}

	return &ProcessResult{
		Ref:         decoded.Ref,
		ContentType: decoded.ContentType,
		SizeBytes:   decoded.SizeBytes,
		Width:       decoded.Width,
		Height:      decoded.Height,
	}, nil
}

// Remove asks the service to delete the stored asset. A missing asset is
// treated as already removed.
func (p *RemoteProcessor) Remove(ctx context.Context, ref string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.baseURL+"/assets/"+ref, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("media processor call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("media processor returned status %d", resp.StatusCode)
	}
}

func readRemoteError(r io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "Media rejected by processor"
	}
	if jsonErr := json.Unmarshal(data, &payload); jsonErr == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return "Media rejected by processor"
}

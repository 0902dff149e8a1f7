package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/model"
)

const maxErrorBodyBytes = 8 * 1024

// transport serializes batches onto the wire: executions as JSON bodies,
// observation batches as multipart forms with one binary part per
// payload.
type transport struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

func newTransport(client *http.Client, baseURL, apiKey string, logger *zap.Logger) *transport {
	return &transport{client: client, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

// createExecution POSTs /api/exe with {"execution": ...}.
func (t *transport) createExecution(ctx context.Context, execution *model.Execution) error {
	body, err := json.Marshal(model.CreateExecutionRequest{Execution: *execution})
	if err != nil {
		return fmt.Errorf("observe: encode execution: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/exe", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("observe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

// uploadObservations POSTs one multipart batch for a single execution.
// Parts:
//   - "observations": JSON array of observation metadata
//   - "payload_manifest": JSON array of payload descriptors
//   - "{observation_id}:{payload_id}:{name}": raw bytes per payload
func (t *transport) uploadObservations(ctx context.Context, executionID model.ExecutionID, batch []*pendingObservation) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	observations := make([]model.Observation, 0, len(batch))
	manifest := make([]model.PayloadManifestEntry, 0, len(batch))
	for _, p := range batch {
		observations = append(observations, *p.obs)
		for _, payload := range p.payloads {
			manifest = append(manifest, model.PayloadManifestEntry{
				ObservationID: p.obs.ID,
				PayloadID:     payload.ID,
				Name:          payload.Name,
				MimeType:      payload.MimeType,
				Size:          payload.Size,
			})
		}
	}

	if err := writeJSONPart(w, "observations", observations); err != nil {
		return err
	}
	if err := writeJSONPart(w, "payload_manifest", manifest); err != nil {
		return err
	}

	for _, p := range batch {
		for _, payload := range p.payloads {
			key := fmt.Sprintf("%s:%s:%s", p.obs.ID, payload.ID, payload.Name)
			part, err := createPart(w, key, model.MimeOctetStream)
			if err != nil {
				return err
			}
			if _, err := part.Write(payload.Data); err != nil {
				return fmt.Errorf("observe: write payload part: %w", err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("observe: finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/api/exe/%s/obs", t.baseURL, executionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("observe: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	t.logger.Debug("uploading observation batch",
		zap.String("execution_id", executionID.String()),
		zap.Int("count", len(batch)))

	return t.do(req)
}

// uploadBlob POSTs raw payload bytes to the out-of-band blob endpoint.
func (t *transport) uploadBlob(ctx context.Context, executionID model.ExecutionID, observationID model.ObservationID, payloadID model.PayloadID, body []byte) error {
	url := fmt.Sprintf("%s/api/exe/%s/obs/%s/blob?payload_id=%s", t.baseURL, executionID, observationID, payloadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("observe: build request: %w", err)
	}
	req.Header.Set("Content-Type", model.MimeOctetStream)

	return t.do(req)
}

func (t *transport) do(req *http.Request) error {
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("observe: transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &HTTPError{Status: resp.StatusCode, Body: string(body)}
}

func writeJSONPart(w *multipart.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("observe: encode %s: %w", name, err)
	}
	part, err := createPart(w, name, "application/json")
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("observe: write %s part: %w", name, err)
	}
	return nil
}

func createPart(w *multipart.Writer, name, contentType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(name)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("observe: create multipart part: %w", err)
	}
	return part, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

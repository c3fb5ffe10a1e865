package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/model"
)

const (
	pathArtifactUpload = "/_controller/artifact_upload"
	pathArtifact       = "/_controller/artifact"
)

// CreateArtifactUpload asks the controller where to upload an archive with
// the given checksum.
func (c *Client) CreateArtifactUpload(ctx context.Context, cli model.CLIContext, checksum model.Checksum) (*model.ArtifactUpload, error) {
	body := map[string]string{
		"app_name":        cli.App,
		"checksum_md5":    checksum.MD5,
		"checksum_sha256": checksum.SHA256,
	}

	var upload model.ArtifactUpload
	if err := c.post(ctx, cli, pathArtifactUpload, body, &upload); err != nil {
		return nil, err
	}
	if upload.UploadRequest.URL == "" || upload.UploadRequest.Method == "" {
		return nil, apperr.Decode(pathArtifactUpload, errors.New("upload_request is incomplete"))
	}
	if len(upload.ArtifactRequest) == 0 || string(upload.ArtifactRequest) == "null" {
		return nil, apperr.Decode(pathArtifactUpload, errors.New("artifact_request is missing"))
	}
	return &upload, nil
}

// UploadArtifact streams body to the presigned location. size is sent as
// Content-Length; pass -1 if unknown. Only PUT is supported, and only a 200
// response counts as success.
func (c *Client) UploadArtifact(ctx context.Context, req model.PresignedRequest, checksumMD5 string, body io.Reader, size int64) error {
	if req.Method != http.MethodPut {
		return apperr.Upload("storage", "upload with method %q not implemented", req.Method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return apperr.UploadFailed("storage", err)
	}
	if size >= 0 {
		httpReq.ContentLength = size
	}
	if err := applyHeaders(httpReq, req.Headers); err != nil {
		return err
	}
	httpReq.Header.Set("Content-MD5", checksumMD5)

	resp, err := c.uploadClient().Do(httpReq)
	if err != nil {
		return apperr.UploadFailed("storage", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagBytes))
		return apperr.UploadStatus("storage", resp.StatusCode, strings.TrimSpace(string(diag)))
	}
	return nil
}

// applyHeaders copies the presigned "Name:Value" headers onto r in order.
// Values may themselves contain colons.
func applyHeaders(r *http.Request, headers []string) error {
	for _, line := range headers {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return apperr.Upload("storage", "malformed presigned header %q", line)
		}
		value = strings.TrimSpace(value)
		if strings.EqualFold(name, "Host") {
			r.Host = value
			continue
		}
		r.Header.Add(name, value)
	}
	return nil
}

// CreateArtifact trades the artifact request token from a finished upload
// for an artifact ID. Call it only after UploadArtifact succeeded.
func (c *Client) CreateArtifact(ctx context.Context, cli model.CLIContext, artifactRequest json.RawMessage) (string, error) {
	body := struct {
		AppName         string          `json:"app_name"`
		ArtifactRequest json.RawMessage `json:"artifact_request"`
	}{cli.App, artifactRequest}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, cli, pathArtifact, body, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", apperr.Decode(pathArtifact, errors.New("artifact id is empty"))
	}
	return result.ID, nil
}

func (c *Client) uploadClient() *http.Client {
	if c.UploadClient == nil {
		return http.DefaultClient
	}
	return c.UploadClient
}

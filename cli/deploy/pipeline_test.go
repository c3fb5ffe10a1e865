package deploy

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/archive"
	"github.com/elly0t/skycli/cli/model"
)

var testContext = model.CLIContext{App: "myapp", Endpoint: "http://controller", APIKey: "key", AccessToken: "token"}

// fakeController records every call made by the pipeline.
type fakeController struct {
	mu    sync.Mutex
	calls []string

	statuses  []model.CloudCodeStatus
	uploadErr error

	gotChecksum model.Checksum
	gotMD5      string
	gotBody     []byte
	gotSize     int64
	gotToken    json.RawMessage
	gotConfig   model.CloudCodeConfig
	gotArtifact string
	polls       int
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) CreateArtifactUpload(ctx context.Context, cli model.CLIContext, checksum model.Checksum) (*model.ArtifactUpload, error) {
	f.record("CreateArtifactUpload")
	f.gotChecksum = checksum
	return &model.ArtifactUpload{
		UploadRequest:   model.PresignedRequest{Method: "PUT", URL: "https://bucket/src.tgz"},
		ArtifactRequest: json.RawMessage(`{"opaque":true}`),
	}, nil
}

func (f *fakeController) UploadArtifact(ctx context.Context, req model.PresignedRequest, checksumMD5 string, body io.Reader, size int64) error {
	f.record("UploadArtifact")
	f.gotMD5 = checksumMD5
	f.gotSize = size
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.gotBody = b
	return f.uploadErr
}

func (f *fakeController) CreateArtifact(ctx context.Context, cli model.CLIContext, artifactRequest json.RawMessage) (string, error) {
	f.record("CreateArtifact")
	f.gotToken = artifactRequest
	return "artifact-1", nil
}

func (f *fakeController) CreateCloudCode(ctx context.Context, cli model.CLIContext, name string, cfg model.CloudCodeConfig, artifactID string) (string, error) {
	f.record("CreateCloudCode")
	f.gotConfig = cfg
	f.gotArtifact = artifactID
	return "cc-1", nil
}

func (f *fakeController) GetCloudCode(ctx context.Context, cli model.CLIContext, id string) (*model.CloudCode, error) {
	f.record("GetCloudCode")
	f.polls++
	return &model.CloudCode{ID: id, Status: f.statuses[f.polls-1]}, nil
}

func newTestPipeline(t *testing.T, ctrl Controller) (*Pipeline, *[]Event) {
	t.Helper()
	var events []Event
	return &Pipeline{
		Controller:  ctrl,
		Clock:       &instantClock{},
		ArchivePath: filepath.Join(t.TempDir(), "skygear-src.tgz"),
		Reporter:    func(e Event) { events = append(events, e) },
	}, &events
}

func newSourceTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	files := map[string]string{
		"a.txt":      "hello",
		"b.txt":      "world",
		"secret.txt": "hunter2",
		".skyignore": "secret.txt\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(content), 0o644))
	}
	return src
}

func TestPipelineRun(t *testing.T) {
	ctrl := &fakeController{statuses: []model.CloudCodeStatus{pending, pending, running}}
	p, events := newTestPipeline(t, ctrl)
	cfg := model.CloudCodeConfig{Src: newSourceTree(t), Environment: "python3.6"}

	res, err := p.Run(context.Background(), testContext, "backend", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CreateArtifactUpload",
		"UploadArtifact",
		"CreateArtifact",
		"CreateCloudCode",
		"GetCloudCode",
		"GetCloudCode",
		"GetCloudCode",
	}, ctrl.calls)

	assert.Equal(t, []string{"a.txt", "b.txt"}, res.Files)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "artifact-1", res.ArtifactID)
	assert.Equal(t, "cc-1", res.CloudCodeID)

	// The negotiator sees the checksum of the archive on disk, verbatim.
	onDisk, err := archive.Sum(p.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, onDisk, ctrl.gotChecksum)
	assert.Equal(t, onDisk, res.Checksum)

	// The uploaded bytes are the bytes that were checksummed.
	sum := md5.Sum(ctrl.gotBody)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), ctrl.gotMD5)
	assert.Equal(t, onDisk.MD5, ctrl.gotMD5)
	assert.Equal(t, int64(len(ctrl.gotBody)), ctrl.gotSize)

	assert.JSONEq(t, `{"opaque":true}`, string(ctrl.gotToken))
	assert.Equal(t, "artifact-1", ctrl.gotArtifact)
	assert.Equal(t, "python3.6", ctrl.gotConfig.Environment)

	var completed []Step
	for _, e := range *events {
		if e.State == StateCompleted {
			completed = append(completed, e.Step)
		}
	}
	assert.Equal(t, Steps, completed)
}

func TestPipelineRun_DeployFailedIsNotAnError(t *testing.T) {
	ctrl := &fakeController{statuses: []model.CloudCodeStatus{pending, deployFailed}}
	p, events := newTestPipeline(t, ctrl)

	res, err := p.Run(context.Background(), testContext, "backend", model.CloudCodeConfig{Src: newSourceTree(t)})
	require.NoError(t, err)

	assert.False(t, res.Succeeded())
	assert.Equal(t, deployFailed, res.Status)
	last := (*events)[len(*events)-1]
	assert.Equal(t, Event{Step: StepWait, State: StateFailed, Detail: "DeployFailed"}, last)
}

func TestPipelineRun_UploadFailureAborts(t *testing.T) {
	ctrl := &fakeController{uploadErr: apperr.UploadStatus("storage", 403, "SignatureDoesNotMatch")}
	p, events := newTestPipeline(t, ctrl)

	res, err := p.Run(context.Background(), testContext, "backend", model.CloudCodeConfig{Src: newSourceTree(t)})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpload)
	assert.Contains(t, err.Error(), "upload: ")
	assert.Contains(t, err.Error(), "SignatureDoesNotMatch")
	assert.Equal(t, []string{"CreateArtifactUpload", "UploadArtifact"}, ctrl.calls)
	assert.Empty(t, res.ArtifactID)

	last := (*events)[len(*events)-1]
	assert.Equal(t, StepUpload, last.Step)
	assert.Equal(t, StateFailed, last.State)
}

func TestPipelineRun_ArchiveFailureAborts(t *testing.T) {
	ctrl := &fakeController{}
	p, _ := newTestPipeline(t, ctrl)

	_, err := p.Run(context.Background(), testContext, "backend", model.CloudCodeConfig{Src: filepath.Join(t.TempDir(), "missing")})

	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.Contains(t, err.Error(), "archive: ")
	assert.Empty(t, ctrl.calls)
}

func TestPipelineRun_ProtocolErrorAborts(t *testing.T) {
	ctrl := &fakeController{statuses: []model.CloudCodeStatus{pending, "Unknown"}}
	p, _ := newTestPipeline(t, ctrl)

	res, err := p.Run(context.Background(), testContext, "backend", model.CloudCodeConfig{Src: newSourceTree(t)})

	assert.ErrorIs(t, err, apperr.ErrProtocol)
	assert.Equal(t, "cc-1", res.CloudCodeID)
	assert.Equal(t, 2, ctrl.polls)
}

func TestPipelineDefaults(t *testing.T) {
	p := &Pipeline{}
	assert.Equal(t, archive.DefaultPath(), p.archivePath())
	assert.Equal(t, archive.DefaultIgnoreFile, p.ignoreFile())
	assert.Equal(t, DefaultPollInterval, p.pollInterval())
}

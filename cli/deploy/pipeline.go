// Package deploy runs the cloud code deploy pipeline: archive the source,
// checksum it, upload it through a presigned request, register the
// artifact, create the cloud code and wait for it to settle.
//
// Stages run strictly in sequence. The first failure aborts the run and is
// returned wrapped with the name of the stage that failed.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/archive"
	"github.com/elly0t/skycli/cli/clock"
	"github.com/elly0t/skycli/cli/model"
)

// Controller is the subset of the controller API the pipeline needs.
// *api.Client implements it.
type Controller interface {
	CreateArtifactUpload(ctx context.Context, cli model.CLIContext, checksum model.Checksum) (*model.ArtifactUpload, error)
	UploadArtifact(ctx context.Context, req model.PresignedRequest, checksumMD5 string, body io.Reader, size int64) error
	CreateArtifact(ctx context.Context, cli model.CLIContext, artifactRequest json.RawMessage) (string, error)
	CreateCloudCode(ctx context.Context, cli model.CLIContext, name string, cfg model.CloudCodeConfig, artifactID string) (string, error)
	GetCloudCode(ctx context.Context, cli model.CLIContext, id string) (*model.CloudCode, error)
}

type Pipeline struct {
	Controller   Controller
	Clock        clock.Clock
	Logger       *slog.Logger
	Reporter     Reporter
	ArchivePath  string        // defaults to archive.DefaultPath()
	IgnoreFile   string        // defaults to archive.DefaultIgnoreFile
	PollInterval time.Duration // defaults to DefaultPollInterval
}

type Result struct {
	Files       []string
	Checksum    model.Checksum
	ArtifactID  string
	CloudCodeID string
	Status      model.CloudCodeStatus
}

// Succeeded reports whether the cloud code ended up Running.
func (r *Result) Succeeded() bool {
	return r.Status == model.CloudCodeStatusRunning
}

// Run deploys the cloud code called name. A cloud code that settles in
// DeployFailed is not an error of the pipeline; check Result.Succeeded.
func (p *Pipeline) Run(ctx context.Context, cli model.CLIContext, name string, cfg model.CloudCodeConfig) (*Result, error) {
	log := p.logger().With("app", cli.App, "cloud_code", name)
	res := &Result{}

	log.Info("deploying cloud code", "src", cfg.Src)

	checksum, err := p.Archive(cfg.Src, res)
	if err != nil {
		return res, err
	}
	log.Info("archive created", "files", len(res.Files), "md5", checksum.MD5, "sha256", checksum.SHA256)

	artifactID, err := p.Upload(ctx, cli, checksum)
	if err != nil {
		return res, err
	}
	res.ArtifactID = artifactID
	log.Info("artifact created", "artifact_id", artifactID)

	p.report(StepDeploy, StateRunning, "")
	cloudCodeID, err := p.Controller.CreateCloudCode(ctx, cli, name, cfg, artifactID)
	if err != nil {
		return res, p.fail(StepDeploy, err)
	}
	res.CloudCodeID = cloudCodeID
	p.report(StepDeploy, StateCompleted, cloudCodeID)
	log.Info("waiting for cloud code to deploy", "cloud_code_id", cloudCodeID)

	status, err := p.Wait(ctx, cli, cloudCodeID)
	if err != nil {
		return res, err
	}
	res.Status = status
	log.Info("cloud code settled", "cloud_code_id", cloudCodeID, "status", status)

	return res, nil
}

// Archive builds the archive for src and checksums it. The archive is
// closed before it is read back.
func (p *Pipeline) Archive(src string, res *Result) (model.Checksum, error) {
	p.report(StepArchive, StateRunning, src)
	ar, err := archive.Create(src, p.ignoreFile(), p.archivePath())
	if err != nil {
		return model.Checksum{}, p.fail(StepArchive, err)
	}
	res.Files = ar.Files
	p.report(StepArchive, StateCompleted, fmt.Sprintf("%d files, %d bytes", len(ar.Files), ar.Size))

	p.report(StepChecksum, StateRunning, "")
	checksum, err := archive.Sum(ar.Path)
	if err != nil {
		return model.Checksum{}, p.fail(StepChecksum, err)
	}
	res.Checksum = checksum
	p.report(StepChecksum, StateCompleted, checksum.MD5)
	return checksum, nil
}

// Upload negotiates a presigned request for the archive, transfers it and
// registers the result as an artifact. checksum must come from the archive
// currently at the archive path.
func (p *Pipeline) Upload(ctx context.Context, cli model.CLIContext, checksum model.Checksum) (string, error) {
	p.report(StepUpload, StateRunning, "")
	upload, err := p.Controller.CreateArtifactUpload(ctx, cli, checksum)
	if err != nil {
		return "", p.fail(StepUpload, err)
	}

	if err := p.transfer(ctx, upload.UploadRequest, checksum.MD5); err != nil {
		return "", p.fail(StepUpload, err)
	}
	p.report(StepUpload, StateCompleted, "")

	p.report(StepArtifact, StateRunning, "")
	artifactID, err := p.Controller.CreateArtifact(ctx, cli, upload.ArtifactRequest)
	if err != nil {
		return "", p.fail(StepArtifact, err)
	}
	p.report(StepArtifact, StateCompleted, artifactID)
	return artifactID, nil
}

func (p *Pipeline) transfer(ctx context.Context, req model.PresignedRequest, checksumMD5 string) error {
	f, err := os.Open(p.archivePath())
	if err != nil {
		return apperr.IO("open archive", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperr.IO("open archive", err)
	}
	return p.Controller.UploadArtifact(ctx, req, checksumMD5, f, info.Size())
}

// Wait polls the cloud code until it leaves Pending.
func (p *Pipeline) Wait(ctx context.Context, cli model.CLIContext, cloudCodeID string) (model.CloudCodeStatus, error) {
	p.report(StepWait, StateRunning, cloudCodeID)

	polls := 0
	fetch := func(ctx context.Context) (model.CloudCodeStatus, error) {
		polls++
		cc, err := p.Controller.GetCloudCode(ctx, cli, cloudCodeID)
		if err != nil {
			return "", err
		}
		p.logger().Debug("polled cloud code", "cloud_code_id", cloudCodeID, "status", cc.Status, "poll", polls)
		return cc.Status, nil
	}

	status, err := WaitForStatus(ctx, fetch, p.Clock, p.pollInterval())
	if err != nil {
		return "", p.fail(StepWait, err)
	}

	if status == model.CloudCodeStatusRunning {
		p.report(StepWait, StateCompleted, string(status))
	} else {
		p.report(StepWait, StateFailed, string(status))
	}
	return status, nil
}

func (p *Pipeline) fail(step Step, err error) error {
	p.report(step, StateFailed, err.Error())
	return fmt.Errorf("%s: %w", step, err)
}

func (p *Pipeline) report(step Step, state State, detail string) {
	if p.Reporter != nil {
		p.Reporter(Event{Step: step, State: state, Detail: detail})
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) archivePath() string {
	if p.ArchivePath == "" {
		return archive.DefaultPath()
	}
	return p.ArchivePath
}

func (p *Pipeline) ignoreFile() string {
	if p.IgnoreFile == "" {
		return archive.DefaultIgnoreFile
	}
	return p.IgnoreFile
}

func (p *Pipeline) pollInterval() time.Duration {
	if p.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return p.PollInterval
}

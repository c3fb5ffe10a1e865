package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/model"
)

const pathCloudCode = "/_controller/cloud_code"

func (c *Client) CreateCloudCode(ctx context.Context, cli model.CLIContext, name string, cfg model.CloudCodeConfig, artifactID string) (string, error) {
	body := struct {
		AppName    string                `json:"app_name"`
		Name       string                `json:"name"`
		Config     model.CloudCodeConfig `json:"config"`
		ArtifactID string                `json:"artifact_id"`
	}{cli.App, name, cfg, artifactID}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, cli, pathCloudCode, body, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", apperr.Decode(pathCloudCode, errors.New("cloud code id is empty"))
	}
	return result.ID, nil
}

func (c *Client) GetCloudCode(ctx context.Context, cli model.CLIContext, id string) (*model.CloudCode, error) {
	path := pathCloudCode + "/" + url.PathEscape(id) + "?app_name=" + url.QueryEscape(cli.App)

	var cc model.CloudCode
	if err := c.get(ctx, cli, path, &cc); err != nil {
		return nil, err
	}
	return &cc, nil
}

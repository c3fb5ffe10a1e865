package model

// CLIContext identifies who is talking to which controller on behalf of
// which app. It is threaded explicitly through every remote call.
type CLIContext struct {
	App         string
	Endpoint    string
	APIKey      string
	AccessToken string
}

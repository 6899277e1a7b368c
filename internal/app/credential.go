package app

import (
	"errors"
	"fmt"

	"github.com/five82/xnatrack/internal/xnat"
)

const actionCredential = "xnat_credential"

// SetCredential stores a named credential.
func (a *App) SetCredential(name string, cred xnat.Credential) Result {
	if a.Credentials == nil {
		return errorResult(actionCredential, name, errors.New("no credential store configured"))
	}
	if err := a.Credentials.Set(name, cred); err != nil {
		return errorResult(actionCredential, name, err)
	}
	return Result{Action: actionCredential, Status: StatusOK, Path: name, Type: "credential", Message: "stored credential for user " + cred.User}
}

// ListCredentials reports the names of the stored credentials.
func (a *App) ListCredentials() Result {
	if a.Credentials == nil {
		return errorResult(actionCredential, "", errors.New("no credential store configured"))
	}
	names, err := a.Credentials.Names()
	if err != nil {
		return errorResult(actionCredential, "", err)
	}
	return Result{
		Action:  actionCredential,
		Status:  StatusOK,
		Type:    "credential",
		Message: fmt.Sprintf("%d stored credentials", len(names)),
		Items:   names,
	}
}

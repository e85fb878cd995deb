package deployment

import "time"

// Release method tags recorded on packages.
const (
	ReleaseMethodUpload   = "Upload"
	ReleaseMethodPromote  = "Promote"
	ReleaseMethodRollback = "Rollback"
)

// Deployment is a named release channel under exactly one app. Key is the
// globally-unique public key client devices use to fetch releases; it is
// independent of any account-facing id.
type Deployment struct {
	ID        string
	AppID     string
	Name      string
	Key       string
	CreatedAt time.Time
}

// Package is one historical release entry under a deployment. Rollout is a
// staged percentage in [0,100]; nil means full rollout. Labels are assigned
// in strictly increasing numeric sequence per deployment and never reused.
type Package struct {
	ID                 string
	DeploymentID       string
	Label              string
	Description        string
	IsDisabled         bool
	IsMandatory        bool
	Rollout            *int
	AppVersion         string
	PackageHash        string
	BlobID             string
	ManifestBlobID     string
	ReleaseMethod      string
	ReleasedBy         string
	OriginalLabel      string
	OriginalDeployment string
	Size               int64
	UploadTime         time.Time
}

// ClonePackage copies a package including its rollout pointer.
func ClonePackage(p Package) Package {
	out := p
	if p.Rollout != nil {
		v := *p.Rollout
		out.Rollout = &v
	}
	return out
}

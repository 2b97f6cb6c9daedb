package domain

import "time"

// DocumentType names a document slot within a flow.
type DocumentType string

const (
	DocPwdID         DocumentType = "pwdId"
	DocValidID       DocumentType = "validId"
	DocCompanyPermit DocumentType = "companyPermit"
	DocTaxID         DocumentType = "taxId"
	DocIncorporation DocumentType = "incorporation"
	DocOthers        DocumentType = "others"
)

// MaxDocumentSize is the per-file staging limit (5 MiB).
const MaxDocumentSize = 5 << 20

// AllowedExtensions is the extension allow-list shared by every slot.
var AllowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"pdf":  true,
}

// DocumentTypesFor returns the slots a flow may stage into.
func DocumentTypesFor(flow FlowKind) []DocumentType {
	switch flow {
	case FlowEmployer:
		return []DocumentType{DocCompanyPermit, DocTaxID, DocIncorporation, DocOthers}
	case FlowAssistant:
		return []DocumentType{DocValidID, DocOthers}
	default:
		return []DocumentType{DocPwdID, DocValidID, DocOthers}
	}
}

// IdentityProofTypes returns the subset of which at least one document must
// be staged before submission.
func IdentityProofTypes(flow FlowKind) []DocumentType {
	switch flow {
	case FlowEmployer:
		return []DocumentType{DocCompanyPermit, DocTaxID, DocIncorporation}
	case FlowAssistant:
		return []DocumentType{DocValidID}
	default:
		return []DocumentType{DocPwdID, DocValidID}
	}
}

// StagedDocument is a file the registrant has attached but which is not part
// of any server-side account record until submission succeeds. Bytes live in
// the object store under Key; only metadata rides on the session.
type StagedDocument struct {
	Type      DocumentType `json:"document_type" dynamodbav:"document_type"`
	Key       string       `json:"-" dynamodbav:"object_key"`
	Name      string       `json:"name" dynamodbav:"name"`
	SizeBytes int64        `json:"size" dynamodbav:"size_bytes"`
	Extension string       `json:"extension" dynamodbav:"extension"`
	StagedAt  time.Time    `json:"staged_at" dynamodbav:"staged_at"`
}

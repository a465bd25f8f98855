package didcomm

// CredentialAttribute is one name value pair of a credential preview.
type CredentialAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PreviewCredential is the credential preview carried inside proposals and
// offers.
type PreviewCredential struct {
	Type       string                `json:"@type"`
	Attributes []CredentialAttribute `json:"attributes"`
}

// KeyCorrectnessProof is the correctness proof of a credential offer. The
// components are opaque blobs to this agency: they are produced and verified
// by the crypto collaborator and passed through untouched.
type KeyCorrectnessProof struct {
	C     string     `json:"c"`
	XzCap string     `json:"xz_cap"`
	XrCap [][]string `json:"xr_cap,omitempty"`
}

// CredentialOffer is the offer message body of the issue credential protocol.
type CredentialOffer struct {
	SchemaID            string              `json:"schema_id"`
	CredDefID           string              `json:"cred_def_id"`
	KeyCorrectnessProof KeyCorrectnessProof `json:"key_correctness_proof"`
	Nonce               string              `json:"nonce"`
}

// CredentialPropose is the propose message body of the issue credential
// protocol.
type CredentialPropose struct {
	Type               string            `json:"@type,omitempty"`
	ID                 string            `json:"@id,omitempty"`
	CredDefID          string            `json:"cred_def_id,omitempty"`
	SchemaID           string            `json:"schema_id,omitempty"`
	CredentialProposal PreviewCredential `json:"credential_proposal"`
	Comment            string            `json:"comment,omitempty"`
}

// CredentialRequest is the request message body sent by the holder. The
// blob is the holder's cryptographic request material, opaque to this layer.
type CredentialRequest struct {
	CredDefID string `json:"cred_def_id,omitempty"`
	Blob      string `json:"requests~attach,omitempty"`
}

// CredentialIssue is the issue message body carrying the credential itself,
// again opaque to this layer.
type CredentialIssue struct {
	Blob string `json:"credentials~attach,omitempty"`
}

package blobsign

import (
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"pso-control-plane/backend/internal/errs"
)

// AzureSigner signs service-SAS playback URLs with the storage account's
// shared key. Read-only permission; the TTL is the caller's concern.
type AzureSigner struct {
	accountName string
	container   string
	cred        *azblob.SharedKeyCredential
}

// NewAzureSigner builds a signer for the given account and container.
func NewAzureSigner(accountName, accountKey, container string) (*AzureSigner, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("blobsign: shared key credential: %w", err)
	}
	return &AzureSigner{accountName: accountName, container: container, cred: cred}, nil
}

// URL returns the plain blob URL for path.
func (s *AzureSigner) URL(path string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.accountName, s.container, path)
}

// Sign returns a read-only SAS URL for path valid for ttl.
func (s *AzureSigner) Sign(path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     time.Now().UTC().Add(-5 * time.Minute),
		ExpiryTime:    time.Now().UTC().Add(ttl),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.container,
		BlobName:      path,
	}
	qp, err := values.SignWithSharedKey(s.cred)
	if err != nil {
		return "", errs.Wrap(errs.KindExternal, "blobsign: sign "+path, err)
	}
	return s.URL(path) + "?" + qp.Encode(), nil
}

// PlainSigner returns unsigned URLs under a fixed base. Used in development
// when no storage account is configured.
type PlainSigner struct {
	Base string
}

// URL returns base/path.
func (s *PlainSigner) URL(path string) string {
	return s.Base + "/" + path
}

// Sign returns the plain URL; there is no key to sign with.
func (s *PlainSigner) Sign(path string, _ time.Duration) (string, error) {
	return s.URL(path), nil
}

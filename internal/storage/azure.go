package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"shipyard/internal/config"
	"shipyard/internal/services"
)

// Azure uploads to an Azure Blob Storage container. Bucket names the
// container; the access key pair is the account name and account key.
type Azure struct {
	client *azblob.Client
	cfg    config.Storage
}

func NewAzure(cfg config.Storage) (*Azure, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "azure", "shared key credential", err)
	}
	serviceURL := strings.TrimSpace(cfg.Endpoint)
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccessKeyID)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "azure", "create client", err)
	}
	return &Azure{client: client, cfg: cfg}, nil
}

func (a *Azure) Upload(ctx context.Context, key, localPath string) (string, error) {
	full := ObjectKey(a.cfg.Prefix, key)
	file, err := os.Open(localPath)
	if err != nil {
		return "", uploadError("azure", full, err)
	}
	defer file.Close()

	ct := contentType(full)
	if _, err := a.client.UploadFile(ctx, a.cfg.Bucket, full, file, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	}); err != nil {
		return "", uploadError("azure", full, err)
	}

	blobClient := a.client.ServiceClient().NewContainerClient(a.cfg.Bucket).NewBlobClient(full)
	startsOn := time.Now().Add(-5 * time.Minute)
	sasURL, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(presignExpiry(a.cfg)), &blob.GetSASURLOptions{
		StartTime: &startsOn,
	})
	if err != nil {
		return blobClient.URL(), nil
	}
	return sasURL, nil
}

func (a *Azure) Close() error { return nil }
